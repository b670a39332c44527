// Package transport wraps IP multicast UDP sockets behind the small
// surface the rest of this module needs: join a group, send a
// datagram into it, and range over received datagrams. It is grounded
// on golang.org/x/net/ipv4's PacketConn, the explicit-multicast-control
// package the network-programming corpus reaches for instead of the
// bare net package's implicit JoinGroup handling.
package transport

import (
	"fmt"
	"net"

	"github.com/go-kit/kit/log"
	"golang.org/x/net/ipv4"

	"github.com/nbro/multi-paxos/configuration"
)

// MaxDatagram is the largest payload this module will ever send or
// accept; every wire message fits comfortably under the conservative
// common-path MTU this leaves for IP/UDP headers.
const MaxDatagram = 2048

// Group is a joined multicast endpoint: reading from it yields
// datagrams sent to the group by any member, and writing sends the
// group a datagram every member will receive, including the sender
// when loopback is left enabled.
type Group struct {
	conn   *net.UDPConn
	pconn  *ipv4.PacketConn
	addr   *net.UDPAddr
	logger log.Logger
}

// Join opens ep as a multicast group on every multicast-capable
// interface and enables receipt of the group's traffic. selfLoopback
// controls whether a sender also receives its own datagrams back; the
// acceptor/learner/proposer roles all want this off since they reason
// about "messages from others", while a lone-node test harness may
// want it on.
func Join(ep configuration.Endpoint, selfLoopback bool, logger log.Logger) (*Group, error) {
	addr, err := net.ResolveUDPAddr("udp4", ep.String())
	if err != nil {
		return nil, fmt.Errorf("transport: resolving %s: %w", ep.String(), err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: addr.Port})
	if err != nil {
		return nil, fmt.Errorf("transport: listening on port %d: %w", addr.Port, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetMulticastLoopback(selfLoopback); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: setting multicast loopback: %w", err)
	}

	ifaces, err := multicastInterfaces()
	if err != nil {
		conn.Close()
		return nil, err
	}
	joined := 0
	for _, iface := range ifaces {
		if err := pconn.JoinGroup(iface, &net.UDPAddr{IP: addr.IP}); err != nil {
			logger.Log("msg", "failed to join multicast group on interface", "interface", iface.Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		conn.Close()
		return nil, fmt.Errorf("transport: could not join %s on any interface", addr.IP)
	}

	return &Group{conn: conn, pconn: pconn, addr: addr, logger: logger}, nil
}

// Send writes payload to the multicast group. It is best-effort: a
// dropped datagram is not retried here, per spec.md §7's "send
// failure: log and continue" — callers needing reliability own their
// own retransmission policy above this layer.
func (g *Group) Send(payload []byte) error {
	_, err := g.conn.WriteToUDP(payload, g.addr)
	return err
}

// Recv blocks for the next datagram addressed to the group and returns
// its payload. The returned slice is only valid until the next call to
// Recv.
func (g *Group) Recv(buf []byte) (int, error) {
	n, _, err := g.conn.ReadFromUDP(buf)
	return n, err
}

// Close leaves the multicast group and releases the socket.
func (g *Group) Close() error {
	return g.conn.Close()
}

func multicastInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("transport: listing interfaces: %w", err)
	}
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		out = append(out, iface)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("transport: no multicast-capable interface found")
	}
	return out, nil
}
