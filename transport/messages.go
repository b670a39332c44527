package transport

import (
	"github.com/go-kit/kit/log"

	"github.com/nbro/multi-paxos/wire"
)

// SendMessage encodes m and sends it to the group.
func (g *Group) SendMessage(m wire.Message) error {
	return g.Send(wire.Encode(m))
}

// RecvLoop blocks reading datagrams off the group until it is closed,
// decoding each into a wire.Message and invoking handle with it.
// Malformed datagrams are dropped per spec.md §7's "decode error ->
// drop silently" policy; handle is expected to do its own dispatch
// onto the owning role's single-owner Executor.
func (g *Group) RecvLoop(handle func(wire.Message), logger log.Logger) {
	buf := make([]byte, MaxDatagram)
	for {
		n, err := g.Recv(buf)
		if err != nil {
			logger.Log("msg", "multicast receive loop exiting", "error", err)
			return
		}
		msg, err := wire.Decode(buf[:n])
		if err != nil {
			logger.Log("msg", "dropping malformed datagram", "error", err)
			continue
		}
		handle(msg)
	}
}
