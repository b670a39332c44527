// Package clientrole implements the client role of spec §4.5: read
// values from an input stream, multicast PROPOSE, and retransmit any
// value that hasn't been confirmed decided within a timeout.
// Grounded on the teacher's client.subscription bookkeeping idiom
// (per-item pending state keyed by an id, driven off a timer) adapted
// from transaction subscriptions to a per-submission retransmit timer,
// and on txnengine.VarManager's retry.Scheduler usage for the timer
// itself.
package clientrole

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log"

	mp "github.com/nbro/multi-paxos"
	"github.com/nbro/multi-paxos/metrics"
	"github.com/nbro/multi-paxos/retry"
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/wire"
)

// Sender abstracts addressing the proposer multicast group.
type Sender interface {
	SendToProposers(wire.Message) error
}

// Client reads newline-delimited integers from in, assigns each the
// next client_seq, and multicasts PROPOSE. Every submitted value
// remains outstanding — and eligible for retransmission with the same
// client_seq — until this client observes a DECISION carrying that
// value, at which point proposer-side dedup makes further resends a
// harmless no-op.
type Client struct {
	selfID    uint32
	logger    log.Logger
	sender    Sender
	scheduler *retry.Scheduler
	metrics   *metrics.Client

	nextSeq     uint64
	outstanding map[uint64]int64 // seq -> value, while unconfirmed
}

func NewClient(selfID uint32, sender Sender, scheduler *retry.Scheduler, m *metrics.Client, logger log.Logger) *Client {
	return &Client{
		selfID:      selfID,
		logger:      log.With(logger, "role", "client", "id", selfID),
		sender:      sender,
		scheduler:   scheduler,
		metrics:     m,
		outstanding: make(map[uint64]int64),
	}
}

// Run reads one integer per line from in until EOF, submitting each as
// it is read.
func (c *Client) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		value, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			c.logger.Log("msg", "skipping unparsable input line", "line", line, "error", err)
			continue
		}
		c.submit(value)
	}
	if err := scanner.Err(); err != nil {
		c.logger.Log("msg", "error reading client input", "error", err)
	}
}

func (c *Client) submit(value int64) {
	seq := c.nextSeq
	c.nextSeq++
	c.outstanding[seq] = value
	c.send(seq, value)
	c.armRetransmit(seq)
}

func (c *Client) send(seq uint64, value int64) {
	msg := wire.Propose{SenderID: c.selfID, ClientID: c.selfID, ClientSeq: seq, Value: value}
	mp.CheckWarn(c.sender.SendToProposers(msg), log.With(c.logger, "seq", seq, "msg_kind", "PROPOSE"))
	if c.metrics != nil {
		c.metrics.Submitted.Inc()
	}
}

func (c *Client) armRetransmit(seq uint64) {
	c.scheduler.ScheduleFixed(mp.ClientRetransmitDelay, func() {
		value, ok := c.outstanding[seq]
		if !ok {
			return
		}
		if c.metrics != nil {
			c.metrics.Retransmit.Inc()
		}
		c.send(seq, value)
		c.armRetransmit(seq)
	})
}

// HandleDecision watches DECISION traffic (a client joins the learner
// group read-only for this purpose) and retires any outstanding
// submission whose value has been decided.
func (c *Client) HandleDecision(msg wire.Decision) {
	for seq, value := range c.outstanding {
		if value == msg.Value {
			delete(c.outstanding, seq)
			if c.metrics != nil {
				c.metrics.Confirmed.Inc()
			}
		}
	}
}

// Status reports client state into the shared status tree.
func (c *Client) Status(sc *status.StatusConsumer) {
	sc.Emit("Client:")
	sc.Emit("- submitted: " + strconv.FormatUint(c.nextSeq, 10))
	sc.Emit("- outstanding: " + strconv.Itoa(len(c.outstanding)))
	sc.Join()
}
