// Package learner assembles the totally-ordered decided log from
// DECISION and CATCHUP_RESP traffic and emits it, in order, to an
// io.Writer. Grounded on the teacher's VarManager-style sparse map
// keyed by a monotonically advancing cursor (here a slot number rather
// than a variable id) plus the same "buffer until the prefix fills"
// idiom.
package learner

import (
	"bufio"
	"io"
	"strconv"

	"github.com/go-kit/kit/log"

	mp "github.com/nbro/multi-paxos"
	"github.com/nbro/multi-paxos/metrics"
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/wire"
)

// Sender abstracts addressing the learner multicast group.
type Sender interface {
	SendToLearners(wire.Message) error
}

// Learner implements spec §4.4: a slot -> value map (retained for the
// lifetime of the process so this learner can itself answer later
// catch-up requests, consistent with the fail-stop/no-persistence
// model — nothing here survives a restart, but nothing is discarded
// while running), a next_to_emit cursor, and catch-up handling.
type Learner struct {
	selfID  uint32
	logger  log.Logger
	sender  Sender
	metrics *metrics.Learner
	out     *bufio.Writer

	decided    map[uint64]int64
	nextToEmit uint64
}

func NewLearner(selfID uint32, sender Sender, out io.Writer, m *metrics.Learner, logger log.Logger) *Learner {
	return &Learner{
		selfID:  selfID,
		logger:  log.With(logger, "role", "learner", "id", selfID),
		sender:  sender,
		metrics: m,
		out:     bufio.NewWriter(out),
		decided: make(map[uint64]int64),
	}
}

// Start issues the startup catch-up request, per spec §4.4: "broadcast
// CATCHUP_REQ(self_id, next_to_emit - 1) to the learner group (use -1
// if empty)".
func (l *Learner) Start() {
	highest := int64(-1)
	if l.nextToEmit > 0 {
		highest = int64(l.nextToEmit - 1)
	}
	req := wire.CatchupReq{SenderID: l.selfID, RequesterID: l.selfID, HighestKnownSlot: highest}
	mp.CheckWarn(l.sender.SendToLearners(req), log.With(l.logger, "msg_kind", "CATCHUP_REQ"))
}

// HandleDecision implements the DECISION rule: record, then emit the
// contiguous prefix starting at next_to_emit.
func (l *Learner) HandleDecision(msg wire.Decision) {
	l.record(msg.Slot, msg.Value)
}

// HandleCatchupResp is handled identically to HandleDecision per spec.
func (l *Learner) HandleCatchupResp(msg wire.CatchupResp) {
	if l.metrics != nil {
		l.metrics.CatchupRecv.Inc()
	}
	l.record(msg.Slot, msg.Value)
}

func (l *Learner) record(slot uint64, value int64) {
	if _, known := l.decided[slot]; known {
		return
	}
	l.decided[slot] = value
	l.drain()
	l.reportGap()
}

func (l *Learner) drain() {
	for {
		v, ok := l.decided[l.nextToEmit]
		if !ok {
			return
		}
		l.out.WriteString(strconv.FormatInt(v, 10))
		l.out.WriteByte('\n')
		l.out.Flush()
		l.nextToEmit++
		if l.metrics != nil {
			l.metrics.Emitted.Inc()
		}
	}
}

func (l *Learner) reportGap() {
	if l.metrics == nil {
		return
	}
	buffered := 0
	for slot := range l.decided {
		if slot >= l.nextToEmit {
			buffered++
		}
	}
	l.metrics.OutOfOrderGaps.Set(float64(buffered))
}

// HandleCatchupReq implements the CATCHUP_REQ responder rule: reply
// with one CATCHUP_RESP per known decided slot above h, whether or not
// this learner has already emitted it.
func (l *Learner) HandleCatchupReq(msg wire.CatchupReq) {
	h := msg.HighestKnownSlot
	for slot, value := range l.decided {
		if int64(slot) <= h {
			continue
		}
		resp := wire.CatchupResp{SenderID: l.selfID, Slot: slot, Value: value}
		mp.CheckWarn(l.sender.SendToLearners(resp), log.With(l.logger, "slot", slot, "msg_kind", "CATCHUP_RESP"))
	}
	if l.metrics != nil {
		l.metrics.CatchupSent.Inc()
	}
}

// Status reports learner state into the shared status tree.
func (l *Learner) Status(sc *status.StatusConsumer) {
	sc.Emit("Learner:")
	sc.Emit("- next to emit: " + strconv.FormatUint(l.nextToEmit, 10))
	sc.Emit("- total known: " + strconv.Itoa(len(l.decided)))
	sc.Join()
}
