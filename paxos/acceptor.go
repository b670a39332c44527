// Package paxos implements the per-slot acceptor and proposer state
// machines. It is grounded on the teacher's paxos package (the
// per-instance state held in a map keyed by instance identifier,
// lazily materialised, driven from a dispatcher.Executor) but reworked
// from a two-phase-commit transaction log to classical single-value
// Multi-Paxos per slot.
package paxos

import (
	"strconv"

	"github.com/go-kit/kit/log"

	mp "github.com/nbro/multi-paxos"
	"github.com/nbro/multi-paxos/metrics"
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/wire"
)

// slotState is an acceptor's lazily-materialised per-slot record.
// Absent slots behave as if all fields are zero.
type slotState struct {
	promised Ballot
	accepted Ballot
	hasValue bool
	value    int64
}

type Ballot = wire.Ballot

// Sender abstracts "send this message to this group" so Acceptor does
// not depend on the concrete transport type.
type Sender interface {
	SendToProposers(wire.Message) error
}

// Acceptor runs the rules of spec §4.2. It is purely reactive: it
// never originates a message and owns no timers.
type Acceptor struct {
	selfID  uint32
	logger  log.Logger
	sender  Sender
	metrics *metrics.Acceptor

	slots map[uint64]*slotState
}

func NewAcceptor(selfID uint32, sender Sender, m *metrics.Acceptor, logger log.Logger) *Acceptor {
	return &Acceptor{
		selfID:  selfID,
		logger:  log.With(logger, "role", "acceptor", "id", selfID),
		sender:  sender,
		metrics: m,
		slots:   make(map[uint64]*slotState),
	}
}

func (a *Acceptor) slot(s uint64) *slotState {
	st, ok := a.slots[s]
	if !ok {
		st = &slotState{}
		a.slots[s] = st
		if a.metrics != nil {
			a.metrics.SlotsKnown.Set(float64(len(a.slots)))
		}
	}
	return st
}

// HandlePhase1A implements the PHASE1A rule: promise b if it strictly
// exceeds the slot's current promised ballot, else NACK with the
// current promise.
func (a *Acceptor) HandlePhase1A(msg wire.Phase1A) {
	st := a.slot(msg.Slot)
	if msg.Ballot.Greater(st.promised) {
		st.promised = msg.Ballot
		if a.metrics != nil {
			a.metrics.Promises.Inc()
		}
	} else if a.metrics != nil {
		a.metrics.Nacks1.Inc()
	}

	reply := wire.Phase1B{
		SenderID:       a.selfID,
		Slot:           msg.Slot,
		Promised:       st.promised,
		AcceptedBallot: st.accepted,
		HasValue:       st.hasValue,
		Value:          st.value,
	}
	mp.CheckWarn(a.sender.SendToProposers(reply), log.With(a.logger, "slot", msg.Slot, "msg_kind", "PHASE1B"))
}

// HandlePhase2A implements the PHASE2A rule: accept (b, v) if b is at
// least the slot's current promised ballot, else NACK.
func (a *Acceptor) HandlePhase2A(msg wire.Phase2A) {
	st := a.slot(msg.Slot)

	ok := msg.Ballot.Greater(st.promised) || msg.Ballot == st.promised
	if ok {
		st.promised = msg.Ballot
		st.accepted = msg.Ballot
		st.hasValue = true
		st.value = msg.Value
		if a.metrics != nil {
			a.metrics.Accepts.Inc()
		}
	} else if a.metrics != nil {
		a.metrics.Nacks2.Inc()
	}

	reply := wire.Phase2B{
		SenderID:  a.selfID,
		Slot:      msg.Slot,
		Ballot:    msg.Ballot,
		Ok:        ok,
		Promised:  st.promised,
		ValueHash: valueHash(st.value),
	}
	mp.CheckWarn(a.sender.SendToProposers(reply), log.With(a.logger, "slot", msg.Slot, "msg_kind", "PHASE2B"))
}

// Status reports acceptor state into the shared status tree.
func (a *Acceptor) Status(sc *status.StatusConsumer) {
	sc.Emit("Acceptor:")
	sc.Emit("- known slots: " + strconv.Itoa(len(a.slots)))
	sc.Join()
}

func valueHash(v int64) uint64 {
	// FNV-1a over the 8 bytes of v; carried purely for observability
	// (see wire.Phase2B's doc comment).
	h := uint64(14695981039346656037)
	for i := 0; i < 8; i++ {
		b := byte(v >> (8 * i))
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}
