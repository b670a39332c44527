package paxos

import (
	"strconv"
	"time"

	"github.com/go-kit/kit/log"

	mp "github.com/nbro/multi-paxos"
	"github.com/nbro/multi-paxos/metrics"
	"github.com/nbro/multi-paxos/retry"
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/wire"
)

type phase int

const (
	phaseIdle phase = iota
	phasePhase1
	phasePhase2
	phaseDecided
)

// proposerSlot is a proposer's per-slot bookkeeping (spec §3's
// "Proposer per-slot state").
type proposerSlot struct {
	phase            phase
	currentBallot    wire.Ballot
	highestRoundUsed uint64
	pendingValue     int64
	phase1bReplies   map[uint32]wire.Phase1B
	phase2bReplies   map[uint32]struct{}
	startedAt        time.Time
}

type dedupKey struct {
	clientID  uint32
	clientSeq uint64
}

// ProposerSender abstracts the two groups a proposer addresses.
type ProposerSender interface {
	SendToAcceptors(wire.Message) error
	SendToLearners(wire.Message) error
}

// Proposer drives slots through Phase 1/2 per spec §4.3: slot
// assignment off a pending FIFO, ballot-driven preemption handling,
// and a retry timer per active slot.
type Proposer struct {
	selfID         uint32
	quorum         int
	pipelineWindow uint64
	logger         log.Logger
	sender         ProposerSender
	scheduler      *retry.Scheduler
	metrics        *metrics.Proposer

	pending             []int64
	dedup               map[dedupKey]struct{}
	nextSlot            uint64
	highestKnownDecided int64

	slots map[uint64]*proposerSlot
}

func NewProposer(selfID uint32, quorum int, pipelineWindow uint64, sender ProposerSender, scheduler *retry.Scheduler, m *metrics.Proposer, logger log.Logger) *Proposer {
	return &Proposer{
		selfID:              selfID,
		quorum:              quorum,
		pipelineWindow:      pipelineWindow,
		logger:              log.With(logger, "role", "proposer", "id", selfID),
		sender:              sender,
		scheduler:           scheduler,
		metrics:             m,
		dedup:               make(map[dedupKey]struct{}),
		highestKnownDecided: -1,
		slots:               make(map[uint64]*proposerSlot),
	}
}

// HandlePropose implements the PROPOSE slot-assignment rule.
func (p *Proposer) HandlePropose(msg wire.Propose) {
	key := dedupKey{msg.ClientID, msg.ClientSeq}
	if _, seen := p.dedup[key]; seen {
		return
	}
	p.dedup[key] = struct{}{}
	p.pending = append(p.pending, msg.Value)
	if p.metrics != nil {
		p.metrics.PendingQueue.Set(float64(len(p.pending)))
	}
	p.maybeAssignSlots()
}

// HandleDecision lets a proposer learn of a decision it did not itself
// drive (another proposer won the slot), keeping highest_known_decided
// accurate so pipelining stays correctly bounded under duelling
// proposers.
func (p *Proposer) HandleDecision(msg wire.Decision) {
	p.updateHighestKnownDecided(msg.Slot)
	if st, ok := p.slots[msg.Slot]; ok && st.phase != phaseDecided {
		st.phase = phaseDecided
		p.scheduler.Forget(msg.Slot)
	}
	p.maybeAssignSlots()
}

func (p *Proposer) maybeAssignSlots() {
	for len(p.pending) > 0 && int64(p.nextSlot) <= p.highestKnownDecided+int64(p.pipelineWindow) {
		value := p.pending[0]
		p.pending = p.pending[1:]
		slot := p.nextSlot
		p.nextSlot++
		p.startSlot(slot, value)
	}
	if p.metrics != nil {
		p.metrics.PendingQueue.Set(float64(len(p.pending)))
		p.metrics.Gauge.Set(float64(p.activeSlots()))
	}
}

// activeSlots counts the slots this proposer has started and not yet
// seen decided.
func (p *Proposer) activeSlots() int {
	n := 0
	for _, st := range p.slots {
		if st.phase != phaseDecided {
			n++
		}
	}
	return n
}

func (p *Proposer) startSlot(slot uint64, value int64) {
	st := &proposerSlot{
		pendingValue:   value,
		phase1bReplies: make(map[uint32]wire.Phase1B),
		phase2bReplies: make(map[uint32]struct{}),
		startedAt:      time.Now(),
	}
	p.slots[slot] = st
	p.restartPhase1(st, slot)
}

func (p *Proposer) restartPhase1(st *proposerSlot, slot uint64) {
	round := st.highestRoundUsed + 1
	st.highestRoundUsed = round
	st.currentBallot = wire.Ballot{Round: round, ProposerID: p.selfID}
	st.phase = phasePhase1
	for k := range st.phase1bReplies {
		delete(st.phase1bReplies, k)
	}
	for k := range st.phase2bReplies {
		delete(st.phase2bReplies, k)
	}
	p.sendPhase1A(slot, st)
}

func (p *Proposer) sendPhase1A(slot uint64, st *proposerSlot) {
	msg := wire.Phase1A{SenderID: p.selfID, Slot: slot, Ballot: st.currentBallot}
	mp.CheckWarn(p.sender.SendToAcceptors(msg), log.With(p.logger, "slot", slot, "msg_kind", "PHASE1A"))
	p.armRetry(slot, st.currentBallot)
}

func (p *Proposer) sendPhase2A(slot uint64, st *proposerSlot) {
	msg := wire.Phase2A{SenderID: p.selfID, Slot: slot, Ballot: st.currentBallot, Value: st.pendingValue}
	mp.CheckWarn(p.sender.SendToAcceptors(msg), log.With(p.logger, "slot", slot, "msg_kind", "PHASE2A"))
	p.armRetry(slot, st.currentBallot)
}

// armRetry schedules a timeout that restarts Phase 1 for slot if, by
// the time it fires, the slot is still being driven at ballot — a stale
// firing from an already-superseded attempt is a silent no-op.
func (p *Proposer) armRetry(slot uint64, ballot wire.Ballot) {
	p.scheduler.ScheduleRetry(slot, func() {
		st, ok := p.slots[slot]
		if !ok || st.phase == phaseDecided || st.currentBallot != ballot {
			return
		}
		if p.metrics != nil {
			p.metrics.Retries.Inc()
		}
		p.restartPhase1(st, slot)
	})
}

func (p *Proposer) observeRound(st *proposerSlot, b wire.Ballot) {
	if b.Round > st.highestRoundUsed {
		st.highestRoundUsed = b.Round
	}
}

// HandlePhase1B implements the quorum/override rule of spec §4.3.
func (p *Proposer) HandlePhase1B(msg wire.Phase1B) {
	st, ok := p.slots[msg.Slot]
	if !ok || st.phase == phaseDecided {
		return
	}
	if msg.Promised.Greater(st.currentBallot) {
		p.observeRound(st, msg.Promised)
		if p.metrics != nil {
			p.metrics.Preemptions.Inc()
		}
		p.restartPhase1(st, msg.Slot)
		return
	}
	if st.phase != phasePhase1 || msg.Promised != st.currentBallot {
		return
	}

	st.phase1bReplies[msg.SenderID] = msg
	if len(st.phase1bReplies) < p.quorum {
		return
	}

	var best *wire.Phase1B
	for i := range st.phase1bReplies {
		r := st.phase1bReplies[i]
		if best == nil || r.AcceptedBallot.Greater(best.AcceptedBallot) {
			rc := r
			best = &rc
		}
	}
	if best.AcceptedBallot.Round > 0 && best.HasValue {
		// The client value originally queued for this slot is bumped
		// back to the front of the FIFO to be retried at a later slot.
		p.pending = append([]int64{st.pendingValue}, p.pending...)
		st.pendingValue = best.Value
	}

	// Phase 1 reached quorum with no preemption: this slot's contention
	// is resolved for now, so its backoff shouldn't keep inflating from
	// here into Phase 2.
	p.scheduler.ShrinkBackoff(msg.Slot)

	st.phase = phasePhase2
	p.sendPhase2A(msg.Slot, st)
}

// HandlePhase2B implements the decision rule of spec §4.3.
func (p *Proposer) HandlePhase2B(msg wire.Phase2B) {
	st, ok := p.slots[msg.Slot]
	if !ok || st.phase == phaseDecided {
		return
	}
	if !msg.Ok {
		p.observeRound(st, msg.Promised)
		if msg.Promised.Greater(st.currentBallot) {
			if p.metrics != nil {
				p.metrics.Preemptions.Inc()
			}
			p.restartPhase1(st, msg.Slot)
		}
		return
	}
	if st.phase != phasePhase2 || msg.Ballot != st.currentBallot {
		return
	}

	st.phase2bReplies[msg.SenderID] = struct{}{}
	if len(st.phase2bReplies) < p.quorum {
		return
	}

	st.phase = phaseDecided
	p.scheduler.Forget(msg.Slot)
	decision := wire.Decision{SenderID: p.selfID, Slot: msg.Slot, Value: st.pendingValue}
	mp.CheckWarn(p.sender.SendToLearners(decision), log.With(p.logger, "slot", msg.Slot, "msg_kind", "DECISION"))
	if p.metrics != nil {
		p.metrics.Decided.Inc()
		p.metrics.Lifespan.Observe(time.Since(st.startedAt).Seconds())
	}
	p.updateHighestKnownDecided(msg.Slot)
	p.maybeAssignSlots()
}

func (p *Proposer) updateHighestKnownDecided(slot uint64) {
	s := int64(slot)
	if s > p.highestKnownDecided {
		p.highestKnownDecided = s
	}
}

// Status reports proposer state into the shared status tree.
func (p *Proposer) Status(sc *status.StatusConsumer) {
	sc.Emit("Proposer:")
	sc.Emit("- pending values: " + strconv.Itoa(len(p.pending)))
	sc.Emit("- active slots: " + strconv.Itoa(p.activeSlots()))
	sc.Emit("- next slot: " + strconv.FormatUint(p.nextSlot, 10))
	sc.Emit("- highest known decided: " + strconv.FormatInt(p.highestKnownDecided, 10))
	sc.Join()
}
