package paxos

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbro/multi-paxos/dispatcher"
	"github.com/nbro/multi-paxos/retry"
	"github.com/nbro/multi-paxos/wire"
)

type recordingProposerSender struct {
	acceptors []wire.Message
	learners  []wire.Message
}

func (r *recordingProposerSender) SendToAcceptors(m wire.Message) error {
	r.acceptors = append(r.acceptors, m)
	return nil
}

func (r *recordingProposerSender) SendToLearners(m wire.Message) error {
	r.learners = append(r.learners, m)
	return nil
}

func newTestProposer(quorum int, window uint64) (*Proposer, *recordingProposerSender) {
	rs := &recordingProposerSender{}
	exe := dispatcher.NewExecutor("test", log.NewNopLogger())
	sched := retry.NewScheduler(exe)
	return NewProposer(1, quorum, window, rs, sched, nil, log.NewNopLogger()), rs
}

func lastPhase1A(rs *recordingProposerSender) wire.Phase1A {
	return rs.acceptors[len(rs.acceptors)-1].(wire.Phase1A)
}

func TestProposeStartsSlotZero(t *testing.T) {
	p, rs := newTestProposer(2, 8)
	p.HandlePropose(wire.Propose{SenderID: 5, ClientID: 5, ClientSeq: 1, Value: 42})

	require.Len(t, rs.acceptors, 1)
	p1a := lastPhase1A(rs)
	assert.Equal(t, uint64(0), p1a.Slot)
	assert.Equal(t, uint64(1), p1a.Ballot.Round)
	assert.Equal(t, uint32(1), p1a.Ballot.ProposerID)
}

func TestDuplicatePropseIsDeduped(t *testing.T) {
	p, rs := newTestProposer(2, 8)
	msg := wire.Propose{SenderID: 5, ClientID: 5, ClientSeq: 1, Value: 42}
	p.HandlePropose(msg)
	p.HandlePropose(msg)
	assert.Len(t, rs.acceptors, 1)
	assert.Len(t, p.pending, 0)
}

func TestQuorumOfPhase1BAdvancesToPhase2(t *testing.T) {
	p, rs := newTestProposer(2, 8)
	p.HandlePropose(wire.Propose{SenderID: 5, ClientID: 5, ClientSeq: 1, Value: 42})
	ballot := p.slots[0].currentBallot

	p.HandlePhase1B(wire.Phase1B{SenderID: 10, Slot: 0, Promised: ballot})
	p.HandlePhase1B(wire.Phase1B{SenderID: 11, Slot: 0, Promised: ballot})

	require.Len(t, rs.acceptors, 2)
	p2a := rs.acceptors[1].(wire.Phase2A)
	assert.Equal(t, int64(42), p2a.Value)
	assert.Equal(t, phasePhase2, p.slots[0].phase)
}

func TestPhase1BOverridesWithPreviouslyAcceptedValue(t *testing.T) {
	p, rs := newTestProposer(2, 8)
	p.HandlePropose(wire.Propose{SenderID: 5, ClientID: 5, ClientSeq: 1, Value: 42})
	ballot := p.slots[0].currentBallot

	p.HandlePhase1B(wire.Phase1B{
		SenderID: 10, Slot: 0, Promised: ballot,
		HasValue: false,
	})
	// simulate an acceptor that had already accepted a value at a
	// non-zero ballot (round 1 from proposer 2)
	accepted := wire.Ballot{Round: 1, ProposerID: 2}
	p.HandlePhase1B(wire.Phase1B{
		SenderID: 11, Slot: 0, Promised: ballot,
		AcceptedBallot: accepted, HasValue: true, Value: 999,
	})

	require.Len(t, rs.acceptors, 2)
	p2a := rs.acceptors[1].(wire.Phase2A)
	assert.Equal(t, int64(999), p2a.Value)
	// the original value is back at the front of the pending FIFO
	require.Len(t, p.pending, 1)
	assert.Equal(t, int64(42), p.pending[0])
}

func TestPreemptionRestartsPhase1WithHigherRound(t *testing.T) {
	p, rs := newTestProposer(2, 8)
	p.HandlePropose(wire.Propose{SenderID: 5, ClientID: 5, ClientSeq: 1, Value: 42})
	firstBallot := p.slots[0].currentBallot

	higher := wire.Ballot{Round: firstBallot.Round + 10, ProposerID: 2}
	p.HandlePhase1B(wire.Phase1B{SenderID: 10, Slot: 0, Promised: higher})

	require.Len(t, rs.acceptors, 2)
	retried := lastPhase1A(rs)
	assert.True(t, retried.Ballot.Greater(higher))
	assert.Equal(t, phasePhase1, p.slots[0].phase)
}

func TestQuorumOfPhase2BDecides(t *testing.T) {
	p, rs := newTestProposer(2, 8)
	p.HandlePropose(wire.Propose{SenderID: 5, ClientID: 5, ClientSeq: 1, Value: 42})
	ballot := p.slots[0].currentBallot
	p.HandlePhase1B(wire.Phase1B{SenderID: 10, Slot: 0, Promised: ballot})
	p.HandlePhase1B(wire.Phase1B{SenderID: 11, Slot: 0, Promised: ballot})

	p.HandlePhase2B(wire.Phase2B{SenderID: 10, Slot: 0, Ballot: ballot, Ok: true})
	p.HandlePhase2B(wire.Phase2B{SenderID: 11, Slot: 0, Ballot: ballot, Ok: true})

	require.Len(t, rs.learners, 1)
	decision := rs.learners[0].(wire.Decision)
	assert.Equal(t, uint64(0), decision.Slot)
	assert.Equal(t, int64(42), decision.Value)
	assert.Equal(t, phaseDecided, p.slots[0].phase)
	assert.Equal(t, int64(0), p.highestKnownDecided)
}

func TestPipelineWindowBoundsSlotAssignment(t *testing.T) {
	p, rs := newTestProposer(2, 1) // window of 1: only slot 0 may start before any decision (highest known decided is -1)
	for i := 0; i < 5; i++ {
		p.HandlePropose(wire.Propose{SenderID: 5, ClientID: 5, ClientSeq: uint64(i), Value: int64(i)})
	}
	assert.Len(t, p.slots, 1)
	assert.Len(t, p.pending, 4)
	_ = rs
}
