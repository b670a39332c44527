package paxos

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbro/multi-paxos/wire"
)

type recordingSender struct {
	sent []wire.Message
}

func (r *recordingSender) SendToProposers(m wire.Message) error {
	r.sent = append(r.sent, m)
	return nil
}

func newTestAcceptor() (*Acceptor, *recordingSender) {
	rs := &recordingSender{}
	return NewAcceptor(1, rs, nil, log.NewNopLogger()), rs
}

func TestPhase1APromisesHigherBallot(t *testing.T) {
	a, rs := newTestAcceptor()
	b := wire.Ballot{Round: 1, ProposerID: 9}

	a.HandlePhase1A(wire.Phase1A{SenderID: 9, Slot: 5, Ballot: b})

	require.Len(t, rs.sent, 1)
	reply := rs.sent[0].(wire.Phase1B)
	assert.Equal(t, b, reply.Promised)
	assert.False(t, reply.HasValue)
}

func TestPhase1ANacksLowerBallot(t *testing.T) {
	a, rs := newTestAcceptor()
	high := wire.Ballot{Round: 5, ProposerID: 1}
	low := wire.Ballot{Round: 1, ProposerID: 9}

	a.HandlePhase1A(wire.Phase1A{SenderID: 1, Slot: 5, Ballot: high})
	a.HandlePhase1A(wire.Phase1A{SenderID: 9, Slot: 5, Ballot: low})

	reply := rs.sent[1].(wire.Phase1B)
	assert.Equal(t, high, reply.Promised)
}

func TestPhase2AAcceptsAtOrAbovePromise(t *testing.T) {
	a, rs := newTestAcceptor()
	b := wire.Ballot{Round: 1, ProposerID: 1}

	a.HandlePhase1A(wire.Phase1A{SenderID: 1, Slot: 5, Ballot: b})
	a.HandlePhase2A(wire.Phase2A{SenderID: 1, Slot: 5, Ballot: b, Value: 42})

	reply := rs.sent[1].(wire.Phase2B)
	assert.True(t, reply.Ok)
	assert.Equal(t, b, reply.Ballot)

	// A follow-up PHASE1A at the same slot now sees the accepted value.
	a.HandlePhase1A(wire.Phase1A{SenderID: 2, Slot: 5, Ballot: wire.Ballot{Round: 2, ProposerID: 2}})
	p1b := rs.sent[2].(wire.Phase1B)
	assert.True(t, p1b.HasValue)
	assert.Equal(t, int64(42), p1b.Value)
	assert.Equal(t, b, p1b.AcceptedBallot)
}

func TestPhase2ANacksBelowPromise(t *testing.T) {
	a, rs := newTestAcceptor()
	high := wire.Ballot{Round: 5, ProposerID: 1}
	low := wire.Ballot{Round: 1, ProposerID: 9}

	a.HandlePhase1A(wire.Phase1A{SenderID: 1, Slot: 5, Ballot: high})
	a.HandlePhase2A(wire.Phase2A{SenderID: 9, Slot: 5, Ballot: low, Value: 1})

	reply := rs.sent[1].(wire.Phase2B)
	assert.False(t, reply.Ok)
	assert.Equal(t, high, reply.Promised)
}

func TestSlotsAreLazilyMaterialised(t *testing.T) {
	a, _ := newTestAcceptor()
	assert.Empty(t, a.slots)
	a.slot(7)
	assert.Len(t, a.slots, 1)
}
