package learner

import (
	"bytes"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbro/multi-paxos/wire"
)

type recordingSender struct {
	sent []wire.Message
}

func (r *recordingSender) SendToLearners(m wire.Message) error {
	r.sent = append(r.sent, m)
	return nil
}

func TestEmitsInOrderDespiteOutOfOrderArrival(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLearner(1, &recordingSender{}, out, nil, log.NewNopLogger())

	l.HandleDecision(wire.Decision{Slot: 2, Value: 30})
	l.HandleDecision(wire.Decision{Slot: 0, Value: 10})
	assert.Equal(t, "10\n", out.String())

	l.HandleDecision(wire.Decision{Slot: 1, Value: 20})
	assert.Equal(t, "10\n20\n30\n", out.String())
}

func TestDuplicateDecisionIsIdempotent(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLearner(1, &recordingSender{}, out, nil, log.NewNopLogger())

	l.HandleDecision(wire.Decision{Slot: 0, Value: 10})
	l.HandleDecision(wire.Decision{Slot: 0, Value: 10})
	assert.Equal(t, "10\n", out.String())
}

func TestCatchupRespHandledLikeDecision(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLearner(1, &recordingSender{}, out, nil, log.NewNopLogger())

	l.HandleCatchupResp(wire.CatchupResp{Slot: 0, Value: 10})
	l.HandleCatchupResp(wire.CatchupResp{Slot: 1, Value: 20})
	assert.Equal(t, "10\n20\n", out.String())
}

func TestStartSendsCatchupReqWithMinusOneWhenEmpty(t *testing.T) {
	rs := &recordingSender{}
	l := NewLearner(1, rs, new(bytes.Buffer), nil, log.NewNopLogger())
	l.Start()
	require.Len(t, rs.sent, 1)
	req := rs.sent[0].(wire.CatchupReq)
	assert.Equal(t, int64(-1), req.HighestKnownSlot)
}

func TestCatchupReqRespondsWithSlotsAboveRequesterHighest(t *testing.T) {
	out := new(bytes.Buffer)
	rs := &recordingSender{}
	l := NewLearner(1, rs, out, nil, log.NewNopLogger())
	l.HandleDecision(wire.Decision{Slot: 0, Value: 10})
	l.HandleDecision(wire.Decision{Slot: 1, Value: 20})
	l.HandleDecision(wire.Decision{Slot: 2, Value: 30})

	l.HandleCatchupReq(wire.CatchupReq{RequesterID: 2, HighestKnownSlot: 0})

	require.Len(t, rs.sent, 2)
	slots := map[uint64]int64{}
	for _, m := range rs.sent {
		resp := m.(wire.CatchupResp)
		slots[resp.Slot] = resp.Value
	}
	assert.Equal(t, map[uint64]int64{1: 20, 2: 30}, slots)
}
