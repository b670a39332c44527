package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEachRoleRegistersWithoutCollision(t *testing.T) {
	reg := prometheus.NewRegistry()

	acceptor := NewAcceptor(reg)
	proposer := NewProposer(reg)
	learner := NewLearner(reg)
	client := NewClient(reg)

	require.NotNil(t, acceptor)
	require.NotNil(t, proposer)
	require.NotNil(t, learner)
	require.NotNil(t, client)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCountersAreIndependentAcrossRegistries(t *testing.T) {
	regA := prometheus.NewRegistry()
	regB := prometheus.NewRegistry()

	acceptorA := NewAcceptor(regA)
	acceptorB := NewAcceptor(regB)

	acceptorA.Promises.Inc()
	acceptorA.Promises.Inc()
	acceptorB.Promises.Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(acceptorA.Promises))
	assert.Equal(t, float64(1), testutil.ToFloat64(acceptorB.Promises))
}
