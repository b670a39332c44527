// Package metrics exposes each role's Prometheus instrumentation,
// grounded on the teacher's paxos.ProposerMetrics{Gauge, Lifespan}
// pair and served the standard promhttp way since the teacher's own
// HTTP listener (ghttp.HttpListenerWithMux) is itself goshawkdb
// transport machinery this module has no use for.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Acceptor holds the counters an acceptor's Phase1A/Phase2A handling
// increments.
type Acceptor struct {
	Promises   prometheus.Counter
	Nacks1     prometheus.Counter
	Accepts    prometheus.Counter
	Nacks2     prometheus.Counter
	SlotsKnown prometheus.Gauge
}

func NewAcceptor(reg prometheus.Registerer) *Acceptor {
	factory := promauto.With(reg)
	return &Acceptor{
		Promises:   factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_acceptor_promises_total", Help: "Phase1B promises returned."}),
		Nacks1:     factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_acceptor_phase1_nacks_total", Help: "Phase1A requests rejected by a higher promised ballot."}),
		Accepts:    factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_acceptor_accepts_total", Help: "Phase2B acks returned."}),
		Nacks2:     factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_acceptor_phase2_nacks_total", Help: "Phase2A requests rejected by a higher promised ballot."}),
		SlotsKnown: factory.NewGauge(prometheus.GaugeOpts{Name: "multipaxos_acceptor_slots_known", Help: "Number of slots with any recorded acceptor state."}),
	}
}

// Proposer holds per-proposer instrumentation. Lifespan mirrors the
// teacher's per-transaction Observer: the time from a proposer first
// taking on a slot to that slot being decided.
type Proposer struct {
	Gauge        prometheus.Gauge
	Lifespan     prometheus.Observer
	Retries      prometheus.Counter
	Preemptions  prometheus.Counter
	Decided      prometheus.Counter
	PendingQueue prometheus.Gauge
}

func NewProposer(reg prometheus.Registerer) *Proposer {
	factory := promauto.With(reg)
	return &Proposer{
		Gauge:        factory.NewGauge(prometheus.GaugeOpts{Name: "multipaxos_proposer_active_slots", Help: "Slots currently being driven by this proposer."}),
		Lifespan:     factory.NewHistogram(prometheus.HistogramOpts{Name: "multipaxos_proposer_slot_lifespan_seconds", Help: "Time from a slot being taken on to it being decided.", Buckets: prometheus.DefBuckets}),
		Retries:      factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_proposer_retries_total", Help: "Phase retries issued due to timeout."}),
		Preemptions:  factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_proposer_preemptions_total", Help: "Times this proposer was preempted by a higher ballot."}),
		Decided:      factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_proposer_decided_total", Help: "Slots this proposer drove to a decision."}),
		PendingQueue: factory.NewGauge(prometheus.GaugeOpts{Name: "multipaxos_proposer_pending_values", Help: "Client values accepted but not yet assigned a slot."}),
	}
}

// Learner holds per-learner instrumentation.
type Learner struct {
	Emitted        prometheus.Counter
	CatchupSent    prometheus.Counter
	CatchupRecv    prometheus.Counter
	OutOfOrderGaps prometheus.Gauge
}

func NewLearner(reg prometheus.Registerer) *Learner {
	factory := promauto.With(reg)
	return &Learner{
		Emitted:        factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_learner_emitted_total", Help: "Decisions emitted in slot order."}),
		CatchupSent:    factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_learner_catchup_requests_total", Help: "Catch-up requests from other learners answered by this learner."}),
		CatchupRecv:    factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_learner_catchup_responses_total", Help: "Catch-up responses received from other learners."}),
		OutOfOrderGaps: factory.NewGauge(prometheus.GaugeOpts{Name: "multipaxos_learner_pending_gap_slots", Help: "Decided slots buffered ahead of the next slot to emit."}),
	}
}

// Client holds per-client-role instrumentation.
type Client struct {
	Submitted  prometheus.Counter
	Retransmit prometheus.Counter
	Confirmed  prometheus.Counter
}

func NewClient(reg prometheus.Registerer) *Client {
	factory := promauto.With(reg)
	return &Client{
		Submitted:  factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_client_submitted_total", Help: "PROPOSE datagrams sent, retransmissions included."}),
		Retransmit: factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_client_retransmits_total", Help: "PROPOSE retransmissions due to an unconfirmed decision."}),
		Confirmed:  factory.NewCounter(prometheus.CounterOpts{Name: "multipaxos_client_confirmed_total", Help: "Submitted values observed decided."}),
	}
}

// Serve starts the /metrics HTTP endpoint on addr and returns
// immediately; pass port 0 to the caller's config to skip calling this
// at all. Shutdown stops the listener when ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log("msg", "metrics listener stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
