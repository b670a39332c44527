// Command proposer runs the proposer role of spec.md §4.3: receives
// client values (PROPOSE) on the proposers group, drives Paxos phases
// against the acceptors group, and disseminates decisions to the
// learners group.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	mp "github.com/nbro/multi-paxos"
	"github.com/nbro/multi-paxos/configuration"
	"github.com/nbro/multi-paxos/dispatcher"
	"github.com/nbro/multi-paxos/metrics"
	"github.com/nbro/multi-paxos/paxos"
	"github.com/nbro/multi-paxos/retry"
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/transport"
	"github.com/nbro/multi-paxos/wire"
)

func main() {
	var metricsPort int
	var selfLoopback bool
	var pipelineWindow uint64

	cmd := &cobra.Command{
		Use:   "proposer <role_uid> <config_path>",
		Short: "Run a Multi-Paxos proposer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			selfID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid role_uid %q: %w", args[0], err)
			}
			return run(uint32(selfID), args[1], metricsPort, selfLoopback, pipelineWindow)
		},
	}
	cmd.Flags().IntVar(&metricsPort, "metrics-port", mp.DefaultMetricsPort, "Port to serve Prometheus metrics on; 0 disables it.")
	cmd.Flags().BoolVar(&selfLoopback, "loopback", false, "Enable multicast loopback (single-host test deployments only).")
	cmd.Flags().Uint64Var(&pipelineWindow, "pipeline-window", 0, "Override the config's pipelining window W; 0 means use the config value.")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(selfID uint32, configPath string, metricsPort int, selfLoopback bool, windowOverride uint64) error {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "role", "proposer", "id", selfID)
	logger.Log("msg", "starting", "product", mp.ProductName, "version", mp.ProductVersion)

	cfg, err := configuration.LoadFromPath(configPath)
	if err != nil {
		return err
	}

	window := uint64(cfg.PipelineWindow)
	if window == 0 {
		window = mp.DefaultPipelineWindow
	}
	if windowOverride != 0 {
		window = windowOverride
	}

	groups, err := transport.JoinAll(cfg, selfLoopback, logger)
	if err != nil {
		return err
	}
	defer groups.Close(logger)

	reg := prometheus.NewRegistry()
	var proposerMetrics *metrics.Proposer
	if metricsPort != 0 {
		proposerMetrics = metrics.NewProposer(reg)
	}

	exe := dispatcher.NewExecutor("proposer", logger)
	defer exe.Shutdown()
	scheduler := retry.NewScheduler(exe)
	proposer := paxos.NewProposer(selfID, cfg.Quorum(), window, groups, scheduler, proposerMetrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if metricsPort != 0 {
		metrics.Serve(ctx, fmt.Sprintf(":%d", metricsPort), reg, logger)
	}

	go groups.Clients.RecvLoop(func(msg wire.Message) {
		exe.EnqueueFuncAsync(func() { dispatchClient(proposer, msg, logger) })
	}, logger)
	go groups.Proposers.RecvLoop(func(msg wire.Message) {
		exe.EnqueueFuncAsync(func() { dispatchProposer(proposer, msg, logger) })
	}, logger)
	go groups.Learners.RecvLoop(func(msg wire.Message) {
		if d, ok := msg.(wire.Decision); ok {
			exe.EnqueueFuncAsync(func() { proposer.HandleDecision(d) })
		}
	}, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, os.Interrupt, syscall.SIGUSR1)
	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			dumpStatus(proposer, exe)
		case syscall.SIGTERM, os.Interrupt:
			return nil
		}
	}
	return nil
}

func dispatchClient(proposer *paxos.Proposer, msg wire.Message, logger log.Logger) {
	if p, ok := msg.(wire.Propose); ok {
		proposer.HandlePropose(p)
		return
	}
	logger.Log("msg", "proposer received unexpected message on clients group", "tag", msg.Tag())
}

func dispatchProposer(proposer *paxos.Proposer, msg wire.Message, logger log.Logger) {
	switch m := msg.(type) {
	case wire.Propose:
		proposer.HandlePropose(m)
	case wire.Phase1B:
		proposer.HandlePhase1B(m)
	case wire.Phase2B:
		proposer.HandlePhase2B(m)
	default:
		logger.Log("msg", "proposer received unexpected message on proposers group", "tag", msg.Tag())
	}
}

func dumpStatus(proposer *paxos.Proposer, exe *dispatcher.Executor) {
	sc := status.NewStatusConsumer()
	go func() {
		str := sc.Wait()
		os.Stderr.WriteString(str + "\n")
	}()
	exe.Status(sc.Fork(), proposer.Status)
	sc.Join()
}
