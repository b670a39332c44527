// Command learner runs the learner role of spec.md §4.4: assembles
// the totally-ordered decided log and writes it, one value per line,
// to standard output — the operational contract downstream checkers
// diff against, so nothing else may write to stdout.
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
	"github.com/nbro/multi-paxos/learner"
	"github.com/nbro/multi-paxos/metrics"
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/transport"
	"github.com/nbro/multi-paxos/wire"
)

func main() {
	var metricsPort int
	var selfLoopback bool

	cmd := &cobra.Command{
		Use:   "learner <role_uid> <config_path>",
		Short: "Run a Multi-Paxos learner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			selfID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid role_uid %q: %w", args[0], err)
			}
			return run(uint32(selfID), args[1], metricsPort, selfLoopback)
		},
	}
	cmd.Flags().IntVar(&metricsPort, "metrics-port", mp.DefaultMetricsPort, "Port to serve Prometheus metrics on; 0 disables it.")
	cmd.Flags().BoolVar(&selfLoopback, "loopback", false, "Enable multicast loopback (single-host test deployments only).")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(selfID uint32, configPath string, metricsPort int, selfLoopback bool) error {
	// This role's own log and status output go to stderr; stdout is
	// reserved exclusively for emitted decided values.
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "role", "learner", "id", selfID)
	logger.Log("msg", "starting", "product", mp.ProductName, "version", mp.ProductVersion)

	cfg, err := configuration.LoadFromPath(configPath)
	if err != nil {
		return err
	}

	groups, err := transport.JoinAll(cfg, selfLoopback, logger)
	if err != nil {
		return err
	}
	defer groups.Close(logger)

	reg := prometheus.NewRegistry()
	var learnerMetrics *metrics.Learner
	if metricsPort != 0 {
		learnerMetrics = metrics.NewLearner(reg)
	}

	exe := dispatcher.NewExecutor("learner", logger)
	defer exe.Shutdown()
	l := learner.NewLearner(selfID, groups, os.Stdout, learnerMetrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if metricsPort != 0 {
		metrics.Serve(ctx, fmt.Sprintf(":%d", metricsPort), reg, logger)
	}

	exe.EnqueueFuncAsync(l.Start)

	go groups.Learners.RecvLoop(func(msg wire.Message) {
		exe.EnqueueFuncAsync(func() { dispatch(l, msg, logger) })
	}, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, os.Interrupt, syscall.SIGUSR1)
	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			dumpStatus(l, exe)
		case syscall.SIGTERM, os.Interrupt:
			return nil
		}
	}
	return nil
}

func dispatch(l *learner.Learner, msg wire.Message, logger log.Logger) {
	switch m := msg.(type) {
	case wire.Decision:
		l.HandleDecision(m)
	case wire.CatchupReq:
		l.HandleCatchupReq(m)
	case wire.CatchupResp:
		l.HandleCatchupResp(m)
	default:
		logger.Log("msg", "learner received unexpected message kind", "tag", msg.Tag())
	}
}

func dumpStatus(l *learner.Learner, exe *dispatcher.Executor) {
	sc := status.NewStatusConsumer()
	go func() {
		str := sc.Wait()
		os.Stderr.WriteString(str + "\n")
	}()
	exe.Status(sc.Fork(), l.Status)
	sc.Join()
}
