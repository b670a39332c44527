// Command acceptor runs the passive acceptor role of spec.md §4.2:
// <role_uid> <config_path>, exiting 0 on SIGTERM and dumping status on
// SIGUSR1. Structure mirrors the teacher's cmd/goshawkdb main: a
// logfmt logger with a UTC timestamp, flag parsing for operational
// knobs, and a dedicated signal-handling goroutine.
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
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/transport"
	"github.com/nbro/multi-paxos/wire"
)

func main() {
	var metricsPort int
	var selfLoopback bool

	cmd := &cobra.Command{
		Use:   "acceptor <role_uid> <config_path>",
		Short: "Run a Multi-Paxos acceptor",
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
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "role", "acceptor", "id", selfID)
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
	var acceptorMetrics *metrics.Acceptor
	if metricsPort != 0 {
		acceptorMetrics = metrics.NewAcceptor(reg)
	}

	exe := dispatcher.NewExecutor("acceptor", logger)
	defer exe.Shutdown()
	acceptor := paxos.NewAcceptor(selfID, groups, acceptorMetrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if metricsPort != 0 {
		metrics.Serve(ctx, fmt.Sprintf(":%d", metricsPort), reg, logger)
	}

	go groups.Acceptors.RecvLoop(func(msg wire.Message) {
		exe.EnqueueFuncAsync(func() { dispatch(acceptor, msg, logger) })
	}, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, os.Interrupt, syscall.SIGUSR1)
	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			dumpStatus(acceptor, exe)
		case syscall.SIGTERM, os.Interrupt:
			return nil
		}
	}
	return nil
}

func dispatch(acceptor *paxos.Acceptor, msg wire.Message, logger log.Logger) {
	switch m := msg.(type) {
	case wire.Phase1A:
		acceptor.HandlePhase1A(m)
	case wire.Phase2A:
		acceptor.HandlePhase2A(m)
	default:
		logger.Log("msg", "acceptor received unexpected message kind", "tag", msg.Tag())
	}
}

func dumpStatus(acceptor *paxos.Acceptor, exe *dispatcher.Executor) {
	sc := status.NewStatusConsumer()
	go func() {
		str := sc.Wait()
		os.Stderr.WriteString(str + "\n")
	}()
	exe.Status(sc.Fork(), acceptor.Status)
	sc.Join()
}
