// Command client runs the client role of spec.md §4.5: read
// newline-delimited integers from standard input, multicast a PROPOSE
// for each, and retransmit anything not yet observed decided. Exits
// once standard input is exhausted and every submission has at least
// been sent once.
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
	"github.com/nbro/multi-paxos/clientrole"
	"github.com/nbro/multi-paxos/configuration"
	"github.com/nbro/multi-paxos/dispatcher"
	"github.com/nbro/multi-paxos/metrics"
	"github.com/nbro/multi-paxos/retry"
	"github.com/nbro/multi-paxos/status"
	"github.com/nbro/multi-paxos/transport"
	"github.com/nbro/multi-paxos/wire"
)

func main() {
	var metricsPort int
	var selfLoopback bool

	cmd := &cobra.Command{
		Use:   "client <role_uid> <config_path>",
		Short: "Run a Multi-Paxos client",
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
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "role", "client", "id", selfID)
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
	var clientMetrics *metrics.Client
	if metricsPort != 0 {
		clientMetrics = metrics.NewClient(reg)
	}

	exe := dispatcher.NewExecutor("client", logger)
	defer exe.Shutdown()
	scheduler := retry.NewScheduler(exe)
	client := clientrole.NewClient(selfID, groups, scheduler, clientMetrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if metricsPort != 0 {
		metrics.Serve(ctx, fmt.Sprintf(":%d", metricsPort), reg, logger)
	}

	// Decisions are watched read-only to retire outstanding
	// submissions; retransmit timers fire on the same executor so the
	// two never race on the outstanding map.
	go groups.Learners.RecvLoop(func(msg wire.Message) {
		if d, ok := msg.(wire.Decision); ok {
			exe.EnqueueFuncAsync(func() { client.HandleDecision(d) })
		}
	}, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, os.Interrupt, syscall.SIGUSR1)
	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGUSR1:
				dumpStatus(client, exe)
			case syscall.SIGTERM, os.Interrupt:
				os.Exit(0)
			}
		}
	}()

	exe.EnqueueFuncSync(func() { client.Run(os.Stdin) })
	logger.Log("msg", "input exhausted, exiting")
	return nil
}

func dumpStatus(client *clientrole.Client, exe *dispatcher.Executor) {
	sc := status.NewStatusConsumer()
	go func() {
		str := sc.Wait()
		os.Stderr.WriteString(str + "\n")
	}()
	exe.Status(sc.Fork(), client.Status)
	sc.Join()
}
