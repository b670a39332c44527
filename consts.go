// Package multipaxos holds the constants and small utilities shared by
// every role binary: product identity, timing defaults and the
// jittered backoff engine used to retry Paxos phases.
package multipaxos

import (
	"time"
)

const (
	ProductName    = "multi-paxos"
	ProductVersion = "dev"

	// DefaultAcceptorCount is used only when a Config omits AcceptorCount.
	DefaultAcceptorCount = 3

	// RetryMinDelay/RetryMaxDelay bound the binary backoff applied to a
	// proposer's phase retry timer. Mirrors the teacher's
	// SubmissionMinSubmitDelay/SubmissionMaxSubmitDelay.
	RetryMinDelay = 20 * time.Millisecond
	RetryMaxDelay = 2 * time.Second

	// RetryWheelGranularity is the tick size of the retry timer wheel.
	RetryWheelGranularity = 10 * time.Millisecond

	// ClientRetransmitDelay is how long a client waits for a decision
	// covering its proposal before resending it with the same sequence
	// number.
	ClientRetransmitDelay = 2 * time.Second

	// DefaultMetricsPort is the HTTP port Prometheus metrics are served
	// on; 0 disables the listener.
	DefaultMetricsPort = 9090

	// DefaultPipelineWindow is the default value of W in spec.md §4.3:
	// a proposer may have at most this many slots beyond
	// highest_known_decided in flight at once.
	DefaultPipelineWindow = 8
)
