// Package status implements the SIGUSR1 status-dump tree used by every
// role binary, grounded on the teacher's utils/status package (observed
// through its call sites in cmd/goshawkdb/main.go and
// paxos/acceptor.go: StatusConsumer.Emit/Fork/Join, StatusEmitter,
// NewStatusConsumer().Wait()).
package status

import (
	"bytes"
	"sync"
)

// StatusConsumer collects a human-readable status tree. The root is
// created with NewStatusConsumer; each subsystem being asked to report
// receives a forked child via Fork, emits its own lines, may Fork
// further for sub-components, and finally calls Join exactly once to
// signal its own contribution is complete.
type StatusConsumer struct {
	buf    *bytes.Buffer
	mu     *sync.Mutex
	wg     *sync.WaitGroup
	indent string
}

// StatusEmitter is implemented by any subsystem that can describe
// itself into a forked StatusConsumer.
type StatusEmitter interface {
	Status(sc *StatusConsumer)
}

// NewStatusConsumer creates a root consumer. The caller must
// eventually call Join on it (mirroring every forked child) and can
// then read the result with Wait.
func NewStatusConsumer() *StatusConsumer {
	sc := &StatusConsumer{
		buf: new(bytes.Buffer),
		mu:  new(sync.Mutex),
		wg:  new(sync.WaitGroup),
	}
	sc.wg.Add(1)
	return sc
}

// Emit appends one indented line to the tree.
func (sc *StatusConsumer) Emit(s string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.buf.WriteString(sc.indent)
	sc.buf.WriteString(s)
	sc.buf.WriteString("\n")
}

// Fork reserves a slot for a nested report and returns the child
// consumer to hand to it. The child must eventually call Join.
func (sc *StatusConsumer) Fork() *StatusConsumer {
	sc.wg.Add(1)
	return &StatusConsumer{
		buf:    sc.buf,
		mu:     sc.mu,
		wg:     sc.wg,
		indent: sc.indent + "  ",
	}
}

// Join marks this consumer's own contribution as complete. Forks it
// made are not covered: each must call its own Join.
func (sc *StatusConsumer) Join() {
	sc.wg.Done()
}

// Wait blocks until every outstanding Fork has been Join-ed and
// returns the accumulated tree.
func (sc *StatusConsumer) Wait() string {
	sc.wg.Wait()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.buf.String()
}
