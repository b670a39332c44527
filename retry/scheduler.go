// Package retry schedules per-slot Paxos phase retries. It is
// grounded on the teacher's txnengine.VarManager: a
// msackman/gotimerwheel TimerWheel driven by a self-ticking beater
// goroutine that only runs while the wheel is non-empty, combined with
// the jittered multipaxos.BinaryBackoffEngine for the actual delay
// chosen each time a slot is rescheduled.
package retry

import (
	"math/rand"
	"time"

	tw "github.com/msackman/gotimerwheel"

	mp "github.com/nbro/multi-paxos"
	"github.com/nbro/multi-paxos/dispatcher"
)

// Granularity is the wheel's tick width; spec.md's retry timers need
// nothing finer than this to behave correctly.
const granularity = mp.RetryWheelGranularity

// Scheduler schedules and cancels per-slot retry callbacks. All
// scheduled callbacks run on exe's actor goroutine, so they may touch
// the owning role's state directly.
type Scheduler struct {
	wheel      *tw.TimerWheel
	exe        *dispatcher.Executor
	beaterStop chan struct{}

	// backoffs holds one BinaryBackoffEngine per slot so repeated
	// retries of the same slot back off independently of every other
	// slot's contention.
	backoffs map[uint64]*mp.BinaryBackoffEngine
	rng      *rand.Rand
}

// NewScheduler creates a Scheduler that runs its callbacks by
// enqueuing them onto exe.
func NewScheduler(exe *dispatcher.Executor) *Scheduler {
	return &Scheduler{
		wheel:    tw.NewTimerWheel(time.Now(), granularity),
		exe:      exe,
		backoffs: make(map[uint64]*mp.BinaryBackoffEngine),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ScheduleRetry arranges for fn to run after this slot's current
// backoff delay, advancing that slot's backoff for next time. The
// first retry for a slot uses mp.RetryMinDelay; each subsequent retry
// of the same slot (without an intervening Forget) roughly doubles,
// capped at mp.RetryMaxDelay.
func (s *Scheduler) ScheduleRetry(slot uint64, fn func()) {
	bbe, ok := s.backoffs[slot]
	if !ok {
		bbe = mp.NewBinaryBackoffEngine(s.rng, mp.RetryMinDelay, mp.RetryMaxDelay)
		s.backoffs[slot] = bbe
	}
	delay := bbe.Advance()
	if delay <= 0 {
		delay = mp.RetryMinDelay
	}
	s.scheduleIn(delay, fn)
}

// Forget drops slot's backoff state, e.g. once it has been decided and
// will never be retried again.
func (s *Scheduler) Forget(slot uint64) {
	delete(s.backoffs, slot)
}

// ShrinkBackoff halves slot's backoff period, if it has one, so a slot
// that cleared contention at this round doesn't carry an inflated
// period into whatever comes next. A no-op if no retry has been
// scheduled for slot since it was last forgotten.
func (s *Scheduler) ShrinkBackoff(slot uint64) {
	if bbe, ok := s.backoffs[slot]; ok {
		bbe.Shrink(0)
	}
}

// ScheduleFixed arranges for fn to run after exactly d, with no
// backoff growth — for callers like the client's retransmit timer that
// want a flat period rather than Paxos's fast-growing phase-retry
// backoff.
func (s *Scheduler) ScheduleFixed(d time.Duration, fn func()) {
	s.scheduleIn(d, fn)
}

func (s *Scheduler) scheduleIn(d time.Duration, fn func()) {
	event := tw.Event(func() {
		s.exe.EnqueueFuncAsync(func() { fn() })
	})
	if err := s.wheel.ScheduleEventIn(d, event); err != nil {
		panic(err)
	}
	if s.beaterStop == nil {
		s.beaterStop = make(chan struct{})
		go s.beat(s.beaterStop)
	}
}

func (s *Scheduler) tick() {
	s.wheel.AdvanceTo(time.Now(), 32)
	if s.wheel.IsEmpty() && s.beaterStop != nil {
		close(s.beaterStop)
		s.beaterStop = nil
	}
}

func (s *Scheduler) beat(terminate chan struct{}) {
	sleep := granularity
	for {
		time.Sleep(sleep)
		select {
		case <-terminate:
			return
		default:
			s.exe.EnqueueFuncAsync(s.tick)
		}
	}
}

// Pending reports how many retry callbacks are currently scheduled.
func (s *Scheduler) Pending() int {
	return s.wheel.Length()
}
