package multipaxos

import (
	"math/rand"
	"time"

	"github.com/go-kit/kit/log"
)

// CheckWarn logs e as a warning and returns true iff e is non-nil.
// Mirrors the teacher's server.CheckWarn, used on the best-effort send
// path (spec.md §7, "Send failure": log and continue).
func CheckWarn(e error, logger log.Logger) bool {
	if e != nil {
		logger.Log("msg", "Warning", "error", e)
		return true
	}
	return false
}

// BinaryBackoffEngine is the teacher's jittered exponential backoff
// (consts.go's SubmissionMinSubmitDelay/MaxSubmitDelay, utils.go's
// BinaryBackoffEngine), reused verbatim here to drive Paxos phase
// retries (spec.md §4.3, "jittered backoff is permitted").
type BinaryBackoffEngine struct {
	rng    *rand.Rand
	min    time.Duration
	max    time.Duration
	period time.Duration
	Cur    time.Duration
}

func NewBinaryBackoffEngine(rng *rand.Rand, min, max time.Duration) *BinaryBackoffEngine {
	if min <= 0 {
		return nil
	}
	return &BinaryBackoffEngine{
		rng:    rng,
		min:    min,
		max:    max,
		period: min,
		Cur:    0,
	}
}

// Advance doubles the backoff period (capped at max), draws a new
// jittered Cur from it, and returns the previous Cur — the delay the
// caller should actually wait before its next retry.
func (bbe *BinaryBackoffEngine) Advance() time.Duration {
	oldCur := bbe.Cur
	bbe.period *= 2
	if bbe.period > bbe.max {
		bbe.period = bbe.max
	}
	bbe.Cur = time.Duration(bbe.rng.Intn(int(bbe.period)))
	return oldCur
}

// Shrink halves the backoff period (floored at min) after a success,
// so a slot that starts retrying again soon doesn't inherit a stale
// long backoff from an earlier, unrelated contention episode.
func (bbe *BinaryBackoffEngine) Shrink(roundToZero time.Duration) {
	bbe.period /= 2
	if bbe.period < bbe.min {
		bbe.period = bbe.min
	}
	bbe.Cur = time.Duration(bbe.rng.Intn(int(bbe.period)))
	if bbe.Cur <= roundToZero {
		bbe.Cur = 0
	}
}
