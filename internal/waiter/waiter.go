// Package waiter is the bounded-poll primitive behind every "wait for X"
// step: a fixed delay, an explicit attempt budget, and a hard ceiling on the
// total wait regardless of what the caller asked for.
package waiter

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	// PollDelay is the fixed interval between condition probes.
	PollDelay = 15 * time.Second

	// MaxWaitMinutes caps every wait; requested durations beyond it are clamped.
	MaxWaitMinutes = 360
)

// Policy bounds a single wait. It is constructed fresh per wait call and
// discarded after.
type Policy struct {
	Delay       time.Duration
	MaxAttempts int
}

// FromMinutes derives a policy from a requested wait duration in minutes.
func FromMinutes(minutes int) Policy {
	if minutes > MaxWaitMinutes {
		minutes = MaxWaitMinutes
	}
	if minutes < 0 {
		minutes = 0
	}
	attempts := int(math.Ceil(float64(minutes) * 60 / PollDelay.Seconds()))
	return Policy{Delay: PollDelay, MaxAttempts: attempts}
}

// Budget is the total time the policy allows.
func (p Policy) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Delay
}

// Probe reports whether the awaited condition holds. A probe error is fatal
// to the wait; there is no retry beyond the attempt budget.
type Probe func(ctx context.Context) (bool, error)

// TimeoutError reports a wait that exhausted its attempt budget.
type TimeoutError struct {
	Condition string
	Budget    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %s", e.Condition, e.Budget)
}

// Wait polls probe at the policy's fixed interval until the condition holds,
// the probe fails, or the attempt budget runs out. The first probe fires
// immediately; the delay applies between attempts.
func Wait(ctx context.Context, condition string, p Policy, probe Probe) error {
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return &TimeoutError{Condition: condition, Budget: p.Budget()}
}
