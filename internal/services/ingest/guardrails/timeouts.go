// Package guardrails holds the time budgets a run is held to
package guardrails

import (
	"context"
	"time"
)

// Timeouts is the budget bundle for one run.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Run is the overall budget for one batch
	Run time.Duration

	// Store caps one keyed reconcile and write, retries included
	Store time.Duration

	// Sink caps handing the summary to the run sink
	Sink time.Duration
}

// WithRun returns a context limited by the run budget without extending any parent deadline
func WithRun(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Run)
}

// ForStore returns a sub context for one keyed write bounded by Store and any remaining parent budget
func ForStore(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Store)
}

// ForSink returns a context for the sink that outlives cancellation of parent.
// The summary of an aborted run is still recorded
func ForSink(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	d := t.Sink
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(parent), d)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of d and any parent remainder.
// When d is zero it returns a cancelable child inheriting the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
