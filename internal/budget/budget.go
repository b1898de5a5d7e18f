// Package budget tracks the wall-clock allowance of one analysis call.
package budget

import (
	"context"
	"time"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Budget is a fixed deadline. It is never mutated after creation; every
// query recomputes against the clock.
type Budget struct {
	start    time.Time
	deadline time.Time
	now      Clock
}

// New starts a budget of total length measured from now.
func New(total time.Duration) Budget {
	return NewWithClock(total, time.Now)
}

// NewWithClock starts a budget against a custom clock.
func NewWithClock(total time.Duration, clock Clock) Budget {
	if clock == nil {
		clock = time.Now
	}
	start := clock()
	return Budget{start: start, deadline: start.Add(total), now: clock}
}

// Deadline returns the absolute deadline.
func (b Budget) Deadline() time.Time { return b.deadline }

// Total returns the original allowance.
func (b Budget) Total() time.Duration { return b.deadline.Sub(b.start) }

// Remaining returns max(0, deadline-now).
func (b Budget) Remaining() time.Duration {
	return max(0, b.deadline.Sub(b.clock()()))
}

// Elapsed returns time spent since the budget started.
func (b Budget) Elapsed() time.Duration {
	return b.clock()().Sub(b.start)
}

// Met reports whether the elapsed time is within the original allowance.
func (b Budget) Met() bool {
	return b.Elapsed() <= b.Total()
}

// StageTimeout returns remaining minus margin, floored at floor.
func (b Budget) StageTimeout(margin, floor time.Duration) time.Duration {
	return max(floor, b.Remaining()-margin)
}

// WithStage derives a context bounded by timeout, never extending past a
// deadline already present on ctx.
func WithStage(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func (b Budget) clock() Clock {
	if b.now == nil {
		return time.Now
	}
	return b.now
}
