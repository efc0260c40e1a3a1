// Package ratelimit provides the politeness pacing inserted between
// successive remote calls. This is independent of error handling: the pacer
// runs on the happy path to avoid triggering rate limits in the first place,
// while flood-wait backoff lives in the retry invoker.
package ratelimit

import (
	"context"
	"time"
)

// Pacer spaces out successive remote calls
type Pacer interface {
	// Pace records one unit of work and sleeps when a pause is due
	Pace(ctx context.Context) error
	// Reset restarts the pacing window
	Reset()
}

// IntervalPacer sleeps for a fixed delay once per Every calls. The run is
// strictly serial, so no locking is needed.
type IntervalPacer struct {
	delay time.Duration
	every int
	count int
}

// NewIntervalPacer creates a pacer that sleeps delay once per every calls.
// every values below 1 are treated as 1 (sleep on each call).
func NewIntervalPacer(delay time.Duration, every int) *IntervalPacer {
	if every < 1 {
		every = 1
	}
	return &IntervalPacer{delay: delay, every: every}
}

// Pace counts one call and sleeps when the interval boundary is reached
func (p *IntervalPacer) Pace(ctx context.Context) error {
	p.count++
	if p.delay <= 0 || p.count%p.every != 0 {
		return nil
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset restarts the call counter
func (p *IntervalPacer) Reset() {
	p.count = 0
}
