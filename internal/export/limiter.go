package export

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyExports is returned when no export slot frees up within the
// limiter's wait time. Clients should retry after a short delay.
var ErrTooManyExports = errors.New("too many exports in progress, please try again later")

const (
	DefaultMaxConcurrentExports = 4
	DefaultMaxWaitTime          = 30 * time.Second
)

// Limiter bounds how many exports render at once. PDF and XLSX renders hold
// the whole file in memory, so a burst of them is queued instead of run.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewLimiter allows maxConcurrent exports at a time. Callers that cannot get
// a slot within maxWait receive ErrTooManyExports. Non-positive arguments
// fall back to the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{slots: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Acquire blocks until a slot is free. It returns ctx's error when ctx ends
// first and ErrTooManyExports when the wait time runs out. Every successful
// Acquire must be paired with a Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyExports
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

func (l *Limiter) ActiveCount() int   { return int(l.active.Load()) }
func (l *Limiter) MaxConcurrent() int { return cap(l.slots) }
func (l *Limiter) Available() int     { return cap(l.slots) - len(l.slots) }

// WaitForDrain polls until no export holds a slot or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// LimiterStatus is reported on the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
	}
}
