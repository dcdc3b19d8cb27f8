// internal/common/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrReservationRejected = errors.New("RATE_LIMIT_RESERVATION_REJECTED")

// Clock abstracts time so waits can be observed in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Limiter spaces outbound requests at least MinInterval apart. The first
// request never waits; concurrent callers are queued in reservation order.
// Instances are independent, so each shared resource gets its own.
type Limiter struct {
	lim         *rate.Limiter
	clock       Clock
	minInterval time.Duration

	mu sync.Mutex
	// last is the dispatch time handed to the most recent caller.
	last time.Time
}

type Option func(*Limiter)

func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

func New(minInterval time.Duration, opts ...Option) *Limiter {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	l := &Limiter{
		lim:         rate.NewLimiter(limit, 1),
		clock:       RealClock(),
		minInterval: minInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the caller may send a request or ctx is done. A cancelled
// wait gives its slot back.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	now := l.clock.Now()
	r := l.lim.ReserveN(now, 1)
	if !r.OK() {
		l.mu.Unlock()
		return ErrReservationRejected
	}

	// rate.Every holds the interval as a float and DelayFrom truncates, so
	// the wait can come out a nanosecond short. Never dispatch before
	// last+minInterval.
	delay := r.DelayFrom(now)
	if l.minInterval > 0 && !l.last.IsZero() {
		if floor := l.last.Add(l.minInterval).Sub(now); floor > delay {
			delay = floor
		}
	}
	if delay < 0 {
		delay = 0
	}
	prev, dispatch := l.last, now.Add(delay)
	l.last = dispatch
	l.mu.Unlock()

	if delay == 0 {
		return nil
	}
	if err := l.clock.Sleep(ctx, delay); err != nil {
		l.mu.Lock()
		r.CancelAt(l.clock.Now())
		if l.last.Equal(dispatch) {
			l.last = prev
		}
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}
