// Package limiter bounds the number of concurrent outbound calls made by the
// process. Permits are meant to be held for a single call only.
package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type Limiter struct {
	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// New returns a limiter with the given number of permits. A non-positive
// capacity yields an unbounded limiter that only tracks in-flight calls.
func New(capacity int64) *Limiter {
	l := &Limiter{capacity: capacity}
	if capacity > 0 {
		l.sem = semaphore.NewWeighted(capacity)
	}
	return l
}

func (l *Limiter) Acquire(ctx context.Context) error {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	l.inFlight.Add(1)
	return nil
}

func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	if l.sem != nil {
		l.sem.Release(1)
	}
}

// Do runs fn while holding one permit. The permit is returned whether or not
// fn fails.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Capacity reports the permit count; 0 means unbounded.
func (l *Limiter) Capacity() int64 {
	if l.capacity < 0 {
		return 0
	}
	return l.capacity
}

func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}
