package limiter_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/wuwenbin0122/assistant-relay/internal/limiter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLimiterCapsConcurrentCalls(t *testing.T) {
	const (
		capacity = 3
		workers  = 20
	)

	l := limiter.New(capacity)

	var current, peak atomic.Int64
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return l.Do(context.Background(), func() error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := peak.Load(); got > capacity {
		t.Fatalf("expected at most %d concurrent calls, observed %d", capacity, got)
	}
	if got := l.InFlight(); got != 0 {
		t.Fatalf("expected no permits held after completion, got %d", got)
	}
}

func TestLimiterReleasesOnError(t *testing.T) {
	l := limiter.New(1)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := l.Do(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("permit was not returned after failing call: %v", err)
	}
	l.Release()
}

func TestLimiterAcquireHonoursContext(t *testing.T) {
	l := limiter.New(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestUnboundedLimiter(t *testing.T) {
	l := limiter.New(0)
	if l.Capacity() != 0 {
		t.Fatalf("expected unbounded capacity, got %d", l.Capacity())
	}

	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if got := l.InFlight(); got != 100 {
		t.Fatalf("expected 100 in flight, got %d", got)
	}
	for i := 0; i < 100; i++ {
		l.Release()
	}
}
