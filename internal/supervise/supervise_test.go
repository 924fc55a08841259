package supervise

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunRespawnsOnError(t *testing.T) {
	s := New(Config{Name: "test", CoolOff: time.Millisecond})

	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		s.Run(ctx, func(ctx context.Context) error {
			n := atomic.AddInt32(&calls, 1)
			if n >= 3 {
				cancel()
			}
			return errors.New("boom")
		})
		close(done)
	}()

	<-done
	if atomic.LoadInt32(&calls) < 3 {
		t.Fatalf("calls = %d, want at least 3", calls)
	}
	if s.Crashes() < 2 {
		t.Fatalf("Crashes() = %d, want at least 2", s.Crashes())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(Config{Name: "test", CoolOff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}
}
