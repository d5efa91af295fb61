package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunNowReturnsJobError(t *testing.T) {
	s := New(time.UTC, nil)
	boom := errors.New("boom")
	if err := s.Register(Job{Name: "fail", Run: func(context.Context) error { return boom }}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.RunNow(context.Background(), "fail"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := New(time.UTC, nil)
	runs := 0
	s.Register(Job{Name: "panicky", Run: func(context.Context) error {
		runs++
		panic("bad state")
	}})

	err := s.RunNow(context.Background(), "panicky")
	if err == nil || !strings.Contains(err.Error(), "bad state") {
		t.Fatalf("expected panic error, got %v", err)
	}
	// The lock must be released after a panic.
	s.RunNow(context.Background(), "panicky")
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	s := New(time.UTC, NewLocalLocker())
	started := make(chan struct{})
	finish := make(chan struct{})
	s.Register(Job{Name: "slow", Run: func(context.Context) error {
		close(started)
		<-finish
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning, got %v", err)
	}
	close(finish)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestTimeoutBoundsRun(t *testing.T) {
	s := New(time.UTC, nil)
	s.Register(Job{Name: "bounded", Timeout: 20 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	if err := s.RunNow(context.Background(), "bounded"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStopCancelsOnDemandRun(t *testing.T) {
	s := New(time.UTC, nil)
	started := make(chan struct{})
	s.Register(Job{Name: "sync", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "sync") }()
	<-started
	s.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("on-demand run outlived Stop")
	}
}

func TestRegisterValidation(t *testing.T) {
	s := New(nil, nil)
	noop := func(context.Context) error { return nil }

	if err := s.Register(Job{Name: "", Run: noop}); err == nil {
		t.Fatal("expected error for unnamed job")
	}
	if err := s.Register(Job{Name: "bad", Spec: "every tuesday", Run: noop}); err == nil {
		t.Fatal("expected error for bad spec")
	}
	if err := s.Register(Job{Name: "ok", Spec: "0 2 * * *", Run: noop}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(Job{Name: "ok", Run: noop}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestNextAfterStart(t *testing.T) {
	s := New(time.UTC, nil)
	noop := func(context.Context) error { return nil }
	s.Register(Job{Name: "nightly", Spec: "0 2 * * *", Run: noop})
	s.Register(Job{Name: "manual", Run: noop})

	s.Start()
	defer s.Stop()

	next := s.Next()
	if _, ok := next["manual"]; ok {
		t.Fatal("on-demand job should not be scheduled")
	}
	at, ok := next["nightly"]
	if !ok || at.IsZero() || at.Hour() != 2 || at.Minute() != 0 {
		t.Fatalf("nightly next = %v", at)
	}
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryLock(ctx, "a"); ok {
		t.Fatal("second lock should fail")
	}
	if _, ok, _ := l.TryLock(ctx, "b"); !ok {
		t.Fatal("other name should lock")
	}
	release()
	if _, ok, _ := l.TryLock(ctx, "a"); !ok {
		t.Fatal("lock not released")
	}
}
