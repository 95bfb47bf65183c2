package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerRejectsDuplicateRegistration(t *testing.T) {
	manager := NewManager(nil)
	first := LoopFunc{ServiceName: ServicePubSub, Work: func(context.Context) error { return nil }}
	if err := manager.Register(first); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := manager.Register(first); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestManagerWakeRerunsLoop(t *testing.T) {
	manager := NewManager(nil)
	var passes atomic.Int64
	ran := make(chan struct{}, 8)
	loop := LoopFunc{
		ServiceName: ServiceReviewUpdater,
		Work: func(context.Context) error {
			passes.Add(1)
			ran <- struct{}{}
			return nil
		},
	}
	if err := manager.Register(loop); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Start(ctx) }()

	// First pass runs unprompted on startup.
	waitSignal(t, ran)
	manager.Wake(ServiceReviewUpdater)
	waitSignal(t, ran)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := passes.Load(); got < 2 {
		t.Fatalf("passes = %d, want at least 2", got)
	}
}

func TestManagerWakeUnknownServiceIgnored(t *testing.T) {
	manager := NewManager(nil)
	manager.Wake("no-such-service")
}

func TestManagerPropagatesServiceFailure(t *testing.T) {
	manager := NewManager(nil)
	failure := errors.New("listener broke")
	svc := failingService{err: failure}
	if err := manager.Register(svc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := manager.Start(context.Background())
	if !errors.Is(err, failure) {
		t.Fatalf("Start = %v, want wrapped %v", err, failure)
	}
}

type failingService struct{ err error }

func (f failingService) Name() string { return ServiceBranchTracker }
func (f failingService) Run(context.Context, <-chan struct{}) error {
	return f.err
}

func TestLoopFuncIntervalTick(t *testing.T) {
	var passes atomic.Int64
	loop := LoopFunc{
		ServiceName: ServiceBranchUpdater,
		Interval:    5 * time.Millisecond,
		Work: func(context.Context) error {
			passes.Add(1)
			return nil
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	wake := make(chan struct{})
	if err := loop.Run(ctx, wake); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := passes.Load(); got < 2 {
		t.Fatalf("passes = %d, want ticks to rerun the work", got)
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a work pass")
	}
}
