package session_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Veraticus/shopassist/internal/session"
)

type countingExpirer struct {
	sweeps atomic.Int32
}

func (c *countingExpirer) CleanupExpired() int {
	c.sweeps.Add(1)
	return 1
}

func (c *countingExpirer) Stats() map[string]int {
	return map[string]int{"total": 0, "active": 0}
}

func TestCleanupService_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	exp := &countingExpirer{}
	svc := session.NewCleanupService(exp, 10*time.Millisecond, nil)

	svc.Start(context.Background())
	svc.Start(context.Background())
	if !svc.IsRunning() {
		t.Fatal("expected service to be running")
	}

	deadline := time.Now().Add(time.Second)
	for exp.sweeps.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if exp.sweeps.Load() < 3 {
		t.Errorf("expected at least 3 sweeps, got %d", exp.sweeps.Load())
	}

	svc.Stop()
	if svc.IsRunning() {
		t.Error("expected service to be stopped")
	}
	svc.Stop()
}

func TestCleanupService_StopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	svc := session.NewCleanupService(session.NewMemoryStore(time.Minute), time.Hour, nil)
	svc.Start(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for svc.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.IsRunning() {
		t.Error("expected service to stop when its context is canceled")
	}
	svc.Stop()
}
