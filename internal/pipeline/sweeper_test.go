package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	if _, err := NewSweeper(NewRegistry(Options{}), "not a schedule", nil); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestSweeperRunOnceUsesRegistryClock(t *testing.T) {
	clock := newFakeClock()
	registry := NewRegistry(Options{Clock: clock.Now, EvictionDelay: time.Minute})
	mustStart(t, registry, "R1")
	if err := registry.Complete("R1", nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	sweeper, err := NewSweeper(registry, "", nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	sweeper.RunOnce()
	if registry.Count() != 1 {
		t.Fatal("run evicted before delay")
	}
	clock.Advance(time.Minute)
	sweeper.RunOnce()
	if registry.Count() != 0 {
		t.Fatal("expected run evicted after delay")
	}
}

func TestSweeperStartStop(t *testing.T) {
	clock := newFakeClock()
	registry := NewRegistry(Options{Clock: clock.Now, EvictionDelay: time.Second})
	mustStart(t, registry, "R1")
	if err := registry.Complete("R1", nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	clock.Advance(time.Hour)

	sweeper, err := NewSweeper(registry, "@every 1s", nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	sweeper.Start()
	deadline := time.Now().Add(5 * time.Second)
	for registry.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sweeper.Stop(ctx)
	if registry.Count() != 0 {
		t.Fatal("scheduled sweep did not evict the run")
	}
}
