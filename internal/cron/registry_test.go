package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

func TestRegister_ValidExpression(t *testing.T) {
	r := NewRegistry(NewMemoryBackend(), time.UTC)
	ctx := context.Background()

	id, err := r.Register(ctx, "* * * * *", 7)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty job id")
	}

	entries, err := r.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 || entries[0].TaskID != 7 || entries[0].Expr != "* * * * *" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestRegister_InvalidExpression(t *testing.T) {
	r := NewRegistry(NewMemoryBackend(), time.UTC)

	for _, expr := range []string{"invalid * * *", "", "61 * * * *", "* * * * * *"} {
		_, err := r.Register(context.Background(), expr, 1)
		if err == nil {
			t.Errorf("expr %q: expected error", expr)
			continue
		}
		if !store.IsValidation(err) {
			t.Errorf("expr %q: expected ValidationError, got %T", expr, err)
		}
	}
}

func TestRemove_Idempotent(t *testing.T) {
	r := NewRegistry(NewMemoryBackend(), time.UTC)
	ctx := context.Background()

	id, err := r.Register(ctx, "0 0 * * *", 3)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Second remove and unknown id are both fine.
	if err := r.Remove(ctx, id); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if err := r.Remove(ctx, "no-such-job"); err != nil {
		t.Errorf("remove unknown: %v", err)
	}

	entries, _ := r.Entries(ctx)
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestTick_FiresDueEntry(t *testing.T) {
	backend := NewMemoryBackend()
	r := NewRegistry(backend, time.UTC)
	ctx := context.Background()

	var fired atomic.Int64
	r.SetOnFire(func(ctx context.Context, e Entry) {
		fired.Add(1)
	})

	id, err := r.Register(ctx, "* * * * *", 9)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// Force the entry due 5s ago, within the grace window.
	backend.SetRunTime(ctx, id, time.Now().Add(-5*time.Second).UnixMilli())

	r.tick(ctx)
	waitFor(t, func() bool { return fired.Load() == 1 })

	// The run time must have advanced into the future.
	times, _ := backend.RunTimes(ctx)
	if times[id] <= time.Now().UnixMilli() {
		t.Errorf("run time not advanced: %d", times[id])
	}

	// A second tick before the next instant must not fire again.
	r.tick(ctx)
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("expected 1 fire, got %d", fired.Load())
	}
}

func TestTick_DropsMisfireBeyondGrace(t *testing.T) {
	backend := NewMemoryBackend()
	r := NewRegistry(backend, time.UTC)
	ctx := context.Background()

	var fired atomic.Int64
	r.SetOnFire(func(ctx context.Context, e Entry) {
		fired.Add(1)
	})

	id, err := r.Register(ctx, "* * * * *", 9)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// Due 10 minutes ago: far outside the 60s grace window.
	backend.SetRunTime(ctx, id, time.Now().Add(-10*time.Minute).UnixMilli())

	r.tick(ctx)
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("misfire beyond grace should be dropped, got %d fires", fired.Load())
	}

	// But the schedule still advances, so the entry keeps running.
	times, _ := backend.RunTimes(ctx)
	if times[id] <= time.Now().UnixMilli() {
		t.Errorf("run time not advanced after dropped misfire")
	}
}

func TestTick_CoalescesMissedWindows(t *testing.T) {
	backend := NewMemoryBackend()
	r := NewRegistry(backend, time.UTC)
	r.SetMisfireGrace(time.Hour)
	ctx := context.Background()

	var fired atomic.Int64
	r.SetOnFire(func(ctx context.Context, e Entry) {
		fired.Add(1)
	})

	id, _ := r.Register(ctx, "* * * * *", 4)
	// Five missed minutes, all within the (stretched) grace window.
	backend.SetRunTime(ctx, id, time.Now().Add(-5*time.Minute).UnixMilli())

	r.tick(ctx)
	waitFor(t, func() bool { return fired.Load() == 1 })

	// Exactly one catch-up fire, not five.
	r.tick(ctx)
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("expected coalesced single fire, got %d", fired.Load())
	}
}

func TestTick_RemovedEntryOrphanCleanup(t *testing.T) {
	backend := NewMemoryBackend()
	r := NewRegistry(backend, time.UTC)
	ctx := context.Background()

	// Run time with no matching entry simulates a half-removed job.
	backend.SetRunTime(ctx, "orphan", time.Now().Add(-time.Second).UnixMilli())

	r.tick(ctx)

	times, _ := backend.RunTimes(ctx)
	if _, ok := times["orphan"]; ok {
		t.Error("orphaned run time should be cleaned up")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
