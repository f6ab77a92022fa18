package heartbeat

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)}
}

func TestSnapshotMarksStaleComponent(t *testing.T) {
	clock := newTestClock()
	registry := NewRegistryWithClock(clock.Now)
	registry.Beat(ComponentScheduler, "ok")
	clock.Advance(3 * time.Minute)

	snapshot := registry.Snapshot(60 * time.Second)
	if snapshot.Overall != StateDegraded {
		t.Fatalf("expected degraded overall state, got %s", snapshot.Overall)
	}
	if len(snapshot.Components) != 1 {
		t.Fatalf("expected one component, got %d", len(snapshot.Components))
	}
	if snapshot.Components[0].State != StateStale || !snapshot.Components[0].Stale {
		t.Fatalf("expected stale component state, got %+v", snapshot.Components[0])
	}
}

func TestSnapshotIdleForDisabledComponents(t *testing.T) {
	registry := NewRegistry()
	registry.Disabled(ComponentScheduler, "health sweep cron not configured")
	registry.Disabled(ComponentWatcher, "no prompt catalog file")

	snapshot := registry.Snapshot(60 * time.Second)
	if snapshot.Overall != OverallIdle {
		t.Fatalf("expected idle overall state, got %s", snapshot.Overall)
	}
	if NewRegistry().Snapshot(0).Overall != OverallUnknown {
		t.Fatal("expected unknown overall for empty registry")
	}
}

func TestDegradeCountsFailuresAcrossRecovery(t *testing.T) {
	registry := NewRegistry()
	registry.Beat(ComponentAudit, "ok")
	registry.Degrade(ComponentAudit, "action audit write failed", errors.New("disk full"))
	registry.Degrade(ComponentAudit, "action audit write failed", errors.New("disk full"))
	registry.Beat(ComponentAudit, "ok")

	snapshot := registry.Snapshot(0)
	status := snapshot.Components[0]
	if status.State != StateHealthy || status.Failures != 2 || status.Error != "" {
		t.Fatalf("unexpected audit status: %+v", status)
	}
}

func TestReadyRequiresHealthyComponents(t *testing.T) {
	registry := NewRegistry()
	if registry.Ready(ComponentAPI) {
		t.Fatal("unknown component should not be ready")
	}
	registry.Starting(ComponentAPI, "binding")
	if registry.Ready(ComponentAPI) {
		t.Fatal("starting component should not be ready")
	}
	registry.Beat(ComponentAPI, "listening")
	registry.Degrade(ComponentScheduler, "sweep failed", nil)
	if !registry.Ready(ComponentAPI) {
		t.Fatal("api should be ready")
	}
	if registry.Ready(ComponentAPI, ComponentScheduler) {
		t.Fatal("degraded scheduler should fail readiness")
	}
}
