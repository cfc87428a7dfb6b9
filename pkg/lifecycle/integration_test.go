package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/debughostd/pkg/events"
	"github.com/cuemby/debughostd/pkg/health"
	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/registry"
	"github.com/cuemby/debughostd/pkg/scanner"
	"github.com/cuemby/debughostd/pkg/types"
	"github.com/cuemby/debughostd/test/framework"
	"github.com/rs/zerolog"
)

// TestIntegration_StartWaitRestartStop drives a full start -> wait-healthy ->
// restart -> stop cycle through the shared test/framework helpers rather
// than polling the registry/manager directly, matching the kind of
// multi-step scenario the framework's Waiter/Assertions are meant to cover.
func TestIntegration_StartWaitRestartStop(t *testing.T) {
	d := newTestManager(t)
	p := registerProject(t, d)

	tc := framework.NewTestContext(t, 10*time.Second)
	defer tc.Close()

	assertions := framework.NewAssertions(t)
	waiter := framework.NewWaiter(2*time.Second, 10*time.Millisecond)

	_, err := d.manager.Start(tc.Ctx, p.ProjectID, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	assertions.Running(d.registry, p.ProjectID)

	if err := waiter.WaitForProjectStatus(tc.Ctx, d.registry, p.ProjectID, types.StatusRunning); err != nil {
		t.Fatalf("waiting for running status: %v", err)
	}

	restartResult, err := d.manager.Restart(context.Background(), p.ProjectID, nil)
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if restartResult.ContainerID == "" {
		t.Fatal("expected a replacement container id after restart")
	}
	assertions.Running(d.registry, p.ProjectID)

	if _, err := d.manager.Stop(context.Background(), p.ProjectID, StopOptions{}); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	assertions.Stopped(d.registry, p.ProjectID)

	if err := waiter.WaitForProjectStatus(context.Background(), d.registry, p.ProjectID, types.StatusStopped); err != nil {
		t.Fatalf("waiting for stopped status: %v", err)
	}
}

// TestIntegration_AutoRestartPublishesHealthEvent wires a real HealthBroker
// subscriber in so the health-driven auto-restart path's event fan-out is
// exercised end-to-end, not just the registry mutation it also performs.
func TestIntegration_AutoRestartPublishesHealthEvent(t *testing.T) {
	dir := t.TempDir()

	rangesSlice := ports.DefaultRanges()
	portReg, err := ports.New(zerolog.Nop(), dir+"/ports.json", rangesSlice)
	if err != nil {
		t.Fatalf("new port registry: %v", err)
	}
	ranges := make(map[string]types.TechRange, len(rangesSlice))
	for _, tr := range rangesSlice {
		ranges[tr.Tech] = tr
	}

	reg, err := registry.New(zerolog.Nop(), dir+"/projects.json", scanner.New(), portReg, ranges)
	if err != nil {
		t.Fatalf("new project registry: %v", err)
	}

	eng := newFakeEngine()
	lg := &fakeLogs{}
	hm := &fakeHealth{}
	healthBroker := events.NewHealthBroker()

	mgr := New(zerolog.Nop(), reg, portReg, eng, lg, hm, healthBroker, DefaultTemplates(), health.DefaultConfig())

	p, err := reg.Register(t.TempDir(), "")
	if err != nil {
		t.Fatalf("register project: %v", err)
	}

	sub := healthBroker.Subscribe(p.ProjectID)
	defer healthBroker.Unsubscribe(sub)

	if _, err := mgr.Start(context.Background(), p.ProjectID, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	createdBefore := eng.createdCount()
	mgr.ContainerUnhealthy(health.Snapshot{ProjectID: p.ProjectID})

	select {
	case snap := <-sub.C():
		if snap.ProjectID != p.ProjectID || snap.Healthy {
			t.Fatalf("unexpected health event published: %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unhealthy event on subscription")
	}

	waiter := framework.DefaultWaiter()
	if err := waiter.WaitFor(context.Background(), func() bool {
		return eng.createdCount() == createdBefore+1
	}, "auto-restart to create a replacement container"); err != nil {
		t.Fatal(err)
	}

	assertions := framework.NewAssertions(t)
	if err := waiter.WaitForProjectStatus(context.Background(), reg, p.ProjectID, types.StatusRunning); err != nil {
		t.Fatal(err)
	}
	assertions.Running(reg, p.ProjectID)
}
