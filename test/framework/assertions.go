package framework

import (
	"context"

	"github.com/cuemby/debughostd/pkg/lifecycle"
	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/registry"
	"github.com/cuemby/debughostd/pkg/types"
)

// Assertions provides test assertion helpers for multi-component scenarios
// (registry + lifecycle manager + port registry together).
type Assertions struct {
	t TestingT
}

// NewAssertions creates a new Assertions instance.
func NewAssertions(t TestingT) *Assertions {
	return &Assertions{t: t}
}

// ProjectExists asserts that a project is registered.
func (a *Assertions) ProjectExists(reg *registry.Registry, projectID string) types.Project {
	a.t.Helper()

	p, ok := reg.Get(projectID)
	if !ok {
		a.t.Fatalf("project %s does not exist", projectID)
	}
	return p
}

// ProjectStatus asserts that a project has the expected status.
func (a *Assertions) ProjectStatus(reg *registry.Registry, projectID string, expected types.ProjectStatus) {
	a.t.Helper()

	p := a.ProjectExists(reg, projectID)
	if p.Status != expected {
		a.t.Fatalf("project %s has status %s, expected %s", projectID, p.Status, expected)
	}
}

// ProjectGone asserts that a project is no longer registered.
func (a *Assertions) ProjectGone(reg *registry.Registry, projectID string) {
	a.t.Helper()

	if _, ok := reg.Get(projectID); ok {
		a.t.Fatalf("project %s still exists, expected it to be removed", projectID)
	}
}

// PortInRange asserts that a project's primary port falls within its tech's
// declared range.
func (a *Assertions) PortInRange(reg *registry.Registry, projectID string, techRange types.TechRange) {
	a.t.Helper()

	p := a.ProjectExists(reg, projectID)
	if p.Ports.Primary < techRange.Min || p.Ports.Primary > techRange.Max {
		a.t.Fatalf("project %s port %d is outside range [%d, %d]", projectID, p.Ports.Primary, techRange.Min, techRange.Max)
	}
}

// PortFree asserts that a port registry reports port as free.
func (a *Assertions) PortFree(portReg *ports.Registry, tech string, port int) {
	a.t.Helper()

	if !portReg.IsFree(port) {
		a.t.Fatalf("port %d (tech %s) is still allocated, expected free", port, tech)
	}
}

// Healthy asserts that the lifecycle manager reports projectID as healthy.
func (a *Assertions) Healthy(ctx context.Context, mgr *lifecycle.Manager, projectID string) {
	a.t.Helper()

	st, err := mgr.Status(ctx, projectID)
	if err != nil {
		a.t.Fatalf("failed to get status for project %s: %v", projectID, err)
	}
	if !st.HasHealth || !st.Health.Healthy {
		a.t.Fatalf("project %s is not healthy", projectID)
	}
}

// Running asserts that a project's status is running.
func (a *Assertions) Running(reg *registry.Registry, projectID string) {
	a.t.Helper()
	a.ProjectStatus(reg, projectID, types.StatusRunning)
}

// Stopped asserts that a project's status is stopped.
func (a *Assertions) Stopped(reg *registry.Registry, projectID string) {
	a.t.Helper()
	a.ProjectStatus(reg, projectID, types.StatusStopped)
}
