// Package lifecycle implements the Container Lifecycle Manager: the only
// component that mutates a project's runtime state. It enforces
// at-most-one in-flight operation per project via a per-project lock,
// drives container creation/start/stop through the engine adapter, and
// wires the Log Collector and Health Monitor in and out as containers
// come up and go down.
//
// The state-machine shape (lock-guarded transitions, startup/shutdown
// sequencing) follows pkg/worker/worker.go's per-task model and
// bnema-gordon's lifecycle.go (EnsureRunning / checkAndRestart /
// waitForHealth polling). The per-project lock map is created lazily;
// entries are never removed for the life of the process.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/debughostd/pkg/apierr"
	"github.com/cuemby/debughostd/pkg/engine"
	"github.com/cuemby/debughostd/pkg/health"
	"github.com/cuemby/debughostd/pkg/metrics"
	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/registry"
	"github.com/cuemby/debughostd/pkg/types"
	"github.com/rs/zerolog"
)

// RestartCooldown bounds health-driven auto-restarts to at most one per
// window; further unhealthy events within the window are recorded but do
// not act.
const RestartCooldown = 60 * time.Second

// readinessPollInterval is how often Start polls the engine while waiting
// for a container to report running, within the tech's startup timeout.
const readinessPollInterval = 250 * time.Millisecond

// autoRestartBudget bounds a health-driven restart's own context, wide
// enough for the slowest tech template (python's 45s startup) plus grace.
const autoRestartBudget = 90 * time.Second

// Engine is the narrow container-engine capability the Manager needs;
// engine.Engine satisfies it.
type Engine interface {
	EnsureNetwork(ctx context.Context) (string, error)
	Create(ctx context.Context, spec engine.Spec) (string, error)
	Start(ctx context.Context, containerID string) error
	Stop(ctx context.Context, containerID string, timeoutSeconds *int) error
	Remove(ctx context.Context, containerID string, force bool) error
	InspectStatus(ctx context.Context, containerID string) (engine.Status, error)
}

// LogCollector is the narrow pkg/logs capability the Manager needs.
type LogCollector interface {
	Start(containerID, containerName, projectID string)
	Stop(containerName string)
}

// HealthMonitor is the narrow pkg/health capability the Manager needs.
type HealthMonitor interface {
	Start(containerID, projectID string, checker health.Checker, config health.Config)
	Stop(containerID string)
	StopAll()
	Snapshot(containerID string) (health.Snapshot, bool)
}

// HealthPublisher is the narrow pkg/events capability the Manager needs to
// fan an unhealthy/recovered transition out to any subscribed stream;
// events.HealthBroker satisfies it.
type HealthPublisher interface {
	Publish(projectID string, snap types.HealthSnapshot)
}

// Manager is the Container Lifecycle Manager.
type Manager struct {
	log          zerolog.Logger
	registry     *registry.Registry
	ports        *ports.Registry
	engine       Engine
	logs         LogCollector
	health       HealthMonitor
	healthEvents HealthPublisher
	templates    map[string]types.TechTemplate
	healthConfig health.Config

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	restartMu       sync.Mutex
	lastAutoRestart map[string]time.Time
}

// New builds a Manager wiring the given collaborators. templates is
// typically lifecycle.DefaultTemplates(); healthConfig is applied to every
// container's Health Monitor registration and is typically
// health.DefaultConfig() unless overridden via pkg/config. healthEvents may
// be nil, in which case health transitions are recorded on the project but
// never pushed to a subscriber.
func New(log zerolog.Logger, reg *registry.Registry, portReg *ports.Registry, eng Engine, logCollector LogCollector, healthMonitor HealthMonitor, healthEvents HealthPublisher, templates map[string]types.TechTemplate, healthConfig health.Config) *Manager {
	return &Manager{
		log:             log,
		registry:        reg,
		ports:           portReg,
		engine:          eng,
		logs:            logCollector,
		health:          healthMonitor,
		healthEvents:    healthEvents,
		templates:       templates,
		healthConfig:    healthConfig,
		locks:           make(map[string]*sync.Mutex),
		lastAutoRestart: make(map[string]time.Time),
	}
}

// shutdownDrainInterval is how often Shutdown re-polls in-flight
// operation locks while waiting for them to drain.
const shutdownDrainInterval = 100 * time.Millisecond

// shutdownGracePeriod bounds how long Shutdown waits for in-flight
// Start/Stop/Restart calls to finish before giving up and logging
// whichever projects are still busy.
const shutdownGracePeriod = 30 * time.Second

// Shutdown stops the Health Monitor first, so no new unhealthy/recovered
// transition can trigger a fresh auto-restart, then waits up to
// shutdownGracePeriod for every project's operation lock to become free.
// Stragglers still held when the grace period elapses are logged, not
// force-cancelled: Shutdown never interrupts an operation in progress.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.health.StopAll()

	m.locksMu.Lock()
	pending := make(map[string]*sync.Mutex, len(m.locks))
	for projectID, l := range m.locks {
		pending[projectID] = l
	}
	m.locksMu.Unlock()

	deadline := time.Now().Add(shutdownGracePeriod)
	ticker := time.NewTicker(shutdownDrainInterval)
	defer ticker.Stop()

	for len(pending) > 0 && time.Now().Before(deadline) {
		for projectID, l := range pending {
			if l.TryLock() {
				l.Unlock()
				delete(pending, projectID)
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			deadline = time.Now()
		}
	}

	for projectID := range pending {
		m.log.Warn().Str("project_id", projectID).
			Msg("shutdown: in-flight operation did not complete within grace period")
	}

	return nil
}

// StartResult is returned by Start and Restart.
type StartResult struct {
	ContainerID string
	Ports       types.ProjectPorts
	AccessURL   string
	ElapsedMs   int64
}

// StopOptions configures Stop.
type StopOptions struct {
	Force       bool
	GracePeriod *time.Duration
}

// StopResult is returned by Stop.
type StopResult struct {
	ElapsedMs int64
}

// StatusResult is returned by Status.
type StatusResult struct {
	Project   types.Project
	Health    health.Snapshot
	HasHealth bool
	UptimeMs  int64
	AccessURL string
}

func (m *Manager) lockFor(projectID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[projectID] = l
	}
	return l
}

// acquire takes projectID's operation lock, failing fast with
// OperationInProgress rather than blocking: a contended lock is a fast
// failure for the second caller, never a queued wait.
func (m *Manager) acquire(projectID, operation string) (func(), error) {
	l := m.lockFor(projectID)
	if !l.TryLock() {
		return nil, apierr.New(apierr.KindConflict, apierr.CodeOperationInProgress,
			"an operation is already in progress for this project").WithContext(projectID, operation)
	}
	return l.Unlock, nil
}

func (m *Manager) templateFor(tech string) types.TechTemplate {
	if t, ok := m.templates[tech]; ok {
		return t
	}
	return m.templates["unknown"]
}

func containerNameFor(projectID string) string {
	return "debughostd-" + projectID
}

// Start transitions a stopped or errored project to running. envOverride
// is merged over the tech template's env and the caller-supplied fields
// take precedence.
func (m *Manager) Start(ctx context.Context, projectID string, envOverride map[string]string) (StartResult, error) {
	release, err := m.acquire(projectID, "start")
	if err != nil {
		return StartResult{}, err
	}
	defer release()
	return m.doStart(ctx, projectID, envOverride)
}

func (m *Manager) doStart(ctx context.Context, projectID string, envOverride map[string]string) (StartResult, error) {
	started := time.Now()

	p, ok := m.registry.Get(projectID)
	if !ok {
		return StartResult{}, apierr.New(apierr.KindNotFound, "", "project not found").WithContext(projectID, "start")
	}
	if p.Status != types.StatusStopped && p.Status != types.StatusError {
		return StartResult{}, apierr.New(apierr.KindConflict, apierr.CodeOperationInProgress,
			"project must be stopped or errored to start").WithContext(projectID, "start")
	}

	tmpl := m.templateFor(p.PrimaryTech)

	opName := "start"
	if _, err := m.registry.Update(projectID, registry.Patch{
		Status:    statusPtr(types.StatusStarting),
		CurrentOp: &opName,
	}); err != nil {
		return StartResult{}, err
	}

	// The primary port was reserved at registration (and, if this project
	// has run before, released to recycling on its last stop). Allocate
	// is idempotent for a port this same project already holds or has
	// quarantined, so re-requesting it here is always safe.
	port, err := m.ports.Allocate(projectID, p.PrimaryTech, p.Ports.Primary)
	if err != nil {
		m.failStart(projectID, err)
		return StartResult{}, err
	}

	if _, err := m.engine.EnsureNetwork(ctx); err != nil {
		m.failStart(projectID, err)
		return StartResult{}, err
	}

	containerName := containerNameFor(projectID)
	env := mergeEnv(tmpl.Env, map[string]string{
		"PROJECT_NAME": p.Name,
		"PROJECT_ID":   p.ProjectID,
		"PRIMARY_TECH": p.PrimaryTech,
	}, envOverride)

	spec := engine.Spec{
		Name:  containerName,
		Image: tmpl.Image,
		Env:   env,
		Ports: map[int]int{port: port},
		Labels: map[string]string{
			"debughostd.project_id": projectID,
		},
		Mounts:  []engine.Mount{{Source: p.WorkspacePath, Target: "/workspace"}},
		WorkDir: "/workspace",
	}

	containerID, err := m.engine.Create(ctx, spec)
	if err != nil {
		m.failStart(projectID, err)
		return StartResult{}, err
	}

	if err := m.engine.Start(ctx, containerID); err != nil {
		m.cleanupPartial(containerID)
		m.failStart(projectID, err)
		return StartResult{}, err
	}

	if err := m.waitReady(ctx, containerID, tmpl); err != nil {
		m.cleanupPartial(containerID)
		m.failStart(projectID, err)
		return StartResult{}, err
	}

	m.logs.Start(containerID, containerName, projectID)
	checker := health.NewHTTPChecker(fmt.Sprintf("http://localhost:%d%s", port, tmpl.ProbePath))
	m.health.Start(containerID, projectID, checker, m.healthConfig)

	now := time.Now()
	clearedErr := ""
	updated, err := m.registry.Update(projectID, registry.Patch{
		Status:        statusPtr(types.StatusRunning),
		ContainerID:   &containerID,
		ContainerName: &containerName,
		HealthStatus:  healthPtr(types.HealthUnknown),
		LastError:     &clearedErr,
		CurrentOp:     strPtr(""),
		StartedAt:     timePtrPtr(now),
		LastOpTime:    timePtrPtr(now),
		Ports:         &types.ProjectPorts{Primary: port, Allocated: p.Ports.Allocated},
	})
	if err != nil {
		return StartResult{}, err
	}

	return StartResult{
		ContainerID: containerID,
		Ports:       updated.Ports,
		AccessURL:   fmt.Sprintf("http://localhost:%d", port),
		ElapsedMs:   time.Since(started).Milliseconds(),
	}, nil
}

// waitReady polls the engine until containerID is reported running, or
// the tech's startup timeout elapses. Non-static techs additionally wait
// one settle interval after the engine first reports running.
func (m *Manager) waitReady(ctx context.Context, containerID string, tmpl types.TechTemplate) error {
	deadline := time.Now().Add(tmpl.StartupTimeout)
	for {
		status, err := m.engine.InspectStatus(ctx, containerID)
		if err == nil && status.Found && status.Running {
			break
		}
		if time.Now().After(deadline) {
			return apierr.New(apierr.KindTimeout, apierr.CodeStartupTimeout,
				"container did not report running before startup timeout")
		}
		select {
		case <-ctx.Done():
			return apierr.Wrap(apierr.KindTimeout, apierr.CodeStartupTimeout, "start canceled", ctx.Err())
		case <-time.After(readinessPollInterval):
		}
	}

	if tmpl.SettleInterval > 0 {
		select {
		case <-ctx.Done():
			return apierr.Wrap(apierr.KindTimeout, apierr.CodeStartupTimeout, "start canceled", ctx.Err())
		case <-time.After(tmpl.SettleInterval):
		}
	}
	return nil
}

// cleanupPartial stops and removes a container created (or started) during
// a failed start attempt, best-effort.
func (m *Manager) cleanupPartial(containerID string) {
	if containerID == "" {
		return
	}
	ctx := context.Background()
	zero := 0
	_ = m.engine.Stop(ctx, containerID, &zero)
	if err := m.engine.Remove(ctx, containerID, true); err != nil {
		m.log.Warn().Err(err).Str("container_id", containerID).Msg("failed to remove container during startup cleanup")
	}
}

func (m *Manager) failStart(projectID string, cause error) {
	msg := cause.Error()
	if _, err := m.registry.Update(projectID, registry.Patch{
		Status:    statusPtr(types.StatusError),
		LastError: &msg,
		CurrentOp: strPtr(""),
	}); err != nil {
		m.log.Warn().Err(err).Str("project_id", projectID).Msg("failed to persist start failure")
	}
}

// Stop halts a running project. A project with no recorded container_id is
// a no-op success.
func (m *Manager) Stop(ctx context.Context, projectID string, opts StopOptions) (StopResult, error) {
	release, err := m.acquire(projectID, "stop")
	if err != nil {
		return StopResult{}, err
	}
	defer release()
	elapsed, err := m.doStop(ctx, projectID, opts)
	return StopResult{ElapsedMs: elapsed.Milliseconds()}, err
}

func (m *Manager) doStop(ctx context.Context, projectID string, opts StopOptions) (time.Duration, error) {
	started := time.Now()

	p, ok := m.registry.Get(projectID)
	if !ok {
		return 0, apierr.New(apierr.KindNotFound, "", "project not found").WithContext(projectID, "stop")
	}
	if p.ContainerID == "" {
		return 0, nil
	}

	opName := "stop"
	if _, err := m.registry.Update(projectID, registry.Patch{
		Status:    statusPtr(types.StatusStopping),
		CurrentOp: &opName,
	}); err != nil {
		return 0, err
	}

	m.health.Stop(p.ContainerID)
	if p.ContainerName != "" {
		m.logs.Stop(p.ContainerName)
	}

	tmpl := m.templateFor(p.PrimaryTech)
	grace := tmpl.GracePeriod
	if opts.GracePeriod != nil {
		grace = *opts.GracePeriod
	}

	var stopErr error
	if opts.Force {
		stopErr = m.engine.Remove(ctx, p.ContainerID, true)
	} else {
		secs := int(grace.Seconds())
		stopErr = m.engine.Stop(ctx, p.ContainerID, &secs)
		if stopErr != nil {
			// Escalate to forced removal rather than leaving the container
			// running with a stale registry record.
			stopErr = m.engine.Remove(ctx, p.ContainerID, true)
		} else {
			if err := m.engine.Remove(ctx, p.ContainerID, false); err != nil {
				stopErr = err
			}
		}
	}

	if p.Ports.Primary != 0 {
		if err := m.ports.Release(p.Ports.Primary); err != nil {
			m.log.Warn().Err(err).Int("port", p.Ports.Primary).Msg("failed to release port on stop")
		}
	}

	now := time.Now()
	clearedID := ""
	clearedName := ""
	lastErr := ""
	if stopErr != nil {
		lastErr = stopErr.Error()
	}
	if _, err := m.registry.Update(projectID, registry.Patch{
		Status:        statusPtr(types.StatusStopped),
		ContainerID:   &clearedID,
		ContainerName: &clearedName,
		HealthStatus:  healthPtr(types.HealthUnknown),
		LastError:     &lastErr,
		CurrentOp:     strPtr(""),
		StoppedAt:     timePtrPtr(now),
		LastOpTime:    timePtrPtr(now),
	}); err != nil {
		return time.Since(started), err
	}

	// A stop failure does not mask a subsequent start's success: the
	// registry record is still moved to stopped above, and any engine
	// error here is reported but not fatal to the operation.
	return time.Since(started), stopErr
}

// Restart is logically stop(grace 5s) then start, atomic with respect to
// other operations on this project: it acquires the lock once and
// accounts as a single restart, not a separate stop+start.
func (m *Manager) Restart(ctx context.Context, projectID string, envOverride map[string]string) (StartResult, error) {
	release, err := m.acquire(projectID, "restart")
	if err != nil {
		return StartResult{}, err
	}
	defer release()
	metrics.ContainerRestartsTotal.WithLabelValues("manual").Inc()
	return m.restartLocked(ctx, projectID, envOverride)
}

// restartLocked assumes the caller already holds projectID's operation
// lock (either Restart above, or a health-driven auto-restart).
func (m *Manager) restartLocked(ctx context.Context, projectID string, envOverride map[string]string) (StartResult, error) {
	// Only a project with a container goes through "restarting"; for one
	// without, the stop phase is a no-op and start must still see stopped.
	if p, ok := m.registry.Get(projectID); ok && p.ContainerID != "" {
		opName := "restarting"
		_, _ = m.registry.Update(projectID, registry.Patch{
			Status:    statusPtr(types.StatusRestarting),
			CurrentOp: &opName,
		})
	}

	grace := 5 * time.Second
	if _, err := m.doStop(ctx, projectID, StopOptions{GracePeriod: &grace}); err != nil {
		// Stop failures are logged but never skip the subsequent start.
		m.log.Warn().Err(err).Str("project_id", projectID).Msg("restart: stop phase failed, attempting start anyway")
	}
	return m.doStart(ctx, projectID, envOverride)
}

// Status returns the project's current lifecycle and health state,
// reconciling the registry with the engine if the container it last knew
// about is no longer there.
func (m *Manager) Status(ctx context.Context, projectID string) (StatusResult, error) {
	p, ok := m.registry.Get(projectID)
	if !ok {
		return StatusResult{}, apierr.New(apierr.KindNotFound, "", "project not found").WithContext(projectID, "status")
	}

	if p.ContainerID != "" {
		st, err := m.engine.InspectStatus(ctx, p.ContainerID)
		if err == nil && !st.Found {
			clearedID := ""
			clearedName := ""
			reconciled, uerr := m.registry.Update(projectID, registry.Patch{
				Status:        statusPtr(types.StatusStopped),
				ContainerID:   &clearedID,
				ContainerName: &clearedName,
			})
			if uerr == nil {
				p = reconciled
			}
		}
		// Any other engine error inspecting status is transient and does
		// not itself surface: the last-known registry record still
		// answers the caller.
	}

	var uptime int64
	if p.Status == types.StatusRunning && p.StartedAt != nil {
		uptime = time.Since(*p.StartedAt).Milliseconds()
	}

	accessURL := ""
	if p.Ports.Primary != 0 {
		accessURL = fmt.Sprintf("http://localhost:%d", p.Ports.Primary)
	}

	snap, hasHealth := health.Snapshot{}, false
	if p.ContainerID != "" {
		snap, hasHealth = m.health.Snapshot(p.ContainerID)
	}

	return StatusResult{
		Project:   p,
		Health:    snap,
		HasHealth: hasHealth,
		UptimeMs:  uptime,
		AccessURL: accessURL,
	}, nil
}

// ContainerUnhealthy implements health.Observer. It records the
// transition on the project and, subject to the restart cooldown and the
// operation lock, attempts an auto-restart.
func (m *Manager) ContainerUnhealthy(snap health.Snapshot) {
	now := time.Now()
	if _, err := m.registry.Update(snap.ProjectID, registry.Patch{
		HealthStatus: healthPtr(types.HealthUnhealthy),
		LastHealthAt: timePtrPtr(now),
	}); err != nil {
		m.log.Warn().Err(err).Str("project_id", snap.ProjectID).Msg("failed to record unhealthy transition")
	}
	m.publishHealth(snap)
	m.maybeAutoRestart(snap.ProjectID)
}

// ContainerRecovered implements health.Observer.
func (m *Manager) ContainerRecovered(snap health.Snapshot) {
	now := time.Now()
	if _, err := m.registry.Update(snap.ProjectID, registry.Patch{
		HealthStatus: healthPtr(types.HealthHealthy),
		LastHealthAt: timePtrPtr(now),
	}); err != nil {
		m.log.Warn().Err(err).Str("project_id", snap.ProjectID).Msg("failed to record recovered transition")
	}
	m.publishHealth(snap)
}

func (m *Manager) publishHealth(snap health.Snapshot) {
	if m.healthEvents == nil {
		return
	}
	m.healthEvents.Publish(snap.ProjectID, types.HealthSnapshot{
		ContainerID:         snap.ContainerID,
		ProjectID:           snap.ProjectID,
		Healthy:             snap.Healthy,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		LastCheckedAt:       snap.LastCheckedAt,
		LastError:           snap.LastError,
	})
}

// maybeAutoRestart enforces at-most-one restart per RestartCooldown, and
// drops (rather than queues) the attempt if the project's operation lock
// is already held by another caller.
func (m *Manager) maybeAutoRestart(projectID string) {
	m.restartMu.Lock()
	if last, ok := m.lastAutoRestart[projectID]; ok && time.Since(last) < RestartCooldown {
		m.restartMu.Unlock()
		m.log.Info().Str("project_id", projectID).Msg("auto-restart suppressed: within cooldown window")
		return
	}
	m.restartMu.Unlock()

	lock := m.lockFor(projectID)
	if !lock.TryLock() {
		m.log.Warn().Str("project_id", projectID).Msg("auto-restart dropped: operation already in progress")
		return
	}

	m.restartMu.Lock()
	m.lastAutoRestart[projectID] = time.Now()
	m.restartMu.Unlock()

	go func() {
		defer lock.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), autoRestartBudget)
		defer cancel()
		metrics.ContainerRestartsTotal.WithLabelValues("auto").Inc()
		if _, err := m.restartLocked(ctx, projectID, nil); err != nil {
			m.log.Error().Err(err).Str("project_id", projectID).Msg("health-driven auto-restart failed")
		}
	}()
}

// mergeEnv layers the maps in order, later maps winning on key collision.
// Grounded on bnema-gordon's lifecycle.go mergeEnv helper.
func mergeEnv(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func statusPtr(s types.ProjectStatus) *types.ProjectStatus { return &s }
func healthPtr(h types.ProjectHealth) *types.ProjectHealth { return &h }
func strPtr(s string) *string                              { return &s }
func timePtrPtr(t time.Time) **time.Time {
	p := &t
	return &p
}
