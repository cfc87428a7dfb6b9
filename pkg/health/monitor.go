package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/debughostd/pkg/metrics"
	"github.com/rs/zerolog"
)

// Snapshot is the externally visible health state of a single container.
type Snapshot struct {
	ContainerID        string
	ProjectID          string
	Healthy            bool
	ConsecutiveFailures int
	LastCheckedAt       time.Time
	LastError           string
}

// Observer receives unhealthy/recovered callbacks. The Monitor holds this
// interface, never a concrete back-pointer into whatever owns the
// containers it watches, so ownership stays one-way.
type Observer interface {
	ContainerUnhealthy(snap Snapshot)
	ContainerRecovered(snap Snapshot)
}

type watch struct {
	checker Checker
	config  Config
	status  *Status
	cancel  context.CancelFunc
}

// Monitor runs one probing goroutine per monitored container and reports
// transitions to an Observer. It matches the per-container goroutine and
// cancel-func bookkeeping pattern used for per-task health checks, but
// drives a typed snapshot/observer pair directly instead of a remote RPC.
type Monitor struct {
	log zerolog.Logger

	observerMu sync.RWMutex
	observer   Observer

	mu      sync.RWMutex
	watches map[string]*watch
}

// NewMonitor creates a Monitor that reports transitions to obs. obs may be
// nil when the eventual observer is constructed from a reference to this
// Monitor (the Container Lifecycle Manager is built from a HealthMonitor
// interface satisfied by *Monitor, and is itself the Observer) — set it
// with SetObserver once both sides exist.
func NewMonitor(log zerolog.Logger, obs Observer) *Monitor {
	return &Monitor{
		log:      log,
		observer: obs,
		watches:  make(map[string]*watch),
	}
}

// SetObserver replaces the Observer that receives transition callbacks.
func (m *Monitor) SetObserver(obs Observer) {
	m.observerMu.Lock()
	m.observer = obs
	m.observerMu.Unlock()
}

func (m *Monitor) getObserver() Observer {
	m.observerMu.RLock()
	defer m.observerMu.RUnlock()
	return m.observer
}

// Start begins periodic probing of containerID using checker per config.
// It is idempotent: a second Start for an already-watched container is a
// no-op (the caller must Stop first to replace the checker/config).
func (m *Monitor) Start(containerID, projectID string, checker Checker, config Config) {
	m.mu.Lock()
	if _, exists := m.watches[containerID]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		checker: checker,
		config:  config,
		status:  NewStatus(),
		cancel:  cancel,
	}
	m.watches[containerID] = w
	m.mu.Unlock()

	go m.loop(ctx, containerID, projectID, w)
}

// Stop halts probing for containerID. Safe to call on an unwatched id.
func (m *Monitor) Stop(containerID string) {
	m.mu.Lock()
	w, exists := m.watches[containerID]
	if exists {
		delete(m.watches, containerID)
	}
	m.mu.Unlock()
	if exists {
		w.cancel()
	}
}

// StopAll halts probing for every currently-watched container, for use
// during process shutdown.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	watches := m.watches
	m.watches = make(map[string]*watch)
	m.mu.Unlock()
	for _, w := range watches {
		w.cancel()
	}
}

// Snapshot returns the current health snapshot for containerID, if watched.
func (m *Monitor) Snapshot(containerID string) (Snapshot, bool) {
	m.mu.RLock()
	w, exists := m.watches[containerID]
	m.mu.RUnlock()
	if !exists {
		return Snapshot{}, false
	}
	return snapshotOf(containerID, "", w.status), true
}

func snapshotOf(containerID, projectID string, s *Status) Snapshot {
	return Snapshot{
		ContainerID:         containerID,
		ProjectID:           projectID,
		Healthy:             s.Healthy,
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastCheckedAt:       s.LastCheck,
		LastError:           s.LastResult.Message,
	}
}

func (m *Monitor) loop(ctx context.Context, containerID, projectID string, w *watch) {
	if w.status.InStartPeriod(w.config) {
		select {
		case <-time.After(w.config.StartPeriod):
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	m.probe(ctx, containerID, projectID, w)
	for {
		select {
		case <-ticker.C:
			m.probe(ctx, containerID, projectID, w)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context, containerID, projectID string, w *watch) {
	checkCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	result := w.checker.Check(checkCtx)
	transition := w.status.Update(result, w.config)

	if result.Healthy {
		metrics.HealthChecksTotal.WithLabelValues("success").Inc()
	} else {
		metrics.HealthChecksTotal.WithLabelValues("failure").Inc()
	}

	switch transition {
	case TransitionUnhealthy:
		m.log.Warn().Str("container_id", containerID).Str("project_id", projectID).
			Int("consecutive_failures", w.status.ConsecutiveFailures).
			Msg("container unhealthy")
		if obs := m.getObserver(); obs != nil {
			obs.ContainerUnhealthy(snapshotOf(containerID, projectID, w.status))
		}
	case TransitionRecovered:
		m.log.Info().Str("container_id", containerID).Str("project_id", projectID).
			Msg("container recovered")
		if obs := m.getObserver(); obs != nil {
			obs.ContainerRecovered(snapshotOf(containerID, projectID, w.status))
		}
	}
}
