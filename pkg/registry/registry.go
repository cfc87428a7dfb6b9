// Package registry is the Project Registry: the sole owner of Project
// records. It composes pkg/scanner and pkg/ports during registration and
// persists everything through pkg/store.
//
// Mutations write straight through pkg/store under the registry's own
// sync.RWMutex: debughostd is single-node, so there's no replicated log
// to route writes through.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/cuemby/debughostd/pkg/apierr"
	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/scanner"
	"github.com/cuemby/debughostd/pkg/store"
	"github.com/cuemby/debughostd/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Document is the persisted shape of the registry's store file.
type Document struct {
	Projects map[string]types.Project `json:"projects"`
}

func emptyDocument() Document {
	return Document{Projects: make(map[string]types.Project)}
}

// Registry owns Project records.
type Registry struct {
	log     zerolog.Logger
	store   *store.Store[Document]
	scanner *scanner.Scanner
	ports   *ports.Registry
	ranges  map[string]types.TechRange

	mu sync.RWMutex
}

// New builds a Registry persisted at path, using scan and portRegistry to
// populate new projects during Register, and ranges to resolve each tech's
// preferred port window.
func New(log zerolog.Logger, path string, scan *scanner.Scanner, portRegistry *ports.Registry, ranges map[string]types.TechRange) (*Registry, error) {
	s, err := store.New(path, emptyDocument)
	if err != nil {
		return nil, err
	}
	return &Registry{log: log, store: s, scanner: scan, ports: portRegistry, ranges: ranges}, nil
}

// Register validates the workspace, detects its tech stack, allocates a
// primary port, assigns a fresh project_id, and persists the new Project
// with status stopped.
func (r *Registry) Register(workspacePath, name string) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Read()
	if err != nil {
		return types.Project{}, err
	}
	for _, p := range doc.Projects {
		if p.WorkspacePath == workspacePath {
			return types.Project{}, apierr.New(apierr.KindConflict, apierr.CodeDuplicateWorkspace,
				"a project already references this workspace path")
		}
	}

	result, err := r.scanner.Scan(workspacePath, r.ranges)
	if err != nil {
		return types.Project{}, err
	}

	id := uuid.NewString()
	port, err := r.ports.Allocate(id, result.PrimaryTech, result.PortRecommendation.Default)
	if e, ok := apierr.As(err); ok && e.Code == apierr.CodePortConflict {
		// The range's default port is taken by another project: fall back
		// to the lowest free port in the same range.
		port, err = r.ports.Allocate(id, result.PrimaryTech, 0)
	}
	if err != nil {
		return types.Project{}, err
	}

	if name == "" && result.Metadata.Name != "" {
		name = scanner.NormalizeName(result.Metadata.Name)
	}
	if name == "" {
		name = fallbackName(workspacePath)
	}

	now := time.Now()
	project := types.Project{
		ProjectID:     id,
		Name:          name,
		WorkspacePath: workspacePath,
		DetectedTech:  result.Technologies,
		PrimaryTech:   result.PrimaryTech,
		Ports:         types.ProjectPorts{Primary: port},
		Status:        types.StatusStopped,
		HealthStatus:  types.HealthUnknown,
		RegisteredAt:  now,
	}

	doc.Projects[id] = project
	if err := r.store.Write(doc); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

// Get returns a project by id.
func (r *Registry) Get(projectID string) (types.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.store.Read()
	if err != nil {
		return types.Project{}, false
	}
	p, ok := doc.Projects[projectID]
	return p, ok
}

// Filter narrows List results.
type Filter struct {
	Status      types.ProjectStatus
	PrimaryTech string
}

// List returns projects matching filter, unfiltered fields left zero.
func (r *Registry) List(filter Filter) ([]types.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	out := make([]types.Project, 0, len(doc.Projects))
	for _, p := range doc.Projects {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.PrimaryTech != "" && p.PrimaryTech != filter.PrimaryTech {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Patch is a merge-patch applied by Update; a field left nil is unchanged.
// project_id, workspace_path, and registered_at have no corresponding
// field here, so Update can never touch them.
type Patch struct {
	Name          *string
	Status        *types.ProjectStatus
	ContainerID   *string
	ContainerName *string
	HealthStatus  *types.ProjectHealth
	LastError     *string
	CurrentOp     *string
	StartedAt     **time.Time
	StoppedAt     **time.Time
	LastOpTime    **time.Time
	LastHealthAt  **time.Time
	Ports         *types.ProjectPorts
}

// Update applies patch to projectID's record and persists the result.
// The immutable fields (project_id, workspace_path, registered_at) have no
// corresponding Patch field, so they can never be changed through this
// operation.
func (r *Registry) Update(projectID string, patch Patch) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Read()
	if err != nil {
		return types.Project{}, err
	}
	p, ok := doc.Projects[projectID]
	if !ok {
		return types.Project{}, apierr.New(apierr.KindNotFound, "", "project not found")
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.ContainerID != nil {
		p.ContainerID = *patch.ContainerID
	}
	if patch.ContainerName != nil {
		p.ContainerName = *patch.ContainerName
	}
	if patch.HealthStatus != nil {
		p.HealthStatus = *patch.HealthStatus
	}
	if patch.LastError != nil {
		p.LastError = *patch.LastError
	}
	if patch.CurrentOp != nil {
		p.CurrentOp = *patch.CurrentOp
	}
	if patch.StartedAt != nil {
		p.StartedAt = *patch.StartedAt
	}
	if patch.StoppedAt != nil {
		p.StoppedAt = *patch.StoppedAt
	}
	if patch.LastOpTime != nil {
		p.LastOpTime = *patch.LastOpTime
	}
	if patch.LastHealthAt != nil {
		p.LastHealthAt = *patch.LastHealthAt
	}
	if patch.Ports != nil {
		p.Ports = *patch.Ports
	}

	doc.Projects[projectID] = p
	if err := r.store.Write(doc); err != nil {
		return types.Project{}, err
	}
	return p, nil
}

// Remove deletes a project's record, requiring it be stopped or errored,
// and releases its ports.
func (r *Registry) Remove(projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Read()
	if err != nil {
		return err
	}
	p, ok := doc.Projects[projectID]
	if !ok {
		return apierr.New(apierr.KindNotFound, "", "project not found")
	}
	if p.Status != types.StatusStopped && p.Status != types.StatusError {
		return apierr.New(apierr.KindConflict, apierr.CodeOperationInProgress,
			"project must be stopped before it can be removed")
	}

	if p.Ports.Primary != 0 {
		if err := r.ports.Release(p.Ports.Primary); err != nil {
			r.log.Warn().Err(err).Int("port", p.Ports.Primary).Msg("failed to release primary port on remove")
		}
	}
	for _, port := range p.Ports.Allocated {
		if err := r.ports.Release(port); err != nil {
			r.log.Warn().Err(err).Int("port", port).Msg("failed to release allocated port on remove")
		}
	}

	delete(doc.Projects, projectID)
	return r.store.Write(doc)
}

func fallbackName(workspacePath string) string {
	trimmed := strings.TrimRight(workspacePath, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx == -1 || idx == len(trimmed)-1 {
		return "project"
	}
	return trimmed[idx+1:]
}
