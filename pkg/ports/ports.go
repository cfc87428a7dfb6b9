// Package ports implements the Port Registry: allocation, release, and
// recycling of TCP ports within per-tech ranges, using the same
// lock-protected map-of-allocations bookkeeping shape as a host port
// publisher, but handing out ports from a range rather than forwarding
// to already-running ones.
package ports

import (
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/debughostd/pkg/apierr"
	"github.com/cuemby/debughostd/pkg/store"
	"github.com/cuemby/debughostd/pkg/types"
	"github.com/rs/zerolog"
)

// QuarantineWindow is the delay a released port spends in "recycling"
// before it is handed out again, avoiding immediate reuse while the prior
// socket is in TIME_WAIT.
const QuarantineWindow = 30 * time.Second

// DefaultRanges returns the built-in per-tech port ranges.
func DefaultRanges() []types.TechRange {
	return []types.TechRange{
		{Tech: "system", Min: 2601, Max: 2699},
		{Tech: "nodejs", Min: 3000, Max: 3999, Default: 3000},
		{Tech: "react", Min: 3000, Max: 3999, Default: 3000},
		{Tech: "vue", Min: 3000, Max: 3999, Default: 3000},
		{Tech: "static", Min: 4000, Max: 4999, Default: 4000},
		{Tech: "angular", Min: 4200, Max: 4299, Default: 4200},
		{Tech: "python", Min: 5000, Max: 5999, Default: 5000},
		{Tech: "php", Min: 8080, Max: 8980, Default: 8080},
		{Tech: "unknown", Min: 3000, Max: 9999, Default: 3000},
	}
}

// Document is the on-disk layout of ports.json.
type Document struct {
	Allocations map[string]types.PortAllocation `json:"allocations"`
	History     []types.PortAllocation          `json:"history"`
}

func emptyDocument() Document {
	return Document{Allocations: make(map[string]types.PortAllocation)}
}

// Usage reports the counts for a tech range's usage() operation.
type Usage struct {
	Allocated int
	Free      int
	Total     int
}

// Registry is the Port Registry.
type Registry struct {
	log    zerolog.Logger
	store  *store.Store[Document]
	ranges map[string]types.TechRange

	mu       sync.Mutex
	inUse    map[int]types.PortAllocation
	recycled map[int]*time.Timer
}

// New loads (or creates) the port registry document at path.
func New(log zerolog.Logger, path string, ranges []types.TechRange) (*Registry, error) {
	s, err := store.New(path, emptyDocument)
	if err != nil {
		return nil, err
	}
	doc, err := s.Read()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		log:      log,
		store:    s,
		ranges:   make(map[string]types.TechRange, len(ranges)),
		inUse:    make(map[int]types.PortAllocation),
		recycled: make(map[int]*time.Timer),
	}
	for _, tr := range ranges {
		r.ranges[tr.Tech] = tr
	}
	for _, alloc := range doc.Allocations {
		if alloc.Status == types.PortInUse {
			r.inUse[alloc.Port] = alloc
		}
	}
	return r, nil
}

func (r *Registry) rangeFor(tech string) (types.TechRange, bool) {
	tr, ok := r.ranges[tech]
	return tr, ok
}

// Allocate hands projectID a port from tech's range (the "unknown" range if
// tech has none). With a non-zero preferred port it returns that port when
// it lies in the range and is neither in use by nor quarantined for another
// project (a port projectID itself holds or released is handed back); an
// out-of-range preferred port fails with KindValidation and a taken one with
// CodePortConflict, without substituting another port. With preferred 0 it
// returns the lowest port in the range that is neither in use nor
// quarantined, or fails with CodeNoPortAvailable if there is none.
func (r *Registry) Allocate(projectID, tech string, preferred int) (int, error) {
	tr, ok := r.rangeFor(tech)
	if !ok {
		tr = r.ranges["unknown"]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if preferred != 0 {
		if preferred < tr.Min || preferred > tr.Max {
			return 0, apierr.New(apierr.KindValidation, "", "preferred port outside tech range")
		}
		if held, ok := r.inUse[preferred]; ok && held.ProjectID != projectID {
			return 0, apierr.New(apierr.KindConflict, apierr.CodePortConflict, "preferred port already held").
				WithGuidance("retry with default")
		}
		if _, recycling := r.recycled[preferred]; recycling {
			doc, err := r.store.Read()
			if err != nil {
				return 0, err
			}
			if prev, ok := doc.Allocations[portKey(preferred)]; ok && prev.ProjectID != projectID {
				return 0, apierr.New(apierr.KindConflict, apierr.CodePortConflict, "preferred port is still in quarantine").
					WithGuidance("retry with default")
			}
		}
		return r.commitLocked(projectID, tech, preferred)
	}

	for p := tr.Min; p <= tr.Max; p++ {
		if _, held := r.inUse[p]; held {
			continue
		}
		if _, recycling := r.recycled[p]; recycling {
			continue
		}
		return r.commitLocked(projectID, tech, p)
	}
	return 0, apierr.New(apierr.KindConflict, apierr.CodeNoPortAvailable, "no free port in tech range")
}

func (r *Registry) commitLocked(projectID, tech string, port int) (int, error) {
	// Reusing a port that's still sitting in quarantine (e.g. a project
	// restarting before its own prior release fully recycled) cancels the
	// pending recycle rather than leaving a stale timer that would later
	// mark this fresh allocation free out from under it.
	if timer, recycling := r.recycled[port]; recycling {
		timer.Stop()
		delete(r.recycled, port)
	}

	alloc := types.PortAllocation{
		Port:        port,
		ProjectID:   projectID,
		Tech:        tech,
		Status:      types.PortInUse,
		AllocatedAt: time.Now(),
	}
	r.inUse[port] = alloc
	if err := r.persistLocked(alloc); err != nil {
		delete(r.inUse, port)
		return 0, err
	}
	return port, nil
}

// Release marks port as recycling; after QuarantineWindow it becomes free.
func (r *Registry) Release(port int) error {
	r.mu.Lock()
	alloc, ok := r.inUse[port]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	now := time.Now()
	alloc.Status = types.PortRecycling
	alloc.ReleasedAt = &now
	delete(r.inUse, port)

	if err := r.persistLocked(alloc); err != nil {
		r.mu.Unlock()
		return err
	}

	timer := time.AfterFunc(QuarantineWindow, func() { r.finishRecycle(port) })
	r.recycled[port] = timer
	r.mu.Unlock()
	return nil
}

func (r *Registry) finishRecycle(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recycled, port)
	_ = r.store.Update(func(doc Document) (Document, error) {
		key := portKey(port)
		if alloc, ok := doc.Allocations[key]; ok {
			alloc.Status = types.PortFree
			doc.History = append(doc.History, alloc)
			delete(doc.Allocations, key)
		}
		return doc, nil
	})
}

// IsFree reports whether port is currently not in-use and not quarantined.
func (r *Registry) IsFree(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.inUse[port]; held {
		return false
	}
	_, recycling := r.recycled[port]
	return !recycling
}

// Usage reports allocated/free/total for tech's range.
func (r *Registry) Usage(tech string) Usage {
	tr, ok := r.rangeFor(tech)
	if !ok {
		tr = r.ranges["unknown"]
	}
	total := tr.Max - tr.Min + 1

	r.mu.Lock()
	defer r.mu.Unlock()
	allocated := 0
	for p, a := range r.inUse {
		if a.Tech == tech && p >= tr.Min && p <= tr.Max {
			allocated++
		}
	}
	for p := range r.recycled {
		if p >= tr.Min && p <= tr.Max {
			allocated++
		}
	}
	return Usage{Allocated: allocated, Free: total - allocated, Total: total}
}

func (r *Registry) persistLocked(alloc types.PortAllocation) error {
	return r.store.Update(func(doc Document) (Document, error) {
		doc.Allocations[portKey(alloc.Port)] = alloc
		return doc, nil
	})
}

func portKey(port int) string {
	return strconv.Itoa(port)
}
