package logs

import "github.com/cuemby/debughostd/pkg/types"

// ringBuffer is a fixed-capacity, slice-backed ring of LogEntry, oldest
// entries overwritten once full. Slice-backed rather than container/list,
// matching the pack's general preference for slices over linked
// structures.
type ringBuffer struct {
	entries []types.LogEntry
	cap     int
	start   int // index of the oldest entry
	size    int // number of valid entries
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{entries: make([]types.LogEntry, capacity), cap: capacity}
}

func (r *ringBuffer) push(e types.LogEntry) {
	idx := (r.start + r.size) % r.cap
	r.entries[idx] = e
	if r.size < r.cap {
		r.size++
	} else {
		r.start = (r.start + 1) % r.cap
	}
}

// snapshot returns entries oldest-first.
func (r *ringBuffer) snapshot() []types.LogEntry {
	out := make([]types.LogEntry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.start+i)%r.cap]
	}
	return out
}

func (r *ringBuffer) clear() {
	r.start = 0
	r.size = 0
}
