// Package events implements the push-stream subscription bus: one-way,
// non-blocking per-publisher typed event channels for Log and Health
// events. Two typed brokers hold bounded per-subscriber queues with
// explicit drop accounting, so a full subscriber's oldest entry is
// dropped and counted rather than silently skipped.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/debughostd/pkg/metrics"
	"github.com/cuemby/debughostd/pkg/types"
)

// DefaultQueueDepth is the per-subscription bounded queue size.
const DefaultQueueDepth = 1024

// LogSubscription is a single consumer's one-way feed of LogEntry events.
type LogSubscription struct {
	ch      chan types.LogEntry
	dropped atomic.Int64
}

// C returns the channel to range over for delivered entries.
func (s *LogSubscription) C() <-chan types.LogEntry { return s.ch }

// Dropped returns the number of entries dropped because this
// subscription's queue was full.
func (s *LogSubscription) Dropped() int64 { return s.dropped.Load() }

// LogBroker fans out LogEntry events to subscribers without ever blocking
// the producer: a full subscriber queue drops its oldest entry and
// increments that subscription's counter.
type LogBroker struct {
	mu   sync.RWMutex
	subs map[*LogSubscription]string // subscription -> project_id
}

// NewLogBroker creates an empty LogBroker.
func NewLogBroker() *LogBroker {
	return &LogBroker{subs: make(map[*LogSubscription]string)}
}

// Subscribe registers a new subscription for projectID's log events.
func (b *LogBroker) Subscribe(projectID string) *LogSubscription {
	sub := &LogSubscription{ch: make(chan types.LogEntry, DefaultQueueDepth)}
	b.mu.Lock()
	b.subs[sub] = projectID
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *LogBroker) Unsubscribe(sub *LogSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish delivers entry to every subscription registered for projectID.
// Never blocks: a full queue drops its oldest queued entry to make room.
func (b *LogBroker) Publish(projectID string, entry types.LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, pid := range b.subs {
		if pid != projectID {
			continue
		}
		if deliverOrDrop(sub.ch, entry, &sub.dropped) {
			metrics.LogsDroppedTotal.Inc()
		}
	}
}

// SubscriberCount returns the number of active log subscriptions.
func (b *LogBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// HealthSubscription is a single consumer's one-way feed of HealthSnapshot
// transitions (unhealthy/recovered, not every probe).
type HealthSubscription struct {
	ch      chan types.HealthSnapshot
	dropped atomic.Int64
}

// C returns the channel to range over for delivered snapshots.
func (s *HealthSubscription) C() <-chan types.HealthSnapshot { return s.ch }

// Dropped returns the number of snapshots dropped for this subscription.
func (s *HealthSubscription) Dropped() int64 { return s.dropped.Load() }

// HealthBroker fans out HealthSnapshot transitions to subscribers.
type HealthBroker struct {
	mu   sync.RWMutex
	subs map[*HealthSubscription]string
}

// NewHealthBroker creates an empty HealthBroker.
func NewHealthBroker() *HealthBroker {
	return &HealthBroker{subs: make(map[*HealthSubscription]string)}
}

// Subscribe registers a new subscription for projectID's health events.
func (b *HealthBroker) Subscribe(projectID string) *HealthSubscription {
	sub := &HealthSubscription{ch: make(chan types.HealthSnapshot, DefaultQueueDepth)}
	b.mu.Lock()
	b.subs[sub] = projectID
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *HealthBroker) Unsubscribe(sub *HealthSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish delivers snap to every subscription registered for projectID.
func (b *HealthBroker) Publish(projectID string, snap types.HealthSnapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, pid := range b.subs {
		if pid != projectID {
			continue
		}
		deliverOrDrop(sub.ch, snap, &sub.dropped)
	}
}

// deliverOrDrop attempts a non-blocking send; on a full channel it evicts
// the oldest queued value to make room for v and counts the drop, and
// reports whether a drop occurred.
func deliverOrDrop[T any](ch chan T, v T, dropped *atomic.Int64) bool {
	select {
	case ch <- v:
		return false
	default:
	}

	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
	dropped.Add(1)
	return true
}
