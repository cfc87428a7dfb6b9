// Package logs implements the Log Collector & Streamer: it attaches to a
// container's combined stdout/stderr stream via the engine adapter, demuxes
// and classifies each line, maintains a bounded per-container ring buffer,
// and fans new entries out to subscribers through pkg/events.LogBroker.
//
// Grounded on other_examples' germanoeich-siftail docker.go (per-container
// goroutine + cancel-func map, bufio.Scanner raw-text fallback) generalized
// from its fake single-stream client into a real frame-demuxing attach.
package logs

import (
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/debughostd/pkg/apierr"
	"github.com/cuemby/debughostd/pkg/events"
	"github.com/cuemby/debughostd/pkg/types"
	"github.com/rs/zerolog"
)

// RingCapacity is the maximum number of entries retained per container.
const RingCapacity = 10000

// Attacher is the narrow engine capability the collector needs;
// engine.Engine satisfies it.
type Attacher interface {
	AttachLogs(ctx context.Context, containerID string, follow bool) (io.ReadCloser, error)
}

type watch struct {
	cancel context.CancelFunc
	buf    *ringBuffer
	mu     sync.Mutex
}

// Collector manages one attach-goroutine per container.
type Collector struct {
	log      zerolog.Logger
	attacher Attacher
	broker   *events.LogBroker

	mu       sync.Mutex
	watches  map[string]*watch
	projects map[string]string // containerName -> projectID, for broker publish
}

// New builds a Collector publishing through broker.
func New(log zerolog.Logger, attacher Attacher, broker *events.LogBroker) *Collector {
	return &Collector{
		log:      log,
		attacher: attacher,
		broker:   broker,
		watches:  make(map[string]*watch),
		projects: make(map[string]string),
	}
}

// Start attaches to containerID's combined log stream under containerName,
// idempotent if already collecting.
func (c *Collector) Start(containerID, containerName, projectID string) {
	c.mu.Lock()
	if _, exists := c.watches[containerName]; exists {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{cancel: cancel, buf: newRingBuffer(RingCapacity)}
	c.watches[containerName] = w
	c.projects[containerName] = projectID
	c.mu.Unlock()

	go c.run(ctx, containerID, containerName, projectID, w)
}

// Stop detaches and drops the in-memory buffer for containerName.
func (c *Collector) Stop(containerName string) {
	c.mu.Lock()
	w, ok := c.watches[containerName]
	if ok {
		delete(c.watches, containerName)
		delete(c.projects, containerName)
	}
	c.mu.Unlock()
	if ok {
		w.cancel()
	}
}

// StopAll detaches every currently-collecting container, for use during
// process shutdown. Buffered entries are discarded along with each watch;
// containers themselves keep running.
func (c *Collector) StopAll() {
	c.mu.Lock()
	watches := c.watches
	c.watches = make(map[string]*watch)
	c.projects = make(map[string]string)
	c.mu.Unlock()
	for _, w := range watches {
		w.cancel()
	}
}

// Clear empties the ring buffer for containerName without stopping
// collection.
func (c *Collector) Clear(containerName string) {
	c.mu.Lock()
	w := c.watches[containerName]
	c.mu.Unlock()
	if w == nil {
		return
	}
	w.mu.Lock()
	w.buf.clear()
	w.mu.Unlock()
}

// Buffered returns a filtered copy of containerName's ring buffer. A
// malformed filter.Search regex is reported as a KindValidation error.
func (c *Collector) Buffered(containerName string, filter types.LogFilter) ([]types.LogEntry, error) {
	c.mu.Lock()
	w := c.watches[containerName]
	c.mu.Unlock()
	if w == nil {
		return nil, nil
	}

	w.mu.Lock()
	all := w.buf.snapshot()
	w.mu.Unlock()

	return applyFilter(all, filter)
}

func applyFilter(all []types.LogEntry, filter types.LogFilter) ([]types.LogEntry, error) {
	var search *regexp.Regexp
	if filter.Search != "" {
		re, err := regexp.Compile("(?i)" + filter.Search)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindValidation, apierr.CodeInvalidFilter, "invalid search regex", err)
		}
		search = re
	}

	out := make([]types.LogEntry, 0, len(all))
	for _, e := range all {
		if filter.Level != "" && e.Level != filter.Level {
			continue
		}
		if filter.Stream != "" && e.Stream != filter.Stream {
			continue
		}
		if filter.Since != nil && e.Timestamp < filter.Since.UnixMilli() {
			continue
		}
		if filter.Until != nil && e.Timestamp > filter.Until.UnixMilli() {
			continue
		}
		if search != nil && !search.MatchString(e.Message) {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// run attaches and demuxes until the stream ends or Stop cancels ctx. It
// does not remove the watch from the map on its own: a naturally-ended
// stream (the container exited) should leave its buffered entries
// queryable until the caller explicitly Stops collection for this
// container.
func (c *Collector) run(ctx context.Context, containerID, containerName, projectID string, w *watch) {
	stream, err := c.attacher.AttachLogs(ctx, containerID, true)
	if err != nil {
		c.log.Warn().Err(err).Str("container_name", containerName).Msg("failed to attach logs")
		return
	}
	defer stream.Close()

	err = demux(stream, func(fr frame) {
		c.ingest(containerName, projectID, fr, w)
	})
	if err != nil && ctx.Err() == nil {
		c.log.Warn().Err(err).Str("container_name", containerName).Msg("log stream ended")
	}
}

func (c *Collector) ingest(containerName, projectID string, fr frame, w *watch) {
	raw := string(fr.payload)
	lines := strings.SplitAfter(raw, "\n")
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == "" {
			continue
		}
		ts, message := splitTimestamp(trimmed)
		timestamp := time.Now()
		if !ts.IsZero() {
			timestamp = ts
		}

		streamType := types.StreamStdout
		if fr.stream == 2 {
			streamType = types.StreamStderr
		}

		entry := types.LogEntry{
			ContainerName: containerName,
			Timestamp:     timestamp.UnixMilli(),
			Stream:        streamType,
			Level:         classifyLevel(message),
			Message:       message,
			Raw:           trimmed,
		}

		w.mu.Lock()
		w.buf.push(entry)
		w.mu.Unlock()

		if c.broker != nil {
			c.broker.Publish(projectID, entry)
		}
	}
}
