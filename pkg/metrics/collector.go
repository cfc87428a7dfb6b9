package metrics

import (
	"time"

	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/registry"
)

// Collector periodically snapshots the Project Registry and Port
// Registry into the gauges Handler exposes, polling on a fixed tick
// rather than updating gauges inline on every mutation.
type Collector struct {
	registry *registry.Registry
	ports    *ports.Registry
	techs    []string
	stopCh   chan struct{}
}

// NewCollector builds a Collector. techs is the set of tech names to
// report port usage for (typically the keys of config.Config.PortRangeMap()).
func NewCollector(reg *registry.Registry, portReg *ports.Registry, techs []string) *Collector {
	return &Collector{registry: reg, ports: portReg, techs: techs, stopCh: make(chan struct{})}
}

// Start begins the periodic collection tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectProjectMetrics()
	c.collectPortMetrics()
}

func (c *Collector) collectProjectMetrics() {
	projects, err := c.registry.List(registry.Filter{})
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, p := range projects {
		counts[string(p.Status)]++
	}
	for status, count := range counts {
		ProjectsTotal.WithLabelValues(status).Set(float64(count))
	}
}

func (c *Collector) collectPortMetrics() {
	for _, tech := range c.techs {
		usage := c.ports.Usage(tech)
		PortsAllocated.WithLabelValues(tech).Set(float64(usage.Allocated))
		PortsFree.WithLabelValues(tech).Set(float64(usage.Free))
	}
}
