package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/registry"
	"github.com/cuemby/debughostd/pkg/scanner"
	"github.com/cuemby/debughostd/pkg/types"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) (*Collector, *registry.Registry, *ports.Registry) {
	t.Helper()
	dir := t.TempDir()

	ranges := []types.TechRange{
		{Tech: "react", Min: 3000, Max: 3002, Default: 3000},
	}
	portReg, err := ports.New(zerolog.Nop(), filepath.Join(dir, "ports.json"), ranges)
	require.NoError(t, err)

	rangeMap := map[string]types.TechRange{"react": ranges[0]}
	reg, err := registry.New(zerolog.Nop(), filepath.Join(dir, "projects.json"), scanner.New(), portReg, rangeMap)
	require.NoError(t, err)

	return NewCollector(reg, portReg, []string{"react"}), reg, portReg
}

func TestCollect_ProjectsTotalReflectsRegistryCounts(t *testing.T) {
	c, reg, _ := newTestCollector(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"dependencies":{"react":"18"}}`), 0o644))

	p, err := reg.Register(dir, "app")
	require.NoError(t, err)

	c.collect()

	metric := &dto.Metric{}
	require.NoError(t, ProjectsTotal.WithLabelValues(string(p.Status)).Write(metric))
	assert.Equal(t, float64(1), metric.GetGauge().GetValue())
}

func TestCollect_PortMetricsReflectUsage(t *testing.T) {
	c, reg, _ := newTestCollector(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"dependencies":{"react":"18"}}`), 0o644))

	_, err := reg.Register(dir, "app")
	require.NoError(t, err)

	c.collect()

	allocated := &dto.Metric{}
	require.NoError(t, PortsAllocated.WithLabelValues("react").Write(allocated))
	assert.Equal(t, float64(1), allocated.GetGauge().GetValue())

	free := &dto.Metric{}
	require.NoError(t, PortsFree.WithLabelValues("react").Write(free))
	assert.Equal(t, float64(2), free.GetGauge().GetValue())
}

func TestStartStop_DoesNotPanic(t *testing.T) {
	c, _, _ := newTestCollector(t)
	c.Start()
	c.Stop()
}
