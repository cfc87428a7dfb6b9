package ports

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/debughostd/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ports.json")
	ranges := []types.TechRange{
		{Tech: "nodejs", Min: 3000, Max: 3001, Default: 3000},
		{Tech: "unknown", Min: 3000, Max: 3001},
	}
	r, err := New(zerolog.Nop(), path, ranges)
	require.NoError(t, err)
	return r
}

func TestAllocate_PreferredInRange(t *testing.T) {
	r := newRegistry(t)
	p, err := r.Allocate("proj-1", "nodejs", 3000)
	require.NoError(t, err)
	assert.Equal(t, 3000, p)
}

func TestAllocate_ExhaustsRange(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Allocate("proj-1", "nodejs", 0)
	require.NoError(t, err)
	_, err = r.Allocate("proj-2", "nodejs", 0)
	require.NoError(t, err)

	_, err = r.Allocate("proj-3", "nodejs", 0)
	require.Error(t, err)
}

func TestAllocate_ConflictOnHeldPreferred(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Allocate("proj-1", "nodejs", 3000)
	require.NoError(t, err)

	_, err = r.Allocate("proj-2", "nodejs", 3000)
	require.Error(t, err)
}

func TestRelease_QuarantinesBeforeFree(t *testing.T) {
	r := newRegistry(t)
	p, err := r.Allocate("proj-1", "nodejs", 3000)
	require.NoError(t, err)

	require.NoError(t, r.Release(p))
	assert.False(t, r.IsFree(p), "should be quarantined, not immediately free")
}

func TestUsage_AllocatedPlusFreeEqualsTotal(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Allocate("proj-1", "nodejs", 3000)
	require.NoError(t, err)

	u := r.Usage("nodejs")
	assert.Equal(t, u.Total, u.Allocated+u.Free)
	assert.Equal(t, 2, u.Total)
	assert.Equal(t, 1, u.Allocated)
}

func TestQuarantineWindow_IsPositive(t *testing.T) {
	assert.Greater(t, QuarantineWindow, time.Duration(0))
}

func TestAllocate_SameProjectReusesHeldOrQuarantinedPort(t *testing.T) {
	r := newRegistry(t)
	p, err := r.Allocate("proj-1", "nodejs", 3000)
	require.NoError(t, err)

	// Re-requesting the same port is idempotent for its own owner, not a
	// conflict (a project re-starting without having ever stopped).
	again, err := r.Allocate("proj-1", "nodejs", p)
	require.NoError(t, err)
	assert.Equal(t, p, again)

	// Once released to quarantine, the same owner can still reclaim it
	// immediately rather than waiting out its own quarantine window.
	require.NoError(t, r.Release(p))
	reclaimed, err := r.Allocate("proj-1", "nodejs", p)
	require.NoError(t, err)
	assert.Equal(t, p, reclaimed)
	assert.False(t, r.IsFree(p))
}
