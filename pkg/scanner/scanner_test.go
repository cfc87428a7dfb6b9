package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/debughostd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func defaultRanges() map[string]types.TechRange {
	return map[string]types.TechRange{
		"react":  {Tech: "react", Min: 3000, Max: 3999, Default: 3000},
		"nodejs": {Tech: "nodejs", Min: 3000, Max: 3999, Default: 3000},
	}
}

func TestScan_ReactProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name":"app","version":"1.0.0","dependencies":{"react":"18.0.0"}}`)

	s := New()
	result, err := s.Scan(dir, defaultRanges())
	require.NoError(t, err)

	assert.Equal(t, "react", result.PrimaryTech)
	assert.Equal(t, "app", result.Metadata.Name)
	assert.Equal(t, 3000, result.PortRecommendation.Default)
}

func TestScan_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	s := New()
	result, err := s.Scan(dir, defaultRanges())
	require.NoError(t, err)

	assert.Empty(t, result.Technologies)
	assert.Equal(t, "unknown", result.PrimaryTech)
	assert.Equal(t, 3000, result.PortRecommendation.Min)
	assert.Equal(t, 9999, result.PortRecommendation.Max)
}

func TestScan_InvalidWorkspace(t *testing.T) {
	s := New()
	_, err := s.Scan(filepath.Join(t.TempDir(), "does-not-exist"), defaultRanges())
	require.Error(t, err)
}

func TestScan_ConfidenceCappedAt100(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"dependencies":{"react":"18"}}`)
	writeFile(t, dir, "angular.json", `{}`)

	s := New(WithPattern(Pattern{Tech: "react", Files: []string{"package.json"}, Dirs: []string{"node_modules"}, Extensions: []string{".js"}}))
	result, err := s.Scan(dir, defaultRanges())
	require.NoError(t, err)

	for _, d := range result.Technologies {
		assert.LessOrEqual(t, d.Confidence, 100.0)
	}
}
