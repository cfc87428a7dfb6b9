package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundCommand(t *testing.T) *cobra.Command {
	t.Helper()
	viper.Reset()
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)
	return cmd
}

func TestDefaults_AreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoad_UsesDefaultsWithNoFlagsSet(t *testing.T) {
	newBoundCommand(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().DataDir, cfg.DataDir)
	assert.Equal(t, Defaults().Health.Interval, cfg.Health.Interval)
}

func TestLoad_FlagOverridesDefault(t *testing.T) {
	cmd := newBoundCommand(t)
	require.NoError(t, cmd.PersistentFlags().Set("data-dir", "/tmp/custom-debughostd"))
	require.NoError(t, cmd.PersistentFlags().Set("health-unhealthy-threshold", "5"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-debughostd", cfg.DataDir)
	assert.Equal(t, 5, cfg.Health.UnhealthyThreshold)
}

func TestLoad_RejectsEmptyDataDir(t *testing.T) {
	cmd := newBoundCommand(t)
	require.NoError(t, cmd.PersistentFlags().Set("data-dir", ""))

	_, err := Load()
	require.Error(t, err)
}

func TestPortRangeMap_KeyedByTech(t *testing.T) {
	cfg := Defaults()
	m := cfg.PortRangeMap()
	nodejs, ok := m["nodejs"]
	require.True(t, ok)
	assert.Equal(t, 3000, nodejs.Min)
}
