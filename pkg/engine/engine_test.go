package engine

import (
	"os"
	"testing"

	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_NegotiatesAPIVersion guards against the client version being
// locked by a stale DOCKER_API_VERSION, mirroring the pack's own
// regression coverage for this exact failure mode.
func TestNew_NegotiatesAPIVersion(t *testing.T) {
	original := os.Getenv("DOCKER_API_VERSION")
	defer func() {
		if original == "" {
			os.Unsetenv("DOCKER_API_VERSION")
		} else {
			os.Setenv("DOCKER_API_VERSION", original)
		}
	}()
	require.NoError(t, os.Setenv("DOCKER_API_VERSION", "1.25"))

	e, err := New(zerolog.Nop(), "")
	require.NoError(t, err)
	defer e.Close()

	assert.NotEqual(t, "1.25", e.client.ClientVersion())
}

func TestNew_UsesFromEnv(t *testing.T) {
	e, err := New(zerolog.Nop(), "")
	require.NoError(t, err)
	defer e.Close()
	assert.NotNil(t, e.client)
	var _ *client.Client = e.client
}

func TestNetworkConstants_MatchBridgeConvention(t *testing.T) {
	assert.Equal(t, "debug-host-network", NetworkName)
	assert.Equal(t, "172.28.0.0/16", NetworkSubnet)
	assert.Equal(t, "172.28.0.1", NetworkGateway)
}
