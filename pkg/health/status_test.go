package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_UnhealthyThenRecovered(t *testing.T) {
	s := NewStatus()
	cfg := Config{UnhealthyThreshold: 3, HealthyThreshold: 1}

	require.Equal(t, TransitionNone, s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg))
	require.Equal(t, TransitionNone, s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg))
	assert.True(t, s.Healthy, "should still be healthy below threshold")

	require.Equal(t, TransitionUnhealthy, s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg))
	assert.False(t, s.Healthy)

	require.Equal(t, TransitionRecovered, s.Update(Result{Healthy: true, CheckedAt: time.Now()}, cfg))
	assert.True(t, s.Healthy)
}

func TestStatus_TwoFailuresThenSuccessNoEvent(t *testing.T) {
	s := NewStatus()
	cfg := Config{UnhealthyThreshold: 3, HealthyThreshold: 1}

	require.Equal(t, TransitionNone, s.Update(Result{Healthy: false}, cfg))
	require.Equal(t, TransitionNone, s.Update(Result{Healthy: false}, cfg))
	require.Equal(t, TransitionNone, s.Update(Result{Healthy: true}, cfg))
	assert.True(t, s.Healthy)
	assert.Equal(t, 0, s.ConsecutiveFailures)
}

func TestStatus_RecoveryRequiresThreshold(t *testing.T) {
	s := NewStatus()
	cfg := Config{UnhealthyThreshold: 2, HealthyThreshold: 2}

	s.Update(Result{Healthy: false}, cfg)
	require.Equal(t, TransitionUnhealthy, s.Update(Result{Healthy: false}, cfg))

	require.Equal(t, TransitionNone, s.Update(Result{Healthy: true}, cfg))
	assert.False(t, s.Healthy, "one success short of HealthyThreshold")

	require.Equal(t, TransitionRecovered, s.Update(Result{Healthy: true}, cfg))
	assert.True(t, s.Healthy)
}
