package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 500*time.Millisecond, cfg.TrackingPollInterval)
	assert.InDelta(t, 1.0, cfg.PlacementDistance, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, 5, cfg.BreakerFailureThreshold)
	assert.Equal(t, 64, cfg.MaxScreens)
	assert.Equal(t, "anonymous", cfg.AnchorCreator)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/blueprints")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("TRACKING_POLL_INTERVAL", "250ms")
	t.Setenv("PLACEMENT_DISTANCE", "1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/blueprints", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 250*time.Millisecond, cfg.TrackingPollInterval)
	assert.InDelta(t, 1.5, cfg.PlacementDistance, 1e-9)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero poll interval", "TRACKING_POLL_INTERVAL", "0s", "TRACKING_POLL_INTERVAL must be positive"},
		{"negative remote timeout", "REMOTE_TIMEOUT", "-1s", "REMOTE_TIMEOUT must be positive"},
		{"zero placement distance", "PLACEMENT_DISTANCE", "0", "PLACEMENT_DISTANCE must be positive"},
		{"zero breaker threshold", "BREAKER_FAILURE_THRESHOLD", "0", "BREAKER_FAILURE_THRESHOLD must be at least 1"},
		{"zero screens", "MAX_SCREENS", "0", "MAX_SCREENS must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
