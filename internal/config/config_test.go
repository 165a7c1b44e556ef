package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies a config loaded with no file and no env carries
// the documented defaults.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 5, cfg.Governor.FailureThreshold)
	require.Equal(t, 300, cfg.Governor.RecoveryTimeoutSeconds)
	require.Equal(t, 50, cfg.Governor.WindowSize)
	require.InEpsilon(t, 0.5, cfg.Governor.CriticalErrorRate, 1e-9)
	require.InEpsilon(t, 0.2, cfg.Governor.WarningErrorRate, 1e-9)
	require.Equal(t, 50, cfg.Cache.Capacity)
	require.Equal(t, 300, cfg.Cache.TTLSeconds)
	require.Equal(t, float64(1024), cfg.Guard.MaxMemoryMB)
	require.Equal(t, float64(85), cfg.Guard.MaxCPUPercent)
	require.Equal(t, 3, cfg.Fleet.Workers)
	require.Equal(t, 5, cfg.Fleet.BatchSize)
	require.Equal(t, 10, cfg.Fleet.BatchPauseSeconds)
	require.True(t, cfg.Logging.Development)
}

// TestLoadEnvOverride verifies HARVEST_ environment variables beat defaults.
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HARVEST_SERVER_PORT", "9090")
	t.Setenv("HARVEST_FLEET_WORKERS", "7")
	t.Setenv("HARVEST_GOVERNOR_FAILURE_THRESHOLD", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 7, cfg.Fleet.Workers)
	require.Equal(t, 2, cfg.Governor.FailureThreshold)
}

// TestLoadFile verifies a YAML file merges over defaults.
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
server:
  port: 9191
governor:
  base_delay_seconds: 4
cache:
  capacity: 10
pubsub:
  project_id: fleet-dev
  topic_name: harvest-alerts
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, 4, cfg.Governor.BaseDelaySeconds)
	require.Equal(t, 10, cfg.Cache.Capacity)
	require.Equal(t, "fleet-dev", cfg.PubSub.ProjectID)
}

// TestValidate exercises the guard rails.
func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Governor.WarningErrorRate = 0.6
	require.Error(t, cfg.Validate(), "warning rate above critical rate must fail")

	cfg = base()
	cfg.Governor.MinDelaySeconds = 10
	cfg.Governor.MaxDelaySeconds = 8
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate(), "auth without key must fail")

	cfg = base()
	cfg.PubSub.ProjectID = "fleet-dev"
	require.Error(t, cfg.Validate(), "pubsub project without topic must fail")
}

// TestSettingsConversion verifies the duration conversions feed downstream
// configs correctly.
func TestSettingsConversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	gov := cfg.GovernorSettings()
	require.Equal(t, 300*time.Second, gov.Breaker.RecoveryTimeout)
	require.Equal(t, 30*time.Second, gov.Monitor.SlowLatency)
	require.Equal(t, 2*time.Second, gov.Delay.BaseDelay)
	require.Equal(t, 8*time.Second, gov.Delay.MaxDelay)
	require.Equal(t, 5*time.Second, gov.Delay.ErrorBackoffBase)

	require.Equal(t, 5*time.Minute, cfg.CacheSettings().TTL)
	require.Equal(t, 30*time.Second, cfg.GuardSettings().SampleInterval)
	require.Equal(t, 10*time.Second, cfg.PoolSettings().BatchPause)
	require.Equal(t, time.Minute, cfg.WorkerSettings().FetchTimeout)
}
