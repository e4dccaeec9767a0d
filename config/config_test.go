package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_URL", "https://crm.example.com")
	t.Setenv("CLIENT_ID", "client-id")
	t.Setenv("CLIENT_SECRET", "client-secret")
	t.Setenv("REDIRECT_URI", "https://app.example.com/callback")
	t.Setenv("CHECKPOINT_DB_URL", "mongodb://localhost:27017/coordinator")
}

func TestLoadAppliesDefaultsWhenOptionalVarsAbsent(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEMORY_API_KEY", "")
	t.Setenv("USE_V2_ARCHITECTURE", "")
	t.Setenv("TRACING_ENABLED", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.False(t, cfg.MemoryEnabled())
	require.True(t, cfg.UseV2Architecture)
	require.False(t, cfg.TracingEnabled)
	require.Equal(t, "coordinator", cfg.Deploy.TaskQueue)
}

func TestLoadFailsWithoutRequiredVars(t *testing.T) {
	t.Setenv("BASE_URL", "")
	t.Setenv("CLIENT_ID", "")
	t.Setenv("CLIENT_SECRET", "")
	t.Setenv("REDIRECT_URI", "")
	t.Setenv("CHECKPOINT_DB_URL", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadLayersDeployYAML(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("task_queue: coordinator-staging\nretry_max_attempts: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "coordinator-staging", cfg.Deploy.TaskQueue)
	require.Equal(t, 5, cfg.Deploy.RetryMaxAttempts)
}

func TestMemoryEnabledReflectsAPIKeyPresence(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEMORY_API_KEY", "mem-key")

	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.MemoryEnabled())
}
