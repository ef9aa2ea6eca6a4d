package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 30*time.Minute, cfg.LookaheadWindow)
	assert.Equal(t, 2*time.Hour, cfg.EscalationWindow)
	assert.Equal(t, 14, cfg.TrendWindowReadings)
	assert.Equal(t, 14*24*time.Hour, cfg.TrendWindowSpan)
	assert.InDelta(t, 2.0, cfg.TrendSpreadMultiple, 1e-9)
	assert.Equal(t, "memory", cfg.ResolvedStoreDriver())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DOSE_LOOKAHEAD", "45m")
	t.Setenv("TICK_INTERVAL", "5s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("TREND_SPREAD_MULTIPLE", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.LookaheadWindow)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.Equal(t, "redis", cfg.ResolvedStoreDriver())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.InDelta(t, 2.5, cfg.TrendSpreadMultiple, 1e-9)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adherence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("DOSE_ESCALATION_WINDOW: 90m\nEXPLAINER_PROVIDER: template\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.EscalationWindow)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ENV", "production")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
}

// chdir stands in for testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
