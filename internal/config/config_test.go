package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp switches into an empty temp dir with an empty HOME so no
// geoattr.yaml or .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	t.Setenv("HOME", t.TempDir())
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Paths.ConfigDir)
	assert.Equal(t, DefaultConfigFileName, cfg.Paths.ConfigFile)
	assert.Equal(t, "3006", cfg.Dataset.CRS)
	assert.Equal(t, 10000, cfg.Dataset.MemoSize)
	assert.Equal(t, 100000, cfg.Cache.MemorySize)
	assert.Equal(t, time.Duration(0), cfg.Cache.MemoryTTL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "127.0.0.1:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 60, cfg.Refresh.TimeoutSecs)
	assert.InDelta(t, 5.0, cfg.Refresh.RatePerSec, 0.001)
	assert.Equal(t, 3, cfg.Refresh.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
paths:
  config_dir: /data/nodc/sharkweb_shapefiles
dataset:
  crs: "EPSG:3006"
  encoding: windows-1252
cache:
  memory_size: 50
  memory_ttl: 10m
store:
  driver: redis
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geoattr.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/nodc/sharkweb_shapefiles", cfg.Paths.ConfigDir)
	assert.Equal(t, "EPSG:3006", cfg.Dataset.CRS)
	assert.Equal(t, "windows-1252", cfg.Dataset.Encoding)
	assert.Equal(t, 50, cfg.Cache.MemorySize)
	assert.Equal(t, 10*time.Minute, cfg.Cache.MemoryTTL)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geoattr.yaml"), []byte(yaml), 0o644))

	t.Setenv("GEOATTR_STORE_DRIVER", "sqlite")
	t.Setenv("GEOATTR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEOATTR_SERVER_PORT=9191\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("GEOATTR_SERVER_PORT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geoattr.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
}

func TestInitLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geoattr.log")
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json", File: path}))

	zap.L().Info("file sink check")
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
