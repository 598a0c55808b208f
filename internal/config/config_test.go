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

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "place-import.db", cfg.Store.Path)
	assert.Equal(t, int32(4), cfg.Catalog.MaxConns)
	assert.Equal(t, "https://places.googleapis.com/v1", cfg.Google.BaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, time.Second, cfg.Gate.MinInterval)
	assert.Equal(t, 3, cfg.Gate.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Gate.BaseDelay)
	assert.Equal(t, 5, cfg.Resolver.MaxCandidates)
	assert.Equal(t, 5, cfg.Photos.MaxPhotos)
	assert.Equal(t, 1600, cfg.Photos.MaxWidthPx)
	assert.Equal(t, time.Second, cfg.Pipeline.DuplicateDelay)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Storage.UseSSL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
gate:
  min_interval: 250ms
  max_retries: 5
pipeline:
  duplicate_delay: 0s
  dry_run: true
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Gate.MinInterval)
	assert.Equal(t, 5, cfg.Gate.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.Pipeline.DuplicateDelay)
	assert.True(t, cfg.Pipeline.DryRun)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Resolver.MaxCandidates)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  path: file.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("PLACEIMPORT_STORE_PATH", "env.db")
	t.Setenv("PLACEIMPORT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PLACEIMPORT_SERVER_PORT", "3000")
	t.Setenv("PLACEIMPORT_GATE_MIN_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Gate.MinInterval)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

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
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Path = "test.db"
	cfg.Catalog.DatabaseURL = "postgres://localhost/catalog"
	cfg.Google.Key = "g-key"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Gate.MinInterval = time.Second
	cfg.Gate.MaxRetries = 3
	cfg.Resolver.MaxCandidates = 5
	cfg.Photos.MaxPhotos = 5
	cfg.Storage.Endpoint = "s3.example.com"
	cfg.Storage.Bucket = "photos"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModesPass(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"process", "approve", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateProcess_MissingKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.Google.Key = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateApprove_DryRunSkipsStorage(t *testing.T) {
	cfg := validDefaults()
	cfg.Storage.Endpoint = ""
	cfg.Storage.Bucket = ""

	err := cfg.Validate("approve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.endpoint is required")

	cfg.Pipeline.DryRun = true
	assert.NoError(t, cfg.Validate("approve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_NegativeGate(t *testing.T) {
	cfg := validDefaults()
	cfg.Gate.MaxRetries = -1

	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate.max_retries")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
