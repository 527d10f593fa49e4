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

	assert.Equal(t, "https://petition.parliament.uk", cfg.API.BaseURL)
	assert.Equal(t, "all", cfg.API.State)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout())
	assert.Equal(t, 1, cfg.API.MaxRetries)
	assert.Equal(t, 0, cfg.API.MaxPages)
	assert.InDelta(t, 5.0, cfg.API.RatePerSec, 0.001)
	assert.Equal(t, "Unassigned", cfg.Petitions.UnassignedDepartment)
	assert.Equal(t, time.Hour, cfg.Refresh.TTL())
	assert.Equal(t, 50, cfg.Table.PageSize)
	assert.Equal(t, 10, cfg.Table.TopN)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
api:
  max_pages: 5
  timeout_secs: 10
petitions:
  unassigned_department: None
refresh:
  ttl_minutes: 15
store:
  driver: postgres
  database_url: postgres://localhost/petitions
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins: ["https://example.org"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.API.MaxPages)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout())
	assert.Equal(t, "None", cfg.Petitions.UnassignedDepartment)
	assert.Equal(t, 15*time.Minute, cfg.Refresh.TTL())
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://example.org"}, cfg.Server.CORSOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Table.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PETITIONS_STORE_DRIVER", "sqlite")
	t.Setenv("PETITIONS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PETITIONS_SERVER_PORT", "3000")
	t.Setenv("PETITIONS_REFRESH_TTL_MINUTES", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.TTL())
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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

func validDefaults() *Config {
	return &Config{
		API:     APIConfig{BaseURL: "https://petition.parliament.uk", TimeoutSecs: 30, MaxRetries: 1, RatePerSec: 5},
		Refresh: RefreshConfig{TTLMinutes: 60},
		Table:   TableConfig{PageSize: 50, TopN: 10},
		Store:   StoreConfig{Driver: "sqlite"},
		Server:  ServerConfig{Port: 8080},
	}
}

func TestValidate_Fetch(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("fetch"))
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/petitions"
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate("serve"), "store.driver")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.API.TimeoutSecs = 0
	cfg.API.MaxRetries = 0
	cfg.Table.PageSize = 0

	err := cfg.Validate("fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.timeout_secs must be > 0")
	assert.Contains(t, err.Error(), "api.max_retries must be >= 1")
	assert.Contains(t, err.Error(), "table.page_size must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
