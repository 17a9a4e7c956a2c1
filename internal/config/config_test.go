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

func chtmp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtmp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "paramd.db", cfg.Store.Path)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3, cfg.Hierarchy.Lookup.MaxAttempts)
	assert.Equal(t, 100, cfg.Hierarchy.Lookup.InitialBackoffMs)
	assert.Equal(t, 5, cfg.Hierarchy.Lookup.FailureThreshold)
	assert.InDelta(t, 3.0, cfg.Notion.RateLimit, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	chtmp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/paramd
log:
  level: debug
  format: console
server:
  port: 9090
hierarchy:
  entity_file: entities.yaml
  lookup:
    max_attempts: 5
templates:
  dir: ./templates
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/paramd", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "entities.yaml", cfg.Hierarchy.EntityFile)
	assert.Equal(t, 5, cfg.Hierarchy.Lookup.MaxAttempts)
	assert.Equal(t, "./templates", cfg.Templates.Dir)
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.Hierarchy.Lookup.InitialBackoffMs)
}

func TestLoadExplicitPath(t *testing.T) {
	chtmp(t)

	path := filepath.Join(t.TempDir(), "paramd.yaml")
	yaml := `
server:
  port: 7070
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtmp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	t.Setenv("PARAMD_STORE_DRIVER", "postgres")
	t.Setenv("PARAMD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtmp(t)

	t.Setenv("PARAMD_SERVER_PORT", "3000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLookupConfigConversion(t *testing.T) {
	lookup := LookupConfig{
		MaxAttempts:      4,
		InitialBackoffMs: 50,
		MaxBackoffMs:     500,
		FailureThreshold: 7,
		ResetTimeoutSecs: 10,
	}

	retry := lookup.Retry()
	assert.Equal(t, 4, retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, retry.InitialBackoff)
	assert.Equal(t, 500*time.Millisecond, retry.MaxBackoff)

	breaker := lookup.Breaker()
	assert.Equal(t, 7, breaker.FailureThreshold)
	assert.Equal(t, 10*time.Second, breaker.ResetTimeout)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "paramd.db"
	cfg.Server.Port = 8080
	cfg.Hierarchy.Lookup.MaxAttempts = 3
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_LookupBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Hierarchy.Lookup.MaxAttempts = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts must be between 1 and 10")

	cfg.Hierarchy.Lookup.MaxAttempts = 11
	err = cfg.Validate("serve")
	assert.Error(t, err)

	cfg.Hierarchy.Lookup.MaxAttempts = 10
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateDriverRequirements(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/paramd"
	assert.NoError(t, cfg.Validate("migrate"))
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")

	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = ""
	err = cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestValidateSync_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("sync")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
	assert.Contains(t, err.Error(), "notion.template_db is required")

	cfg.Notion.Token = "ntn_token"
	cfg.Notion.TemplateDB = "tpl-db-id"
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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
