package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "daemon"
	cfg.Server.Port = 70000
	cfg.Redis.Addr = ""
	cfg.Postgres.PoolMinConns = 50

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "server: port")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "pool_min_conns")
}

func TestValidate_BucketRequiresEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Bucket = "arena-archives"
	cfg.S3.Endpoint = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: endpoint")
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "serve"
log_level = "debug"

[postgres]
host = "db.internal"
database = "arena"

[server]
port = 9090
rate_limit_window = "30s"

[reset]
enabled = false
check_interval = "5m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RateLimitWindow.Duration)
	assert.False(t, cfg.Reset.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Reset.CheckInterval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "serve"`), 0o644))

	t.Setenv("ARENAD_MODE", "cron")
	t.Setenv("ARENAD_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("ARENAD_SERVER_RATE_LIMIT", "120")
	t.Setenv("ARENAD_RESET_CHECK_INTERVAL", "90s")
	t.Setenv("ARENAD_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cron", cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.Equal(t, 90*time.Second, cfg.Reset.CheckInterval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
