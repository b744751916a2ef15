package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/dynis/pkg/dynis"
)

func TestLoad_AllFields(t *testing.T) {
	dir := t.TempDir()
	content := `database:
  driver: mysql
  url: mysql://omeka:secret@db:3306/omeka

job:
  full_chunk_size: 50
  direct_chunk_size: 20000
  max_statement_bytes: 16777216

redis:
  address: redis:6379
  password: hunter2
  db: 2
  stop_key_prefix: "omeka:stop:"
  lock_ttl: 90s

log:
  level: debug
  format: json

timeout: 2h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "mysql://omeka:secret@db:3306/omeka", cfg.Database.URL)
	assert.Equal(t, 50, cfg.Job.FullChunkSize)
	assert.Equal(t, 20000, cfg.Job.DirectChunkSize)
	assert.Equal(t, 16777216, cfg.Job.MaxStatementBytes)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "omeka:stop:", cfg.Redis.StopKeyPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	ttl, err := cfg.LockTTL()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, ttl)

	timeout, err := cfg.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, timeout)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prod.yml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  url: postgres://localhost/omeka\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/omeka", cfg.Database.URL)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(t.TempDir())
	assert.True(t, errors.Is(err, ErrConfigNotFound), "expected ErrConfigNotFound, got: %v", err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{{invalid"), 0644))

	cfg, err := Load(dir)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(""), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ProjectConfig{}, *cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDatabaseURL:    "postgres://env/omeka",
		EnvDatabaseURLAlt: "postgres://ignored/omeka",
		EnvRedisAddress:   "localhost:6380",
		EnvLogLevel:       "warn",
	}
	cfg := ProjectConfig{Database: DatabaseConfig{URL: "postgres://file/omeka", Driver: "postgres"}}

	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "postgres://env/omeka", cfg.Database.URL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "localhost:6380", cfg.Redis.Address)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyEnv_DatabaseURLFallback(t *testing.T) {
	env := map[string]string{EnvDatabaseURLAlt: "postgres://fallback/omeka"}

	cfg := ProjectConfig{}
	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "postgres://fallback/omeka", cfg.Database.URL)

	cfg = ProjectConfig{Database: DatabaseConfig{URL: "postgres://file/omeka"}}
	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "postgres://file/omeka", cfg.Database.URL, "the file wins over DATABASE_URL")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DYNIS_TEST_DOTENV_VALUE=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("DYNIS_TEST_DOTENV_VALUE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DYNIS_TEST_DOTENV_VALUE"))
}

func TestValidate(t *testing.T) {
	cfg := ProjectConfig{
		Job:     JobConfig{FullChunkSize: -1},
		Redis:   RedisConfig{LockTTL: "soon"},
		Timeout: "-5m",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, dynis.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "database url is required")
	assert.Contains(t, err.Error(), "lock_ttl")
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "full chunk size")
}
