package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type DatabaseConfig struct {
	// Driver is "postgres" or "mysql"; detected from URL when empty.
	Driver string `yaml:"driver,omitempty"`
	URL    string `yaml:"url"`
}

type JobConfig struct {
	FullChunkSize     int `yaml:"full_chunk_size,omitempty"`
	DirectChunkSize   int `yaml:"direct_chunk_size,omitempty"`
	MaxStatementBytes int `yaml:"max_statement_bytes,omitempty"`
}

type RedisConfig struct {
	Address       string `yaml:"address"`
	Password      string `yaml:"password,omitempty"`
	DB            int    `yaml:"db,omitempty"`
	StopKeyPrefix string `yaml:"stop_key_prefix,omitempty"`
	LockTTL       string `yaml:"lock_ttl,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type ProjectConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Job      JobConfig      `yaml:"job"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Timeout  string         `yaml:"timeout,omitempty"`
}

const ConfigFileName = "dynis.yaml"

// Environment variables overriding the file.
const (
	EnvDatabaseURL    = "DYNIS_DATABASE_URL"
	EnvDatabaseURLAlt = "DATABASE_URL"
	EnvDatabaseDriver = "DYNIS_DATABASE_DRIVER"
	EnvRedisAddress   = "DYNIS_REDIS_ADDRESS"
	EnvRedisPassword  = "DYNIS_REDIS_PASSWORD"
	EnvLogLevel       = "DYNIS_LOG_LEVEL"
	EnvLogFormat      = "DYNIS_LOG_FORMAT"
)

// Load reads ConfigFileName from a directory, or the file itself when path
// names a YAML file.
func Load(path string) (*ProjectConfig, error) {
	configPath := path
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
		configPath = filepath.Join(path, ConfigFileName)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return &cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; existing variables are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv
// outside tests.
func (c *ProjectConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabaseURL); v != "" {
		c.Database.URL = v
	} else if v := getenv(EnvDatabaseURLAlt); v != "" && c.Database.URL == "" {
		c.Database.URL = v
	}
	if v := getenv(EnvDatabaseDriver); v != "" {
		c.Database.Driver = v
	}
	if v := getenv(EnvRedisAddress); v != "" {
		c.Redis.Address = v
	}
	if v := getenv(EnvRedisPassword); v != "" {
		c.Redis.Password = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
}

// LockTTL parses redis.lock_ttl; empty means dynis.DefaultLockTTL.
func (c *ProjectConfig) LockTTL() (time.Duration, error) {
	if c.Redis.LockTTL == "" {
		return dynis.DefaultLockTTL, nil
	}
	d, err := time.ParseDuration(c.Redis.LockTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid redis.lock_ttl %q: %w", c.Redis.LockTTL, dynis.ErrInvalidConfig)
	}
	return d, nil
}

// TimeoutDuration parses timeout; zero means no timeout.
func (c *ProjectConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, dynis.ErrInvalidConfig)
	}
	return d, nil
}

// RunConfig returns the chunk sizing of a run. Ids and mode are set by
// the caller.
func (c *ProjectConfig) RunConfig() dynis.RunConfig {
	return dynis.RunConfig{
		FullChunkSize:     c.Job.FullChunkSize,
		DirectChunkSize:   c.Job.DirectChunkSize,
		MaxStatementBytes: c.Job.MaxStatementBytes,
	}
}

// Validate checks what the commands need before connecting.
func (c *ProjectConfig) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, fmt.Errorf("database url is required (set database.url or %s): %w", EnvDatabaseURL, dynis.ErrInvalidConfig))
	}
	if _, err := c.LockTTL(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if err := c.RunConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
