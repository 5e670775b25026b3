// Package config loads application configuration from an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	AdminAddr string `yaml:"admin_addr"`
	HookAddr  string `yaml:"hook_addr"`

	StoreDriver   string        `yaml:"store_driver"`
	DBPath        string        `yaml:"db_path"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`

	IngestBaseURL   string `yaml:"ingest_base_url"`
	GatewayAPIURL   string `yaml:"gateway_api_url"`
	GatewayAPIToken string `yaml:"gateway_api_token"`
	AdminToken      string `yaml:"admin_token"`
	HookToken       string `yaml:"hook_token"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisChannel  string `yaml:"redis_channel"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

// HasGatewayAPI returns true when session termination can be requested from
// the gateway. Without it, rejection relies on the hook response alone.
func (c *Config) HasGatewayAPI() bool {
	return c.GatewayAPIURL != ""
}

// HasRedis returns true when lifecycle events should be published to Redis.
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// defaults returns the configuration used when nothing is set.
func defaults() Config {
	return Config{
		AdminAddr:     "127.0.0.1:8080",
		HookAddr:      "127.0.0.1:8090",
		StoreDriver:   DriverSQLite,
		DBPath:        "ingestgate.db",
		LookupTimeout: 2 * time.Second,
		IngestBaseURL: "rtmp://localhost/live",
		RedisChannel:  "ingestgate:events",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// Load builds the configuration. Defaults are overlaid with the YAML file
// named by INGESTGATE_CONFIG, if any, and then with INGESTGATE_* environment
// variables, so the environment always wins.
func Load() (*Config, error) {
	cfg := defaults()

	if path, ok := os.LookupEnv("INGESTGATE_CONFIG"); ok && path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"INGESTGATE_ADMIN_ADDR", &cfg.AdminAddr},
		{"INGESTGATE_HOOK_ADDR", &cfg.HookAddr},
		{"INGESTGATE_STORE_DRIVER", &cfg.StoreDriver},
		{"INGESTGATE_DB_PATH", &cfg.DBPath},
		{"INGESTGATE_POSTGRES_DSN", &cfg.PostgresDSN},
		{"INGESTGATE_INGEST_BASE_URL", &cfg.IngestBaseURL},
		{"INGESTGATE_GATEWAY_API_URL", &cfg.GatewayAPIURL},
		{"INGESTGATE_GATEWAY_API_TOKEN", &cfg.GatewayAPIToken},
		{"INGESTGATE_ADMIN_TOKEN", &cfg.AdminToken},
		{"INGESTGATE_HOOK_TOKEN", &cfg.HookToken},
		{"INGESTGATE_REDIS_ADDR", &cfg.RedisAddr},
		{"INGESTGATE_REDIS_PASSWORD", &cfg.RedisPassword},
		{"INGESTGATE_REDIS_CHANNEL", &cfg.RedisChannel},
		{"INGESTGATE_LOG_LEVEL", &cfg.LogLevel},
		{"INGESTGATE_LOG_FORMAT", &cfg.LogFormat},
		{"INGESTGATE_LOG_FILE", &cfg.LogFile},
	}
	for _, s := range strs {
		if v, ok := os.LookupEnv(s.key); ok {
			*s.dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv("INGESTGATE_LOOKUP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("INGESTGATE_LOOKUP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.LookupTimeout = parsed
	}

	if v, ok := os.LookupEnv("INGESTGATE_REDIS_DB"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INGESTGATE_REDIS_DB has invalid number %q: %w", v, err)
		}
		cfg.RedisDB = parsed
	}
	return nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("db path is required for the sqlite store")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("INGESTGATE_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	if c.LookupTimeout <= 0 {
		return fmt.Errorf("lookup timeout must be positive, got %s", c.LookupTimeout)
	}
	if c.IngestBaseURL == "" {
		return errors.New("ingest base url is required")
	}
	if c.AdminAddr == c.HookAddr {
		return fmt.Errorf("admin and hook listeners share address %s", c.AdminAddr)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text", "tint":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
