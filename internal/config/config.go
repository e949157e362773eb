package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the confbak server and worker.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Worker    WorkerConfig
	Schedule  ScheduleConfig
	Connector ConnectorConfig
	Secrets   SecretsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type WorkerConfig struct {
	Concurrency       int
	StaleRunningAfter time.Duration
	SweepInterval     time.Duration
}

type ScheduleConfig struct {
	Timezone       string
	DefaultPattern string
}

type ConnectorConfig struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

type SecretsConfig struct {
	Provider string
	// StaticSecrets backs the static provider: "ref=password" pairs are read
	// from CONFBAK_STATIC_SECRETS, comma-separated. Development only.
	StaticSecrets string
}

var validSecretProviders = map[string]bool{
	"aws":    true,
	"static": true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CONFBAK_PORT", 8080),
			Env:  envString("CONFBAK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Worker: WorkerConfig{
			Concurrency:       envInt("WORKER_CONCURRENCY", 5),
			StaleRunningAfter: envDuration("WORKER_STALE_RUNNING_AFTER", 2*time.Hour),
			SweepInterval:     envDuration("WORKER_SWEEP_INTERVAL", time.Hour),
		},
		Schedule: ScheduleConfig{
			Timezone:       envString("SCHEDULE_TZ", "Europe/Kyiv"),
			DefaultPattern: envString("SCHEDULE_DEFAULT_PATTERN", "0 0 * * *"),
		},
		Connector: ConnectorConfig{
			ConnectTimeout: envDuration("CONNECTOR_CONNECT_TIMEOUT", 10*time.Second),
			CommandTimeout: envDuration("CONNECTOR_COMMAND_TIMEOUT", 60*time.Second),
		},
		Secrets: SecretsConfig{
			Provider:      envString("SECRETS_PROVIDER", "aws"),
			StaticSecrets: os.Getenv("CONFBAK_STATIC_SECRETS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency)
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("SCHEDULE_TZ is not a valid timezone: %q", c.Schedule.Timezone)
	}

	if !validSecretProviders[c.Secrets.Provider] {
		return fmt.Errorf("SECRETS_PROVIDER must be one of aws, static; got %q", c.Secrets.Provider)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
