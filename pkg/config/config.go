package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/mirror-engine/pkg/apperrors"
)

// Config holds all configuration for mirror-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Source is the authoritative database being mirrored from.
	Source DatabaseConfig `yaml:"source" env-prefix:"SOURCE_DB_"`

	// Target is the replica database receiving the mirror.
	Target DatabaseConfig `yaml:"target" env-prefix:"TARGET_DB_"`

	// TableName is the single table mirrored per run.
	TableName string `yaml:"table_name" env:"TABLE_NAME"`

	// BatchSize bounds multi-row inserts and update batches during apply.
	BatchSize int `yaml:"batch_size" env:"BATCH_SIZE" env-default:"500"`

	// ConnectTimeout applies per connection attempt; ConnectRetries bounds attempts.
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT" env-default:"10s"`
	ConnectRetries int           `yaml:"connect_retries" env:"CONNECT_RETRIES" env-default:"3"`
}

// DatabaseConfig holds connection parameters for one side of the mirror.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT" env-default:"3306"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"-" env:"PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"NAME"`
}

// Load reads configuration from config.yaml (if present) with environment
// variable overrides, then validates it. Validation happens exactly once,
// before any connection attempt.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every required parameter is present. The target
// password is allowed to be empty, but TARGET_DB_PASSWORD must still be set
// explicitly so an operator cannot forget it by accident.
func (c *Config) Validate() error {
	var missing []string

	if c.Source.Host == "" {
		missing = append(missing, "SOURCE_DB_HOST")
	}
	if c.Source.User == "" {
		missing = append(missing, "SOURCE_DB_USER")
	}
	if c.Source.Password == "" {
		missing = append(missing, "SOURCE_DB_PASSWORD")
	}
	if c.Source.Database == "" {
		missing = append(missing, "SOURCE_DB_NAME")
	}
	if c.Target.Host == "" {
		missing = append(missing, "TARGET_DB_HOST")
	}
	if c.Target.User == "" {
		missing = append(missing, "TARGET_DB_USER")
	}
	if c.Target.Database == "" {
		missing = append(missing, "TARGET_DB_NAME")
	}
	if _, ok := os.LookupEnv("TARGET_DB_PASSWORD"); !ok {
		missing = append(missing, "TARGET_DB_PASSWORD")
	}
	if c.TableName == "" {
		missing = append(missing, "TABLE_NAME")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.ConnectRetries < 0 {
		return fmt.Errorf("connect_retries must not be negative, got %d", c.ConnectRetries)
	}

	return nil
}
