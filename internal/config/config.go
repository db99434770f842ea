package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// S3 configuration
	Bucket string `mapstructure:"s3-bucket"`

	// Source region. Empty defers to the ambient AWS configuration.
	Region string `mapstructure:"region"`

	// Image name derivation
	Prefix string `mapstructure:"prefix"`
	RunID  string `mapstructure:"run-id"`

	// Pipeline behavior
	CopyToRegions bool `mapstructure:"copy-to-regions"`
	Public        bool `mapstructure:"public"`
	Debug         bool `mapstructure:"debug"`

	// Local bookkeeping paths
	DBPath    string `mapstructure:"db-path"`
	FSMDBPath string `mapstructure:"fsm-db-path"`

	// Replication fan-out bound and per-state retry budget
	MaxConcurrentCopies int `mapstructure:"max-concurrent-copies"`
	MaxRetries          int `mapstructure:"max-retries"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	viper.SetDefault("s3-bucket", "")
	viper.SetDefault("region", "")
	viper.SetDefault("prefix", "")
	viper.SetDefault("run-id", "")
	viper.SetDefault("copy-to-regions", false)
	viper.SetDefault("public", false)
	viper.SetDefault("debug", false)
	viper.SetDefault("db-path", ".artifacts/amiup.db")
	viper.SetDefault("fsm-db-path", ".artifacts/fsm.db")
	viper.SetDefault("max-concurrent-copies", 32)
	viper.SetDefault("max-retries", 1)

	// Environment variables (AMIUP_S3_BUCKET, etc.)
	viper.SetEnvPrefix("AMIUP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.amiup")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3-bucket cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.MaxConcurrentCopies <= 0 {
		return fmt.Errorf("max-concurrent-copies must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max-retries must be at least 1")
	}
	return nil
}
