// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	BaseURL  string
	DBPath   string
	LogLevel string

	// Backup settings. Backups are disabled unless BackupBucket is set.
	BackupBucket     string
	BackupPrefix     string
	BackupInterval   time.Duration
	BackupKey        string
	S3Region         string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	S3ForcePathStyle bool
}

// Load reads configuration from the environment, consulting a .env file if
// one exists. Missing optional values fall back to defaults.
func Load() (*Config, error) {
	// Ignore a missing .env; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("SUBLEDGER_PORT", "8080"),
		BaseURL:  getEnv("SUBLEDGER_BASE_URL", "http://localhost:8080"),
		DBPath:   getEnv("SUBLEDGER_DB_PATH", "subledger.db"),
		LogLevel: getEnv("SUBLEDGER_LOG_LEVEL", "info"),

		BackupBucket: os.Getenv("SUBLEDGER_BACKUP_BUCKET"),
		BackupPrefix: getEnv("SUBLEDGER_BACKUP_PREFIX", "subledger"),
		BackupKey:    os.Getenv("SUBLEDGER_BACKUP_KEY"),
		S3Region:     getEnv("SUBLEDGER_S3_REGION", "us-east-1"),
		S3Endpoint:   os.Getenv("SUBLEDGER_S3_ENDPOINT"),
		S3AccessKey:  os.Getenv("SUBLEDGER_S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("SUBLEDGER_S3_SECRET_KEY"),
	}

	interval := getEnv("SUBLEDGER_BACKUP_INTERVAL", "24h")
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("parse SUBLEDGER_BACKUP_INTERVAL: %w", err)
	}
	cfg.BackupInterval = d

	if v := os.Getenv("SUBLEDGER_S3_FORCE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse SUBLEDGER_S3_FORCE_PATH_STYLE: %w", err)
		}
		cfg.S3ForcePathStyle = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BackupEnabled reports whether scheduled backups are configured.
func (c *Config) BackupEnabled() bool {
	return c.BackupBucket != ""
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.BackupEnabled() {
		if c.BackupKey == "" {
			return fmt.Errorf("SUBLEDGER_BACKUP_KEY is required when backups are enabled")
		}
		if c.BackupInterval < time.Minute {
			return fmt.Errorf("backup interval must be at least one minute")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
