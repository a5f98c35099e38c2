// Package pgstore is the PostgreSQL-backed storage.Backend implementation,
// for deployments that already run Postgres for the host application and
// want Engram's memory tables alongside it.
package pgstore

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the Postgres connection and pool settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfigFromEnv loads Config from ENGRAM_PG_* environment variables,
// with production-ready defaults, the way pkg/database.LoadConfigFromEnv
// loads the teacher's DB_* variables.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("ENGRAM_PG_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ENGRAM_PG_PORT: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("ENGRAM_PG_MAX_OPEN_CONNS", "25"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("ENGRAM_PG_MAX_IDLE_CONNS", "10"))

	maxLifetime, err := time.ParseDuration(getEnvOrDefault("ENGRAM_PG_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ENGRAM_PG_CONN_MAX_LIFETIME: %w", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("ENGRAM_PG_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ENGRAM_PG_CONN_MAX_IDLE_TIME: %w", err)
	}

	cfg := Config{
		Host:            getEnvOrDefault("ENGRAM_PG_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("ENGRAM_PG_USER", "engram"),
		Password:        os.Getenv("ENGRAM_PG_PASSWORD"),
		Database:        getEnvOrDefault("ENGRAM_PG_DATABASE", "engram"),
		SSLMode:         getEnvOrDefault("ENGRAM_PG_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a Config that would make a bad connection pool.
func (c Config) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("ENGRAM_PG_MAX_IDLE_CONNS (%d) cannot exceed ENGRAM_PG_MAX_OPEN_CONNS (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("ENGRAM_PG_MAX_OPEN_CONNS must be at least 1")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("ENGRAM_PG_MAX_IDLE_CONNS cannot be negative")
	}
	return nil
}

// DSN builds a libpq-style connection string for the pgx stdlib driver.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
