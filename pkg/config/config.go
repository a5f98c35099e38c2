// Package config loads engram.yaml (or ENGRAM_CONFIG's path) into a ready-to-use
// Config: the storage backend selection, HTTP server settings, the
// process-wide policy registry, and the consolidation reaper's schedule.
// Config is read-only after Initialize returns, the way the teacher's
// pkg/config.Config is read-only after its own Initialize.
package config

import (
	"time"

	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage/pgstore"
	"github.com/engramhq/engram/pkg/storage/sqlitestore"
)

// StorageConfig selects and configures the active storage.Backend.
type StorageConfig struct {
	Backend  string               `yaml:"backend"` // "sqlite" or "postgres"
	SQLite   sqlitestore.Config   `yaml:"sqlite"`
	Postgres pgstore.Config       `yaml:"postgres"`
}

// ServerConfig holds the reference HTTP API's listen settings.
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"`
	GinMode  string `yaml:"gin_mode"`
}

// IngestConfig controls the offline consolidation/reaper loop's cadence
// (pkg/ingest).
type IngestConfig struct {
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// Config is the umbrella object Initialize returns.
type Config struct {
	configPath string

	Storage  StorageConfig      `yaml:"storage"`
	Server   ServerConfig       `yaml:"server"`
	Ingest   IngestConfig       `yaml:"ingest"`
	Policies map[string]*policy.Policy `yaml:"policies"`
}

// ConfigPath returns the file path Config was loaded from.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// PolicyRegistry builds a policy.Registry from the loaded Policies map,
// always seeding the built-in default alongside any user-defined overrides.
func (c *Config) PolicyRegistry() *policy.Registry {
	extra := make([]*policy.Policy, 0, len(c.Policies))
	for id, p := range c.Policies {
		if p.ID == "" {
			p.ID = id
		}
		extra = append(extra, p)
	}
	return policy.NewRegistry(extra...)
}
