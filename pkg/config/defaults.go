package config

import (
	"time"

	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage/sqlitestore"
)

// defaultReapInterval is how often the consolidation reaper sweeps expired
// insights when engram.yaml does not override it.
const defaultReapInterval = 5 * time.Minute

// defaultConfig returns the config applied before any engram.yaml fragment
// is merged on top, so a minimal or absent file still produces a runnable
// single-process deployment backed by an embedded sqlite file.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "sqlite",
			SQLite:  sqlitestore.Config{Path: "engram.db"},
		},
		Server: ServerConfig{
			HTTPPort: "8085",
			GinMode:  "release",
		},
		Ingest: IngestConfig{
			ReapInterval: defaultReapInterval,
		},
		Policies: map[string]*policy.Policy{},
	}
}
