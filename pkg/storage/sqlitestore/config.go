// Package sqlitestore is the embedded storage.Backend implementation, the
// default for single-process deployments that want Engram to need no
// external database at all.
package sqlitestore

import (
	"fmt"
	"os"
)

// Config holds the embedded database's file path.
type Config struct {
	// Path is the sqlite file path, or ":memory:" for an ephemeral store
	// used by tests and short-lived processes.
	Path string
}

// LoadConfigFromEnv loads Config from ENGRAM_SQLITE_PATH, defaulting to a
// local file under the process's working directory.
func LoadConfigFromEnv() (Config, error) {
	path := os.Getenv("ENGRAM_SQLITE_PATH")
	if path == "" {
		path = "engram.db"
	}
	cfg := Config{Path: path}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects an empty path.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("sqlite path must not be empty")
	}
	return nil
}

// DSN builds the modernc.org/sqlite connection string. For a file path it
// enables WAL mode, foreign key enforcement and a 5s busy timeout on every
// new connection; the shared in-memory store enables foreign keys only.
func (c Config) DSN() string {
	if c.Path == ":memory:" {
		return "file::memory:?cache=shared&_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", c.Path)
}
