package config

import (
	"fmt"

	"github.com/engramhq/engram/pkg/policy"
)

// validate rejects a Config that would fail at the first storage call or
// composer build rather than at startup.
func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "sqlite":
		if err := cfg.Storage.SQLite.Validate(); err != nil {
			return NewValidationError("storage.sqlite", "path", err)
		}
	case "postgres":
		if err := cfg.Storage.Postgres.Validate(); err != nil {
			return NewValidationError("storage.postgres", "", err)
		}
	default:
		return NewValidationError("storage.backend", "backend",
			fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage.Backend))
	}

	if cfg.Server.HTTPPort == "" {
		return NewValidationError("server", "http_port", ErrMissingRequiredField)
	}

	for id, p := range cfg.Policies {
		if err := policy.Validate(p); err != nil {
			return NewValidationError("policies", id, err)
		}
	}

	if cfg.Ingest.ReapInterval <= 0 {
		return NewValidationError("ingest", "reap_interval", fmt.Errorf("must be greater than zero"))
	}

	return nil
}
