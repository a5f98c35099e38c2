package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/engramhq/engram/pkg/policy"
)

// yamlFragment mirrors Config's shape for unmarshaling a user-supplied
// engram.yaml on top of defaultConfig(), the same two-pass
// defaults-then-merge sequence the teacher's loader.go uses for tarsy.yaml.
type yamlFragment = Config

// Initialize loads .env, then engram.yaml (or the path named by
// ENGRAM_CONFIG), merges it over the built-in defaults, and validates the
// result. This is the sole entry point cmd/engramd calls before it can
// construct a Composer.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Info("no .env file loaded", "path", envPath, "reason", err)
	}

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized", "backend", cfg.Storage.Backend, "policies", len(cfg.Policies))
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	path := os.Getenv("ENGRAM_CONFIG")
	if path == "" {
		path = filepath.Join(configDir, "engram.yaml")
	}

	cfg := defaultConfig()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("no engram.yaml found, running on defaults", "path", path)
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var fragment yamlFragment
	if err := yaml.Unmarshal(data, &fragment); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergo.Merge(cfg, &fragment, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, err)
	}
	cfg.configPath = path

	// Each named policy fragment is partial by design (callers only name the
	// options they want to change); fill every unset field from policy.Default()
	// rather than validating a mostly-zero-valued Policy.
	for id, p := range cfg.Policies {
		resolved := policy.Default()
		resolved.ID = id
		if err := mergo.Merge(resolved, p, mergo.WithOverride); err != nil {
			return nil, NewLoadError(path, err)
		}
		cfg.Policies[id] = resolved
	}
	return cfg, nil
}
