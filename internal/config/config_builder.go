package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

// ErrInvalidConfig wraps all validation failures so callers can detect
// configuration problems with errors.Is.
var ErrInvalidConfig = errors.New("invalid sync engine config")

// Load builds the engine configuration: env variables merged over built-in
// defaults, then validated.
func Load() (*Config, error) {
	envCfg := &Config{}
	if err := env.Parse(envCfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	return build(envCfg)
}

// build merges cfg over defaults and validates the result. Split from Load
// so tests can inject values without touching the process environment.
func build(cfg *Config) (*Config, error) {
	merged := defaults()
	if err := mergo.Merge(merged, cfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}

	if err := merged.validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// validate checks the merged configuration invariants.
func (cfg *Config) validate() error {
	if cfg.Server.Host == "" {
		return fmt.Errorf("%w: server host must not be empty", ErrInvalidConfig)
	}
	if cfg.Server.ConnectTimeout <= 0 || cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("%w: server timeouts must be positive", ErrInvalidConfig)
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("%w: storage DSN must not be empty", ErrInvalidConfig)
	}
	if cfg.Engine.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if cfg.Engine.AutoSyncDebounce <= 0 {
		return fmt.Errorf("%w: autosync debounce must be positive", ErrInvalidConfig)
	}
	if cfg.Conflicts.ContentThreshold <= 0 || cfg.Conflicts.ItemThreshold <= 0 {
		return fmt.Errorf("%w: conflict thresholds must be positive", ErrInvalidConfig)
	}
	return nil
}
