// Package config loads the engine-facing networking configuration the
// CLI reads from an optional JSON file, with flags overriding file
// values.
package config

import (
	"encoding/json"
	"os"

	"github.com/dlqueue/dlq/internal/errs"
)

// Config is the subset of the application config the engine itself
// consumes; the remaining host-owned fields (theme, window geometry,
// download path, history) live outside this module.
type Config struct {
	MaxConcurrent      int    `json:"max_concurrent"`
	MaxConcurrentTasks int    `json:"max_concurrent_tasks"`
	ChunkSize          uint64 `json:"chunk_size"`
	TimeoutSeconds     int    `json:"timeout"`
	UserAgent          string `json:"user_agent"`
}

// Default returns the built-in configuration used when no file is
// supplied and no flags override it.
func Default() Config {
	return Config{
		MaxConcurrent:      4,
		MaxConcurrentTasks: 1,
		ChunkSize:          10 << 20,
		TimeoutSeconds:     30,
		UserAgent:          "dlq/1.0",
	}
}

// Load reads a JSON config file at path, falling back silently to
// Default when path is empty. It validates the loaded values before
// returning.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errs.Wrap(errs.Config, "reading config file", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errs.Wrap(errs.Config, "parsing config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a config with a non-positive value in any of the
// fields the original host application requires to be greater than
// zero.
func (c Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return errs.New(errs.Config, "max_concurrent must be greater than zero")
	}
	if c.MaxConcurrentTasks <= 0 {
		return errs.New(errs.Config, "max_concurrent_tasks must be greater than zero")
	}
	if c.ChunkSize == 0 {
		return errs.New(errs.Config, "chunk_size must be greater than zero")
	}
	if c.TimeoutSeconds <= 0 {
		return errs.New(errs.Config, "timeout must be greater than zero")
	}
	return nil
}
