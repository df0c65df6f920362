// Package config loads and validates hivelog configuration.
//
// Sources, lowest precedence first: Default(), a YAML file, then the
// HIVELOG_PATH environment variable. CLI flags are applied by the caller.
// The merged result is validated against an embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hivelog/internal/lock"
	"github.com/roach88/hivelog/internal/store"
)

// EnvPath overrides Config.Path when set.
const EnvPath = "HIVELOG_PATH"

// Config holds every tunable of the event log and orchestrator.
type Config struct {
	// Path is the active JSONL log file.
	Path string `json:"path" yaml:"path"`

	// RotationSizeMB rotates the active file at this size. 0 disables size rotation.
	RotationSizeMB int `json:"rotation_size_mb" yaml:"rotation_size_mb"`

	// RotateDaily rotates on UTC date change.
	RotateDaily bool `json:"rotate_daily" yaml:"rotate_daily"`

	// CheckpointTimeoutMs is how long a checkpoint stays open before it
	// counts as expired.
	CheckpointTimeoutMs int64 `json:"checkpoint_timeout_ms" yaml:"checkpoint_timeout_ms"`

	LockRetries      int `json:"lock_retries" yaml:"lock_retries"`
	LockBackoffMs    int `json:"lock_backoff_ms" yaml:"lock_backoff_ms"`
	LockMaxBackoffMs int `json:"lock_max_backoff_ms" yaml:"lock_max_backoff_ms"`

	// CacheEntries bounds the in-memory event cache.
	CacheEntries int `json:"cache_entries" yaml:"cache_entries"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Path:                ".hivelog/events.jsonl",
		RotationSizeMB:      10,
		RotateDaily:         true,
		CheckpointTimeoutMs: 5 * 60 * 1000,
		LockRetries:         20,
		LockBackoffMs:       10,
		LockMaxBackoffMs:    500,
		CacheEntries:        store.DefaultCacheEntries,
	}
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML decodes data into cfg, rejecting unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if p := os.Getenv(EnvPath); p != "" {
		c.Path = p
	}
}

// CheckpointTimeout returns the timeout as a duration.
func (c Config) CheckpointTimeout() time.Duration {
	return time.Duration(c.CheckpointTimeoutMs) * time.Millisecond
}

// StoreOptions maps the configuration onto FileStore options.
func (c Config) StoreOptions() store.Options {
	size := int64(c.RotationSizeMB) * 1024 * 1024
	if c.RotationSizeMB == 0 {
		size = -1
	}
	return store.Options{
		Path:         c.Path,
		RotationSize: size,
		RotateDaily:  c.RotateDaily,
		CacheEntries: c.CacheEntries,
		Lock: lock.Options{
			MaxTries:     uint(c.LockRetries),
			InitialDelay: time.Duration(c.LockBackoffMs) * time.Millisecond,
			MaxDelay:     time.Duration(c.LockMaxBackoffMs) * time.Millisecond,
		},
	}
}
