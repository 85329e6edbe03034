package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg. Only non-empty env
// values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Log.File, "MERLIN_LOG")
	setString(&cfg.Log.Level, "MERLIN_LOG_LEVEL")
	setInt64(&cfg.Cache.MaxSizeMB, "MERLIN_CACHE_MB")
	setInt(&cfg.Protocol.MaxLineBytes, "MERLIN_MAX_LINE_BYTES")
}

func validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "error", "warning", "notice", "info", "debug":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	if cfg.Cache.MaxSizeMB <= 0 {
		return fmt.Errorf("cache.max_size_mb must be positive, got %d", cfg.Cache.MaxSizeMB)
	}
	if cfg.Protocol.MaxLineBytes < 0 {
		return fmt.Errorf("protocol.max_line_bytes must not be negative, got %d", cfg.Protocol.MaxLineBytes)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
