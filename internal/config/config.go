// Package config holds server configuration with the hierarchy
// defaults < YAML < ENV.
package config

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "merlin.yaml"

// Config is the full server configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Paths    PathsConfig    `yaml:"paths"`
	Cache    CacheConfig    `yaml:"cache"`
	Protocol ProtocolConfig `yaml:"protocol"`
}

// LogConfig controls structured and protocol logging.
type LogConfig struct {
	// File receives a duplex copy of the wire protocol. Empty disables
	// protocol logging. The MERLIN_LOG environment variable overrides it.
	File string `yaml:"file"`
	// Verbosity for structured logs: "error", "notice", "info", "debug".
	Level string `yaml:"level"`
}

// PathsConfig seeds the session's module search paths before any
// project descriptor is loaded.
type PathsConfig struct {
	Build  []string `yaml:"build"`
	Source []string `yaml:"source"`
}

// CacheConfig sizes the module signature cache.
type CacheConfig struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// ProtocolConfig bounds the line transport.
type ProtocolConfig struct {
	// MaxLineBytes caps a single request line. 0 means the bufio
	// default.
	MaxLineBytes int `yaml:"max_line_bytes"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level: "notice",
		},
		Cache: CacheConfig{
			MaxSizeMB: 16,
		},
		Protocol: ProtocolConfig{
			MaxLineBytes: 8 << 20,
		},
	}
}

// CacheMaxCost converts the configured cache size to bytes.
func (c *Config) CacheMaxCost() int64 {
	return c.Cache.MaxSizeMB << 20
}
