package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete tool configuration (v2 schema)
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Extract   ExtractConfig   `json:"extract" mapstructure:"extract"`
	Determine DetermineConfig `json:"determine" mapstructure:"determine"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ExtractConfig configures the external graph-extraction command invoked
// when no diff snapshot file is supplied.
type ExtractConfig struct {
	// Command is the argv of the extraction tool; universe patterns are
	// appended to it. Its stdout must be a snapshot record stream.
	Command   []string `json:"command" mapstructure:"command"`
	TimeoutMs int      `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// DetermineConfig contains defaults for the determine command
type DetermineConfig struct {
	// Depth bounds the propagation levels included in output; -1 means no limit
	Depth int `json:"depth" mapstructure:"depth"`
	// Format is the default output format: text, json or json-lines
	Format string `json:"format" mapstructure:"format"`
	// Workers bounds parallelism of index building and frontier expansion;
	// 0 means GOMAXPROCS
	Workers int `json:"workers" mapstructure:"workers"`
}

// CacheConfig configures the optional extraction cache
type CacheConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Path       string `json:"path" mapstructure:"path"`
	MaxAgeDays int    `json:"maxAgeDays" mapstructure:"maxAgeDays"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  2,
		RepoRoot: ".",
		Extract: ExtractConfig{
			Command:   []string{"buck2", "targets", "--streaming", "--json"},
			TimeoutMs: 600000,
		},
		Determine: DetermineConfig{
			Depth:   -1,
			Format:  "text",
			Workers: 0,
		},
		Cache: CacheConfig{
			Enabled:    false,
			Path:       ".affected/cache.db",
			MaxAgeDays: 14,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .affected/config.json
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("version", 2)
	v.SetDefault("repoRoot", ".")

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".affected"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Unmarshal into config struct, keeping defaults for absent sections
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .affected/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".affected")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 2 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	switch c.Determine.Format {
	case "", "text", "json", "json-lines":
	default:
		return &ConfigError{Field: "determine.format", Message: "must be text, json or json-lines"}
	}
	if len(c.Extract.Command) == 0 {
		return &ConfigError{Field: "extract.command", Message: "must not be empty"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
