// Package config loads the optional goflash configuration file, which
// supplies defaults for flags the user would otherwise repeat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the JSON configuration file contents.
type Config struct {
	// Programmer is the driver to initialize, e.g. "loongson3_spi".
	Programmer string `json:"programmer"`

	// Params is the programmer parameter string, e.g. "cpu=3a4000".
	Params string `json:"params"`

	// Verbosity adjusts diagnostic output; see msg.SetVerbosity.
	Verbosity int `json:"verbosity"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a JSON configuration and applies defaults.
func LoadBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in missing configuration values.
func applyDefaults(cfg *Config) {
	if cfg.Programmer == "" {
		cfg.Programmer = "loongson3_spi"
	}
}
