// Package config loads service configuration from a YAML file with
// environment variable overrides and sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL             string `yaml:"url"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`
	Game struct {
		StartingBalance float64 `yaml:"starting_balance"`
		SaveDebounceMS  int     `yaml:"save_debounce_ms"`
		CatalogFile     string  `yaml:"catalog_file"`
	} `yaml:"game"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads config from a YAML file (missing file is fine), then applies
// environment variable overrides, then defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CATALOG_FILE"); v != "" {
		cfg.Game.CatalogFile = v
	}
	if v := os.Getenv("SAVE_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Game.SaveDebounceMS = ms
		}
	}
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		if bal, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Game.StartingBalance = bal
		}
	}

	// Defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Redis.CacheTTLSeconds == 0 {
		cfg.Redis.CacheTTLSeconds = 30
	}
	if cfg.Game.SaveDebounceMS == 0 {
		cfg.Game.SaveDebounceMS = 1000
	}
	if cfg.Game.StartingBalance == 0 {
		cfg.Game.StartingBalance = 100000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Game.StartingBalance <= 0 {
		return fmt.Errorf("game.starting_balance must be positive")
	}
	if c.Game.SaveDebounceMS < 0 {
		return fmt.Errorf("game.save_debounce_ms must not be negative")
	}
	return nil
}
