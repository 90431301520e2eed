// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvBackendURL overrides backend.url when set.
const EnvBackendURL = "ITINERA_BACKEND_URL"

// EnvLogLevel overrides logging.level when set.
const EnvLogLevel = "ITINERA_LOG_LEVEL"

var (
	// Global is the singleton configuration instance.
	Global Config
	once   sync.Once

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load ensures the config is loaded into the Global variable.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

func loadInternal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not find the user's home directory: %w", err)
	}
	configPath := filepath.Join(home, ".itinera", "itinera.yaml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		return err
	}
	Global = *cfg
	return nil
}

// LoadFrom reads, overrides, and validates a config file at an explicit
// path, creating it with defaults if missing. Load uses it with the
// standard location; tests use it with temp dirs.
func LoadFrom(path string) (*Config, error) {
	// A .env next to the invocation is honored before env overrides are
	// read. Missing files are fine.
	_ = godotenv.Load()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv(EnvBackendURL); url != "" {
		cfg.Backend.URL = url
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
}

// applyDefaults fills zero-valued timeouts so hand-edited configs that
// drop a key keep working.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Backend.RequestTimeoutSeconds == 0 {
		cfg.Backend.RequestTimeoutSeconds = def.Backend.RequestTimeoutSeconds
	}
	if cfg.Backend.ConnectTimeoutSeconds == 0 {
		cfg.Backend.ConnectTimeoutSeconds = def.Backend.ConnectTimeoutSeconds
	}
	if cfg.Display.WordWrap == 0 {
		cfg.Display.WordWrap = def.Display.WordWrap
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
