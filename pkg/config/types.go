// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the Itinera client configuration.
//
// Configuration lives at ~/.itinera/itinera.yaml and is created with
// defaults on first run. A .env file in the working directory is loaded
// first (the backend's own tooling uses dotenv, so deployments tend to
// keep both side by side), and a small set of ITINERA_* environment
// variables override the file.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Backend BackendConfig `yaml:"backend" validate:"required"`
	Logging LoggingConfig `yaml:"logging"`
	Display DisplayConfig `yaml:"display"`
}

// BackendConfig describes how to reach the travel-planning backend.
type BackendConfig struct {
	// URL is the backend base URL, scheme and host only.
	// The WebSocket endpoint is derived from it, never configured.
	URL string `yaml:"url" validate:"required,url"`
	// RequestTimeoutSeconds bounds each HTTP request.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" validate:"gte=1,lte=600"`
	// ConnectTimeoutSeconds bounds the WebSocket handshake per query.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" validate:"gte=1,lte=120"`
}

// LoggingConfig mirrors pkg/logging.Config in file form.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
}

// DisplayConfig holds presentation preferences.
type DisplayConfig struct {
	// Markdown enables glamour rendering of answers. Plain text otherwise.
	Markdown bool `yaml:"markdown"`
	// WordWrap is the render width for markdown answers.
	WordWrap int `yaml:"word_wrap" validate:"gte=0,lte=400"`
}

// RequestTimeout returns the HTTP timeout as a duration.
func (b BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the WebSocket handshake timeout as a duration.
func (b BackendConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutSeconds) * time.Second
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			URL:                   "http://localhost:8000",
			RequestTimeoutSeconds: 30,
			ConnectTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Display: DisplayConfig{
			Markdown: true,
			WordWrap: 100,
		},
	}
}
