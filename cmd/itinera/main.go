// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/itinera-ai/itinera/pkg/config"
	"github.com/itinera-ai/itinera/pkg/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "itinera: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from configuration. A file sink
// that cannot be opened degrades to stderr-only logging.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	log, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "itinera",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "itinera: file logging disabled: %v\n", err)
	}
	return log, nil
}
