// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" error ", LevelError},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "warn" {
		t.Errorf("expected 'warn', got %q", LevelWarn.String())
	}
	if ParseLevel(LevelDebug.String()) != LevelDebug {
		t.Error("String/ParseLevel round trip failed for debug")
	}
}

func TestNew_StderrOnly(t *testing.T) {
	logger, err := New(Config{Level: LevelDebug})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer logger.Close()

	if logger.Logger == nil {
		t.Fatal("expected a usable slog.Logger")
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: LevelInfo, LogDir: dir, Service: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("hello", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	name := "test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("expected log file %s: %v", name, err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing JSON record, got: %s", data)
	}
}

func TestNew_BadLogDirDegradesToStderr(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger, err := New(Config{LogDir: filepath.Join(file, "logs")})
	if err == nil {
		t.Error("expected a setup error for unusable log dir")
	}
	if logger == nil || logger.Logger == nil {
		t.Fatal("logger must remain usable when file setup fails")
	}
	logger.Info("still works")
	logger.Close()
}

func TestClose_Idempotent(t *testing.T) {
	logger, err := New(Config{LogDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
