// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package display

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinnerPlainModePrintsOnce(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(&out, &out, true)

	s := NewSpinner(console, "planning the route")
	s.Start()
	s.Start() // second start is a no-op
	s.Stop()

	if got := strings.Count(out.String(), "PROGRESS: planning the route"); got != 1 {
		t.Errorf("expected one progress line, got %d in %q", got, out.String())
	}
}

func TestSpinnerPlainModeUpdateMessage(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(&out, &out, true)

	s := NewSpinner(console, "waiting in queue")
	s.Start()
	s.UpdateMessage("assistant is working")
	s.Stop()

	got := out.String()
	if !strings.Contains(got, "PROGRESS: waiting in queue") {
		t.Errorf("missing initial progress line: %q", got)
	}
	if !strings.Contains(got, "PROGRESS: assistant is working") {
		t.Errorf("missing updated progress line: %q", got)
	}
}

func TestSpinnerInteractiveStartStop(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(&out, &out, false)

	s := NewSpinner(console, "planning").WithType(SpinnerCompass)
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()
	s.Stop() // idempotent

	if !strings.Contains(out.String(), "planning") {
		t.Errorf("spinner never drew its message: %q", out.String())
	}
}

func TestSpinnerStopBeforeStart(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(&out, &out, false)

	s := NewSpinner(console, "planning")
	s.Stop() // must not panic or block
	if out.Len() != 0 {
		t.Errorf("stop before start wrote output: %q", out.String())
	}
}
