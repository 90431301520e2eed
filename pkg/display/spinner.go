// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package display

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerType defines the animation style
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerCompass
	SpinnerGlobe
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:    {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerCompass: {"◐", "◓", "◑", "◒"},
	SpinnerGlobe:   {"🌍", "🌎", "🌏"},
}

// Spinner provides an animated progress indicator for the wait between
// submitting a query and receiving the answer.
//
// In plain mode the spinner degrades to a single PROGRESS line per
// message so piped output stays readable.
type Spinner struct {
	writer     io.Writer
	plain      bool
	message    string
	spinType   SpinnerType
	stop       chan struct{}
	done       chan struct{}
	mu         sync.Mutex
	isRunning  bool
	frameIndex int
}

// NewSpinner creates a spinner bound to a console.
func NewSpinner(console *Console, message string) *Spinner {
	return &Spinner{
		writer:   console.Out(),
		plain:    console.Plain(),
		message:  message,
		spinType: SpinnerDots,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithType sets the spinner animation type
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	s.spinType = t
	return s
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	if s.plain {
		fmt.Fprintf(s.writer, "PROGRESS: %s\n", s.message)
		return
	}

	go func() {
		frames := spinnerFrames[s.spinType]
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				// Clear the spinner line
				fmt.Fprint(s.writer, "\r\033[K")
				close(s.done)
				return
			case <-ticker.C:
				s.mu.Lock()
				message := s.message
				s.mu.Unlock()
				frame := Styles.Highlight.Render(frames[s.frameIndex])
				fmt.Fprintf(s.writer, "\r%s %s", frame, message)
				s.frameIndex = (s.frameIndex + 1) % len(frames)
			}
		}
	}()
}

// Stop halts the spinner animation
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.plain {
		return
	}

	close(s.stop)
	<-s.done
}

// UpdateMessage changes the spinner message while running. In plain
// mode each update prints its own PROGRESS line.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	running := s.isRunning
	s.message = message
	s.mu.Unlock()

	if s.plain && running {
		fmt.Fprintf(s.writer, "PROGRESS: %s\n", message)
	}
}
