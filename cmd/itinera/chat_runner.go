// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main contains the Itinera CLI chat runner.
//
// The runner owns the read-submit-render loop: it reads one line of
// user input, hands it to the session controller, then drains
// controller notifications (driving the spinner) until the session is
// idle again. Exactly one query is in flight at a time.
//
// Architecture:
//
//	commands.go → ChatRunner Interface → QueryChatRunner
//	                                     ↓
//	                                     session.Controller
//	                                     InputReader (stdin abstraction)
//	                                     display.Renderer / display.Console
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/itinera-ai/itinera/pkg/display"
	"github.com/itinera-ai/itinera/pkg/session"
)

// ChatRunner defines the contract for running interactive chat sessions.
//
// # Description
//
// Run blocks until the user exits, the context is cancelled, or an
// unrecoverable error occurs. Callers MUST call Close when done,
// typically via defer.
//
// # Outputs
//
// Run returns nil on normal exit (user typed "exit" or closed stdin),
// context.Canceled on shutdown, or an error.
type ChatRunner interface {
	Run(ctx context.Context) error
	Close() error
}

var _ ChatRunner = (*QueryChatRunner)(nil)

// QueryChatRunnerConfig groups what a QueryChatRunner needs.
type QueryChatRunnerConfig struct {
	Controller *session.Controller // required
	Reader     InputReader         // required
	Console    *display.Console    // required
	Renderer   *display.Renderer   // required
	Logger     *slog.Logger        // optional
}

// QueryChatRunner runs the interactive travel-planning loop.
type QueryChatRunner struct {
	controller *session.Controller
	reader     InputReader
	console    *display.Console
	renderer   *display.Renderer
	log        *slog.Logger
}

// NewQueryChatRunner creates a runner over an already-constructed
// controller. The controller is not bootstrapped here; Run does that.
func NewQueryChatRunner(cfg QueryChatRunnerConfig) *QueryChatRunner {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &QueryChatRunner{
		controller: cfg.Controller,
		reader:     cfg.Reader,
		console:    cfg.Console,
		renderer:   cfg.Renderer,
		log:        log,
	}
}

// Run executes the chat loop until exit, EOF, or cancellation.
func (r *QueryChatRunner) Run(ctx context.Context) error {
	if err := r.controller.Bootstrap(ctx); err != nil {
		return err
	}
	r.drainIdleNotifications()

	r.console.Title("Itinera travel assistant")
	r.console.Muted("ask about routes, sights, and trip plans - 'last' repeats the answer, 'exit' leaves")

	prompt := "you> "
	if p, ok := r.reader.(PromptingInputReader); ok {
		p.SetPrompt(prompt)
		prompt = ""
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if prompt != "" {
			fmt.Fprint(r.console.Out(), prompt)
		}
		line, err := r.reader.ReadLine()
		if errors.Is(err, io.EOF) {
			r.console.Muted("goodbye")
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "exit", "quit":
			r.console.Muted("goodbye")
			return nil
		case "memory":
			if err := r.controller.RefreshMemory(ctx); err != nil {
				r.console.Error("could not fetch travel memory: " + err.Error())
				continue
			}
			r.drainIdleNotifications()
			continue
		case "last", "again":
			if err := r.controller.Replay(ctx); err != nil {
				r.console.Warning(err.Error())
				continue
			}
			r.drainIdleNotifications()
			continue
		}

		if err := r.controller.Submit(ctx, line); err != nil {
			r.log.Error("submission failed", "error", err)
		}
		r.waitForIdle(ctx)
	}
}

// Close releases runner resources. Safe to call multiple times.
func (r *QueryChatRunner) Close() error {
	return nil
}

// waitForIdle consumes notifications until the session settles.
//
// The spinner runs while the backend works; every notification kind has
// one rendering. The loop ends when the controller reports idle and the
// notification buffer has been drained.
func (r *QueryChatRunner) waitForIdle(ctx context.Context) {
	var spinner *display.Spinner
	stopSpinner := func() {
		if spinner != nil {
			spinner.Stop()
			spinner = nil
		}
	}
	defer stopSpinner()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case n := <-r.controller.Notifications():
			switch n.Kind {
			case session.NoteStatus:
				if n.Status == session.StatusIdle {
					stopSpinner()
					continue
				}
				message := phaseMessage(n)
				if spinner == nil {
					spinner = display.NewSpinner(r.console, message).
						WithType(display.SpinnerCompass)
					spinner.Start()
				} else {
					spinner.UpdateMessage(message)
				}

			case session.NoteAnswer:
				stopSpinner()
				r.renderer.Answer(n.Answer, n.ProcessingTime)

			case session.NoteMemory:
				stopSpinner()
				r.renderer.Memory(n.Memory)

			case session.NoteWarning:
				stopSpinner()
				r.console.Warning(n.Message)

			case session.NoteLimited:
				stopSpinner()
				r.console.WarningBox("Limited Mode", n.Message)

			case session.NoteError:
				stopSpinner()
				r.console.Error(n.Message)
				if n.Err != nil {
					r.log.Debug("session error detail", "error", n.Err)
				}
			}

		case <-ticker.C:
			if r.controller.Status() == session.StatusIdle {
				if r.drainIdleNotifications() {
					continue
				}
				return
			}
		}
	}
}

// drainIdleNotifications renders whatever is already buffered without
// blocking. Reports whether anything was drained.
func (r *QueryChatRunner) drainIdleNotifications() bool {
	drained := false
	for {
		select {
		case n := <-r.controller.Notifications():
			drained = true
			switch n.Kind {
			case session.NoteAnswer:
				r.renderer.Answer(n.Answer, n.ProcessingTime)
			case session.NoteMemory:
				r.renderer.Memory(n.Memory)
			case session.NoteWarning:
				r.console.Warning(n.Message)
			case session.NoteLimited:
				r.console.WarningBox("Limited Mode", n.Message)
			case session.NoteError:
				r.console.Error(n.Message)
			}
		default:
			return drained
		}
	}
}

// phaseMessage maps a status transition to the spinner text.
func phaseMessage(n session.Notification) string {
	switch n.Status {
	case session.StatusQueued:
		return "waiting in queue"
	case session.StatusProcessing:
		if n.Phase != "" {
			return n.Phase
		}
		return "assistant is working"
	case session.StatusCompleted:
		return "retrieving the answer"
	default:
		if n.Phase != "" {
			return n.Phase
		}
		return string(n.Status)
	}
}
