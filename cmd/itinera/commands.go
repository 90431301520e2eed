// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/itinera-ai/itinera/pkg/client"
	"github.com/itinera-ai/itinera/pkg/config"
	"github.com/itinera-ai/itinera/pkg/display"
	"github.com/itinera-ai/itinera/pkg/session"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	backendURL string
	plainMode  bool
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "itinera",
		Short: "A travel-planning assistant for routes, sights, and trip plans",
		Long: `Itinera is a chat client for a travel-planning assistant.
Ask it how to get somewhere, what to see, and it remembers the trip
you are building across questions.`,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive travel-planning session",
		RunE:  runChatCommand,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAskCommand,
	}

	memoryCmd = &cobra.Command{
		Use:   "memory",
		Short: "Inspect or reset the assistant's travel memory",
		RunE:  runMemoryShow,
	}

	memoryShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the assistant's travel memory",
		RunE:  runMemoryShow,
	}

	memoryResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Clear the assistant's travel memory",
		RunE:  runMemoryReset,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check whether the assistant backend is reachable",
		RunE:  runHealthCommand,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("itinera " + version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "",
		"backend base URL (overrides config and ITINERA_BACKEND_URL)")
	rootCmd.PersistentFlags().BoolVar(&plainMode, "plain", false,
		"disable colors, spinners, and markdown rendering")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn, error")

	memoryCmd.AddCommand(memoryShowCmd, memoryResetCmd)
	rootCmd.AddCommand(chatCmd, askCmd, memoryCmd, healthCmd, versionCmd)
}

// appContext bundles everything a command needs after setup.
type appContext struct {
	cfg        *config.Config
	controller *session.Controller
	console    *display.Console
	renderer   *display.Renderer
}

// buildApp loads configuration and wires the controller stack.
func buildApp() (*appContext, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg := &config.Global
	if backendURL != "" {
		cfg.Backend.URL = strings.TrimRight(backendURL, "/")
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	plain := plainMode || !isatty.IsTerminal(os.Stdout.Fd())
	console := display.NewConsole(os.Stdout, os.Stderr, plain)
	renderer := display.NewRenderer(console, cfg.Display.Markdown, cfg.Display.WordWrap)

	api := client.New(client.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.RequestTimeout(),
		Logger:  log.Logger,
	})
	controller := session.New(session.Config{
		API:            api,
		ConnectTimeout: cfg.Backend.ConnectTimeout(),
		Logger:         log.Logger,
	})

	return &appContext{
		cfg:        cfg,
		controller: controller,
		console:    console,
		renderer:   renderer,
	}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runChatCommand(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var runner ChatRunner = NewQueryChatRunner(QueryChatRunnerConfig{
		Controller: app.controller,
		Reader:     NewInteractiveInputReader(50),
		Console:    app.console,
		Renderer:   app.renderer,
	})
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runAskCommand(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	question := strings.Join(args, " ")
	var runner ChatRunner = NewQueryChatRunner(QueryChatRunnerConfig{
		Controller: app.controller,
		Reader:     NewMockInputReader([]string{question}),
		Console:    app.console,
		Renderer:   app.renderer,
	})
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return showMemory(ctx, app.controller, app.renderer)
}

// showMemory fetches the snapshot once and renders the panel. A 500/503
// from the memory endpoint degrades into the unavailable panel rather
// than failing the command.
func showMemory(ctx context.Context, controller *session.Controller, renderer *display.Renderer) error {
	if err := controller.RefreshMemory(ctx); err != nil {
		return err
	}
	for {
		select {
		case n := <-controller.Notifications():
			if n.Kind == session.NoteMemory {
				renderer.Memory(n.Memory)
				return nil
			}
		default:
			return nil
		}
	}
}

func runMemoryReset(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := app.controller.Bootstrap(ctx); err != nil {
		return err
	}
	if err := app.controller.ResetMemory(ctx); err != nil {
		return err
	}
	app.console.Success("travel memory cleared")
	return nil
}

func runHealthCommand(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := app.controller.Bootstrap(ctx); err != nil {
		app.console.Error("backend unreachable at " + app.cfg.Backend.URL)
		return err
	}
	if app.controller.Limited() {
		app.console.Warning("backend reachable but running in limited mode")
		return nil
	}
	app.console.Success("backend healthy at " + app.cfg.Backend.URL)
	return nil
}
