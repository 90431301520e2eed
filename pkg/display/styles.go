// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package display provides styled terminal output for the Itinera CLI.
package display

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Itinera color palette - dawn skies and road-trip sunsets
var (
	// Primary palette (brightest to darkest)
	ColorSkyBright  = lipgloss.Color("#4FC3F7") // Bright sky - highlights
	ColorSkyPrimary = lipgloss.Color("#29B6F6") // Primary sky - brand color
	ColorSkyDeep    = lipgloss.Color("#0288D1") // Deep sky - borders, accents
	ColorHorizon    = lipgloss.Color("#01579B") // Horizon blue - subtle accents

	// Dark palette (backgrounds, muted elements)
	ColorDusk     = lipgloss.Color("#263A4F") // Dusk - muted text, borders
	ColorNight    = lipgloss.Color("#101B26") // Night - near black
	ColorOvercast = lipgloss.Color("#5C7287") // Overcast - secondary text

	// Semantic colors
	ColorSuccess = lipgloss.Color("#4FC3F7") // Sky blue for success
	ColorWarning = lipgloss.Color("#FFB74D") // Sunset amber for warnings
	ColorError   = lipgloss.Color("#E57373") // Brake-light red for errors
	ColorMuted   = lipgloss.Color("#5C7287") // Overcast for muted text
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	// Box styles
	Box        lipgloss.Style
	InfoBox    lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorSkyBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorSkyPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorSkyBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSkyDeep).
		Padding(0, 1),
	InfoBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSkyPrimary).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Console writes user-facing messages to one destination.
//
// plain mode strips styling and animation for pipes and scripts; the
// caller decides based on terminal detection or configuration.
type Console struct {
	out   io.Writer
	err   io.Writer
	plain bool
}

// NewConsole creates a console over the given writers. Nil writers
// default to the process streams.
func NewConsole(out, errw io.Writer, plain bool) *Console {
	if out == nil {
		out = os.Stdout
	}
	if errw == nil {
		errw = os.Stderr
	}
	return &Console{out: out, err: errw, plain: plain}
}

// Plain reports whether styling is disabled.
func (c *Console) Plain() bool { return c.plain }

// Out exposes the output writer for components that render directly.
func (c *Console) Out() io.Writer { return c.out }

// Title prints a styled heading.
func (c *Console) Title(text string) {
	if c.plain {
		fmt.Fprintln(c.out, text)
		return
	}
	fmt.Fprintln(c.out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark.
func (c *Console) Success(text string) {
	if c.plain {
		fmt.Fprintf(c.out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message.
func (c *Console) Warning(text string) {
	if c.plain {
		fmt.Fprintf(c.err, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message.
func (c *Console) Error(text string) {
	if c.plain {
		fmt.Fprintf(c.err, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational message.
func (c *Console) Info(text string) {
	if c.plain {
		fmt.Fprintln(c.out, text)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text, dropped entirely in plain mode.
func (c *Console) Muted(text string) {
	if c.plain {
		return
	}
	fmt.Fprintln(c.out, Styles.Muted.Render(text))
}

// Box prints titled content in a rounded box.
func (c *Console) Box(title, content string) {
	if c.plain {
		fmt.Fprintf(c.out, "%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	titleLine := Styles.Title.Render(title)
	fmt.Fprintln(c.out, boxStyle.Render(titleLine+"\n"+content))
}

// WarningBox prints titled content in a warning-styled box.
func (c *Console) WarningBox(title, content string) {
	if c.plain {
		fmt.Fprintf(c.err, "WARN %s: %s\n", title, content)
		return
	}
	boxStyle := Styles.WarningBox.Width(60)
	titleLine := Styles.Warning.Bold(true).Render(title)
	fmt.Fprintln(c.out, boxStyle.Render(titleLine+"\n"+content))
}
