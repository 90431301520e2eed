// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/itinera-ai/itinera/pkg/memoryview"
)

// Renderer turns session outcomes into terminal output.
//
// Markdown answers go through glamour when enabled; a renderer that
// fails to initialize (or plain mode) falls back to the raw text, which
// is always safe to print.
type Renderer struct {
	console  *Console
	markdown *glamour.TermRenderer
}

// NewRenderer creates a renderer for the console.
//
// markdown requests glamour formatting of answers; wordWrap sets the
// column it wraps at. Both are ignored in plain mode.
func NewRenderer(console *Console, markdown bool, wordWrap int) *Renderer {
	r := &Renderer{console: console}

	if markdown && !console.Plain() {
		if wordWrap <= 0 {
			wordWrap = 100
		}
		term, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrap),
		)
		if err == nil {
			r.markdown = term
		}
	}
	return r
}

// Answer prints the final answer with its processing-time footer.
func (r *Renderer) Answer(answer string, processingTime float64) {
	text := answer
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(answer); err == nil {
			text = rendered
		}
	}

	fmt.Fprintln(r.console.Out(), strings.TrimRight(text, "\n"))
	if processingTime > 0 {
		r.console.Muted(fmt.Sprintf("answered in %.2fs", processingTime))
	}
	fmt.Fprintln(r.console.Out())
}

// Memory prints the travel memory panel for a projection.
func (r *Renderer) Memory(p *memoryview.Projection) {
	switch p.State {
	case memoryview.StateUnavailable:
		r.console.Warning("travel memory is unavailable in limited mode")
		return
	case memoryview.StateEmpty:
		r.console.Info("no trips planned yet - ask me something")
		return
	}

	r.console.Box("Travel Memory", r.memoryBody(p))
}

// memoryBody formats the ready-state groups into panel content.
func (r *Renderer) memoryBody(p *memoryview.Projection) string {
	var b strings.Builder

	if len(p.Locations) > 0 {
		b.WriteString("Locations\n")
		for _, loc := range p.Locations {
			line := loc.Name
			if loc.Address != "" {
				line += " - " + loc.Address
			}
			fmt.Fprintf(&b, "  %s %s\n", IconBullet, line)
		}
	}

	if len(p.POIs) > 0 {
		b.WriteString("Places of Interest\n")
		for _, poi := range p.POIs {
			line := poi.Name
			if poi.Address != "" {
				line += " - " + poi.Address
			}
			fmt.Fprintf(&b, "  %s %s\n", IconBullet, line)
		}
	}

	if len(p.Routes) > 0 {
		b.WriteString("Routes\n")
		for _, route := range p.Routes {
			metrics := make([]string, 0, 2)
			if route.DistanceKm != "" {
				metrics = append(metrics, route.DistanceKm+" km")
			}
			if route.DurationMin != "" {
				metrics = append(metrics, route.DurationMin+" min")
			}
			line := route.Route
			if len(metrics) > 0 {
				line += " (" + strings.Join(metrics, ", ") + ")"
			}
			fmt.Fprintf(&b, "  %s %s\n", IconArrow, line)
		}
	}

	fmt.Fprintf(&b, "queries so far: %d", p.QueryCount)
	return b.String()
}
