// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memoryview

import (
	"math"
	"sort"
	"strconv"
)

// maxDisplayPOIs caps how many points of interest the projection keeps.
// The backend accumulates up to ten; only the most recent three are shown.
const maxDisplayPOIs = 3

// State classifies a projection for the presentation layer.
type State int

const (
	// StateEmpty means the assistant has not processed any query yet.
	StateEmpty State = iota
	// StateReady means the projection carries displayable groups.
	StateReady
	// StateUnavailable means the backend is in limited mode and the
	// memory service cannot be trusted to return coherent data.
	StateUnavailable
)

// LocationEntry is one resolved location, ready for display.
type LocationEntry struct {
	Name    string
	Address string
}

// RouteEntry is one route plan with converted units.
//
// DistanceKm is rounded to one decimal; DurationMin is floored to whole
// minutes. Blank values mean the raw metric did not parse.
type RouteEntry struct {
	Route       string
	DistanceKm  string
	DurationMin string
}

// Projection is the display model derived from a Snapshot.
//
// Groups are independent: an empty POI list does not suppress routes.
// Ordering within each group is deterministic so repeated renders of the
// same snapshot produce identical output.
type Projection struct {
	State      State
	Locations  []LocationEntry
	POIs       []PointOfInterest
	Routes     []RouteEntry
	QueryCount int
}

// Project derives a Projection from a snapshot.
//
// The limited flag wins over everything: a degraded backend yields
// StateUnavailable without inspecting the snapshot (which may be nil or
// half-populated in that mode). Next the query count is checked — zero
// queries means StateEmpty no matter what else the snapshot carries.
func Project(snap *Snapshot, limited bool) *Projection {
	if limited {
		return &Projection{State: StateUnavailable}
	}
	if snap == nil || snap.QueryCount == 0 {
		return &Projection{State: StateEmpty}
	}

	p := &Projection{State: StateReady, QueryCount: snap.QueryCount}

	names := make([]string, 0, len(snap.Locations))
	for name := range snap.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.Locations = append(p.Locations, LocationEntry{
			Name:    name,
			Address: snap.Locations[name].Address,
		})
	}

	pois := snap.POIs
	if len(pois) > maxDisplayPOIs {
		pois = pois[len(pois)-maxDisplayPOIs:]
	}
	p.POIs = append(p.POIs, pois...)

	routes := make([]string, 0, len(snap.Plans))
	for route := range snap.Plans {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	for _, route := range routes {
		plan := snap.Plans[route]
		p.Routes = append(p.Routes, RouteEntry{
			Route:       route,
			DistanceKm:  metersToKm(plan.Distance),
			DurationMin: secondsToMinutes(plan.Duration),
		})
	}

	return p
}

// metersToKm converts a raw meter string to kilometers with one decimal.
// Returns "" when the input is not numeric.
func metersToKm(raw string) string {
	meters, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(math.Round(meters/100)/10, 'f', 1, 64)
}

// secondsToMinutes converts a raw second string to whole minutes, flooring.
// Returns "" when the input is not numeric.
func secondsToMinutes(raw string) string {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ""
	}
	return strconv.Itoa(int(math.Floor(seconds / 60)))
}
