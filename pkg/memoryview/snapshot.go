// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package memoryview models the assistant's recollection state and projects
// it into a display-ready form.
//
// The backend exposes its memory wholesale via GET /memory: named locations,
// recently surfaced points of interest, computed route plans, and a running
// query count. The client never mutates this state piecemeal — every fetch
// replaces the previous snapshot, and rendering always goes through a
// Projection so the presentation layer never reads raw wire values.
package memoryview

// Location is an address-bearing place the assistant has resolved.
//
// The backend keys locations by their display name; Address carries the
// geocoded street address and Time the moment of resolution.
type Location struct {
	Address string `json:"address"`
	Time    string `json:"time,omitempty"`
}

// PointOfInterest is one recommended place from a POI search.
type PointOfInterest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// RoutePlan holds the raw metrics of one computed route.
//
// Distance and Duration arrive as decimal strings (meters and seconds),
// exactly as the map provider emits them. Conversion to display units
// happens in the projection, not here.
type RoutePlan struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Origin   string `json:"origin,omitempty"`
	Dest     string `json:"destination,omitempty"`
}

// Snapshot is the backend's full recollection state.
//
// Field names mirror the wire contract. QueryCount is the authority on
// whether the memory holds anything at all: a snapshot with QueryCount == 0
// is empty regardless of what the other fields contain.
type Snapshot struct {
	Locations  map[string]Location  `json:"current_locations"`
	POIs       []PointOfInterest    `json:"current_pois"`
	Plans      map[string]RoutePlan `json:"current_plans"`
	LastQuery  string               `json:"last_query"`
	QueryCount int                  `json:"query_count"`
}
