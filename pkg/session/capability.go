// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import "sync"

// Capability tracks the backend's limited/full flag for this process.
//
// Once limited, the session stays limited until the process restarts:
// memory-affecting operations are refused and memory projections render
// as unavailable. Queries themselves remain submittable.
type Capability struct {
	mu      sync.Mutex
	limited bool
}

// Degrade marks the capability as limited. Returns true only on the
// first call so the caller can surface the warning exactly once.
func (c *Capability) Degrade() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limited {
		return false
	}
	c.limited = true
	return true
}

// Limited reports whether the backend is degraded.
func (c *Capability) Limited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limited
}
