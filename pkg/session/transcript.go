// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxTranscriptEntries bounds the in-memory transcript. The consistency
// check only ever needs the newest entry; the rest exists for display
// and session export.
const maxTranscriptEntries = 50

// Entry is one submitted user text.
type Entry struct {
	ID   string
	Text string
	At   time.Time
}

// Transcript is the ordered log of texts the user has submitted.
//
// The session owns it and appends on every acknowledged submission. It is
// the authority for "what did the user last ask" — the result fetcher
// verifies stored query text against it, never against rendered output.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records a submitted text and returns its entry.
func (t *Transcript) Append(text string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := Entry{ID: uuid.NewString(), Text: text, At: time.Now()}
	t.entries = append(t.entries, entry)
	if len(t.entries) > maxTranscriptEntries {
		t.entries = t.entries[len(t.entries)-maxTranscriptEntries:]
	}
	return entry
}

// Last returns the most recently submitted text.
func (t *Transcript) Last() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return "", false
	}
	return t.entries[len(t.entries)-1].Text, true
}

// Len returns the number of retained entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries returns a copy of the retained entries, oldest first.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
