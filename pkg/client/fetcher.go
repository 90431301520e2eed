// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/itinera-ai/itinera/pkg/memoryview"
)

// finalAnswerMarker prefixes the assistant's synthesized conclusion when
// the backend passes through the full reasoning transcript. Rendering
// starts at the marker when present.
const finalAnswerMarker = "最终回答:"

// resultCacheTTL bounds how long a verified outcome is kept. Long enough
// to re-display an answer without refetching, short enough that a backend
// restart cannot serve a stale id.
const (
	resultCacheTTL     = 5 * time.Minute
	resultCacheCleanup = 10 * time.Minute
)

// Outcome is what a completed query ultimately yields.
type Outcome struct {
	Answer         string
	ProcessingTime float64
	// Snapshot is the memory state fetched alongside the result.
	// Nil when the memory fetch failed or reported limited mode.
	Snapshot *memoryview.Snapshot
	// MemoryLimited is set when the memory fetch answered 500/503,
	// which the session must translate into the capability flag.
	MemoryLimited bool
}

// Fetcher converts a completed signal into the actual answer.
//
// # Description
//
// The fetch runs in three steps, per the backend contract:
//
//  1. Fetch the authoritative stored query text for the id.
//  2. Compare it against the last text the user submitted. A mismatch is
//     a ConsistencyError — the result belongs to different input and must
//     not be rendered.
//  3. Fetch the final answer, then the memory snapshot as a side effect.
//
// Verified outcomes are cached briefly so the presentation layer can
// re-request them without another round trip.
//
// # Thread Safety
//
// Safe for concurrent use; the cache is internally synchronized. The
// session controller nonetheless issues one fetch at a time.
type Fetcher struct {
	client *Client
	cache  *gocache.Cache
	log    *slog.Logger
}

// NewFetcher creates a Fetcher on top of an API client.
func NewFetcher(apiClient *Client, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client: apiClient,
		cache:  gocache.New(resultCacheTTL, resultCacheCleanup),
		log:    log,
	}
}

// Fetch retrieves and verifies the outcome of a completed query.
//
// lastSubmitted is the most recent entry in the session transcript. Any
// returned error leaves no partial state behind; the caller resets the
// session to idle regardless of which step failed.
func (f *Fetcher) Fetch(ctx context.Context, queryID, lastSubmitted string) (*Outcome, error) {
	if cached, ok := f.cache.Get(queryID); ok {
		outcome := cached.(*Outcome)
		f.log.Debug("result served from cache", "query_id", queryID)
		return outcome, nil
	}

	status, err := f.client.QueryStatus(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("verify query: %w", err)
	}

	stored := strings.TrimSpace(status.Query)
	submitted := strings.TrimSpace(lastSubmitted)
	if stored != submitted {
		f.log.Warn("stored query does not match transcript",
			"query_id", queryID, "stored", stored)
		return nil, &ConsistencyError{Submitted: submitted, Stored: stored}
	}

	result, err := f.client.QueryResultByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("retrieve result: %w", err)
	}

	outcome := &Outcome{
		Answer:         ExtractFinalAnswer(result.FinalAnswer),
		ProcessingTime: result.ProcessingTime,
	}

	var snap memoryview.Snapshot
	switch err := f.client.Memory(ctx, &snap); {
	case err == nil:
		outcome.Snapshot = &snap
	case errors.Is(err, ErrMemoryUnavailable):
		outcome.MemoryLimited = true
	default:
		// The answer is already in hand; a flaky memory refresh should
		// not fail the whole fetch.
		f.log.Warn("memory refresh failed", "query_id", queryID, "error", err)
	}

	f.cache.Set(queryID, outcome, gocache.DefaultExpiration)
	return outcome, nil
}

// ExtractFinalAnswer trims a full reasoning transcript down to the
// synthesized conclusion when the marker is present.
func ExtractFinalAnswer(answer string) string {
	if idx := strings.Index(answer, finalAnswerMarker); idx >= 0 {
		return strings.TrimSpace(answer[idx+len(finalAnswerMarker):])
	}
	return answer
}
