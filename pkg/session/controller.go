// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session orchestrates the lifecycle of one query at a time.
//
// The Controller is the single owner of every piece of mutable protocol
// state: the active query, the transport channel bound to it, the
// transcript of submitted texts, and the process-wide capability flag.
// Nothing else holds a reference to the channel, so all lifecycle
// transitions serialize through one place.
//
// # State Machine
//
//	idle → queued → processing → {completed, failed} → idle
//
// idle is both the initial state and the state reentered after every
// terminal outcome or error. A second Submit while a query is in flight
// is a silent no-op; the caller waits for terminal status.
//
// # Architecture
//
//	Presentation → Controller.Submit → client.Client (POST /query)
//	                     ↓ ack
//	             transport.Channel (progress events)
//	                     ↓ completed
//	             client.Fetcher (verify + result + memory)
//	                     ↓
//	             Notifications() → Presentation
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/itinera-ai/itinera/pkg/client"
	"github.com/itinera-ai/itinera/pkg/memoryview"
	"github.com/itinera-ai/itinera/pkg/transport"
)

// Status is the client-side lifecycle state of the session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// NotificationKind discriminates session notifications.
type NotificationKind string

const (
	// NoteStatus reports a lifecycle transition with a phase description.
	NoteStatus NotificationKind = "status"
	// NoteAnswer delivers the verified final answer.
	NoteAnswer NotificationKind = "answer"
	// NoteMemory delivers a fresh memory projection.
	NoteMemory NotificationKind = "memory"
	// NoteWarning is a user-facing warning that is not a failure, such
	// as the consistency-violation retry prompt.
	NoteWarning NotificationKind = "warning"
	// NoteLimited reports the one-time degradation into limited mode.
	NoteLimited NotificationKind = "limited"
	// NoteError reports a failure; the session has returned to idle.
	NoteError NotificationKind = "error"
)

// Notification is one event emitted to the presentation layer.
type Notification struct {
	Kind           NotificationKind
	Status         Status
	Phase          string
	Answer         string
	ProcessingTime float64
	Memory         *memoryview.Projection
	Message        string
	Err            error
}

// noteBuffer sizes the notification channel. A stalled consumer drops
// notifications rather than wedging the protocol goroutines.
const noteBuffer = 64

// Query is one user request and its backend-assigned identifier.
type Query struct {
	ID          string
	Text        string
	SubmittedAt time.Time
}

// completedQuery remembers the last verified outcome's identity so it
// can be replayed without resubmitting.
type completedQuery struct {
	id   string
	text string
}

// Config holds controller construction parameters.
type Config struct {
	// API is the HTTP client for the backend. Required.
	API *client.Client
	// Fetcher retrieves verified outcomes. Defaults to a fetcher over API.
	Fetcher *client.Fetcher
	// ConnectTimeout bounds each channel handshake.
	// Defaults to transport.DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Controller drives exactly one query through its lifecycle at a time.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Internally the
// active query and channel are guarded by one mutex; the watch goroutine
// is the only consumer of channel events.
type Controller struct {
	api            *client.Client
	fetcher        *client.Fetcher
	connectTimeout time.Duration
	log            *slog.Logger

	transcript *Transcript
	capability *Capability

	mu       sync.Mutex
	status   Status
	active   *Query
	channel  *transport.Channel
	lastDone *completedQuery

	notes chan Notification
}

// New creates an idle Controller.
func New(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = client.NewFetcher(cfg.API, log)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = transport.DefaultConnectTimeout
	}
	return &Controller{
		api:            cfg.API,
		fetcher:        fetcher,
		connectTimeout: timeout,
		log:            log,
		transcript:     NewTranscript(),
		capability:     &Capability{},
		status:         StatusIdle,
		notes:          make(chan Notification, noteBuffer),
	}
}

// Notifications returns the stream the presentation layer consumes.
func (c *Controller) Notifications() <-chan Notification {
	return c.notes
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ActiveQueryID returns the backend id of the in-flight query, or "".
func (c *Controller) ActiveQueryID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.ID
}

// Limited reports whether the session has degraded into limited mode.
func (c *Controller) Limited() bool {
	return c.capability.Limited()
}

// Transcript exposes the session-owned log of submitted texts.
func (c *Controller) Transcript() *Transcript {
	return c.transcript
}

// Bootstrap probes the backend once at startup.
//
// A failing health check is returned as an error — the CLI cannot do
// anything useful against an unreachable backend. The memory probe is
// softer: unavailability degrades into limited mode (with its one-time
// notice) and anything else is only logged.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if err := c.api.Health(ctx); err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}

	var snap memoryview.Snapshot
	switch err := c.api.Memory(ctx, &snap); {
	case err == nil:
		c.notify(Notification{Kind: NoteMemory,
			Memory: memoryview.Project(&snap, false)})
	case errors.Is(err, client.ErrMemoryUnavailable):
		c.degrade()
	default:
		c.log.Warn("startup memory probe failed", "error", err)
	}
	return nil
}

// Submit starts the lifecycle for one user text.
//
// Empty or whitespace-only text, and any text submitted while a query is
// in flight, is a silent no-op returning nil. A distinguished
// "service not ready" response degrades the session into limited mode
// instead of surfacing a plain error; every other submission failure is
// both notified and returned, with the session back at idle.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		c.log.Debug("ignoring empty submission")
		return nil
	}

	c.mu.Lock()
	if c.active != nil {
		c.log.Debug("submission rejected; query already active",
			"active_query_id", c.active.ID)
		c.mu.Unlock()
		return nil
	}
	// Reserve the single-flight slot before any network call so a
	// concurrent Submit observes the session as busy.
	c.active = &Query{Text: text, SubmittedAt: time.Now()}
	c.setStatusLocked(StatusQueued, "waiting in queue")
	c.mu.Unlock()

	queryID, err := c.api.SubmitQuery(ctx, text)
	if err != nil {
		if errors.Is(err, client.ErrServiceNotReady) {
			c.degrade()
			c.resetToIdle()
			return nil
		}
		c.notify(Notification{Kind: NoteError, Err: err,
			Message: "the assistant could not accept the query"})
		c.resetToIdle()
		return err
	}

	c.mu.Lock()
	c.active.ID = queryID
	// Any channel from a stale query is torn down before a new one
	// opens; Close detaches delivery first, so the teardown is silent.
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	c.mu.Unlock()

	c.transcript.Append(text)

	ch, err := transport.Dial(ctx, c.api.BaseURL(), queryID, transport.Options{
		ConnectTimeout: c.connectTimeout,
		Logger:         c.log,
	})
	if err != nil {
		c.notify(Notification{Kind: NoteError, Err: err,
			Message: "could not open the progress channel"})
		c.resetToIdle()
		return err
	}

	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()

	go c.watch(ctx, ch)
	return nil
}

// RefreshMemory fetches the snapshot and emits a memory notification.
// In limited mode it emits the unavailable projection without a call.
func (c *Controller) RefreshMemory(ctx context.Context) error {
	if c.capability.Limited() {
		c.notify(Notification{Kind: NoteMemory,
			Memory: memoryview.Project(nil, true)})
		return nil
	}

	var snap memoryview.Snapshot
	switch err := c.api.Memory(ctx, &snap); {
	case err == nil:
		c.notify(Notification{Kind: NoteMemory,
			Memory: memoryview.Project(&snap, false)})
		return nil
	case errors.Is(err, client.ErrMemoryUnavailable):
		c.degrade()
		c.notify(Notification{Kind: NoteMemory,
			Memory: memoryview.Project(nil, true)})
		return nil
	default:
		return err
	}
}

// ResetMemory clears the backend's recollection. Refused in limited mode.
func (c *Controller) ResetMemory(ctx context.Context) error {
	if c.capability.Limited() {
		return fmt.Errorf("memory controls are disabled in limited mode")
	}
	if err := c.api.ResetMemory(ctx); err != nil {
		return err
	}
	return c.RefreshMemory(ctx)
}

// watch consumes channel events until the stream ends.
func (c *Controller) watch(ctx context.Context, ch *transport.Channel) {
	terminal := false
	for ev := range ch.Events() {
		if terminal {
			continue
		}
		// Late-arrival guard: only the channel bound to the currently
		// active query may drive transitions.
		c.mu.Lock()
		active := c.active
		c.mu.Unlock()
		if active == nil || active.ID != ch.QueryID() {
			continue
		}

		switch ev.Type {
		case transport.EventOpened:
			c.log.Debug("progress channel open", "query_id", ch.QueryID())

		case transport.EventProgress:
			switch ev.Status {
			case "queued":
				c.setStatus(StatusQueued, "waiting in queue")
			case "completed":
				terminal = true
				c.setStatus(StatusCompleted, "retrieving the answer")
				c.finish(ctx, ch.QueryID())
			case "failed":
				terminal = true
				c.setStatus(StatusFailed, "the assistant failed")
				c.notify(Notification{Kind: NoteError,
					Err:     errors.New("the assistant could not process the query"),
					Message: "processing failed"})
				c.resetToIdle()
			default:
				// Unknown phases from a newer backend are treated as
				// processing with the raw phase surfaced.
				phase := "assistant is working"
				if ev.Status != "processing" {
					phase = ev.Status
				}
				c.setStatus(StatusProcessing, phase)
			}

		case transport.EventError:
			terminal = true
			c.notify(Notification{Kind: NoteError, Err: ev.Err,
				Message: "the progress channel reported an error"})
			c.resetToIdle()

		case transport.EventClosed:
			terminal = true
			c.notify(Notification{Kind: NoteError, Err: ev.Err,
				Message: "the progress channel closed unexpectedly"})
			c.resetToIdle()
		}
	}
}

// finish converts a completed signal into the verified answer.
//
// Whatever the fetch yields — success, consistency violation, or a
// retrieval failure — the session returns to idle.
func (c *Controller) finish(ctx context.Context, queryID string) {
	defer c.resetToIdle()

	last, ok := c.transcript.Last()
	if !ok {
		// Completion without any transcript entry means the state was
		// torn down underneath us; nothing trustworthy to verify against.
		c.log.Warn("completed query with empty transcript", "query_id", queryID)
		return
	}

	outcome, err := c.fetcher.Fetch(ctx, queryID, last)
	if err != nil {
		if client.IsConsistency(err) {
			c.notify(Notification{Kind: NoteWarning, Err: err,
				Message: "the retrieved result does not match your last question — please resend it"})
			return
		}
		c.notify(Notification{Kind: NoteError, Err: err,
			Message: "could not retrieve the result"})
		return
	}

	if outcome.MemoryLimited {
		c.degrade()
	}

	c.mu.Lock()
	c.lastDone = &completedQuery{id: queryID, text: last}
	c.mu.Unlock()

	c.notify(Notification{
		Kind:           NoteAnswer,
		Answer:         outcome.Answer,
		ProcessingTime: outcome.ProcessingTime,
	})
	c.notify(Notification{Kind: NoteMemory,
		Memory: memoryview.Project(outcome.Snapshot, c.capability.Limited())})
}

// Replay re-delivers the most recent verified answer.
//
// The fetch goes through the result cache, so replaying a fresh answer
// costs no backend round trip; an expired entry is re-verified the same
// way the original completion was. Refused while a query is in flight
// or before any query has completed.
func (c *Controller) Replay(ctx context.Context) error {
	c.mu.Lock()
	last := c.lastDone
	busy := c.active != nil
	c.mu.Unlock()

	if busy {
		return fmt.Errorf("cannot replay while a query is in flight")
	}
	if last == nil {
		return fmt.Errorf("no answered query to replay yet")
	}

	outcome, err := c.fetcher.Fetch(ctx, last.id, last.text)
	if err != nil {
		return err
	}
	if outcome.MemoryLimited {
		c.degrade()
	}

	c.notify(Notification{
		Kind:           NoteAnswer,
		Answer:         outcome.Answer,
		ProcessingTime: outcome.ProcessingTime,
	})
	c.notify(Notification{Kind: NoteMemory,
		Memory: memoryview.Project(outcome.Snapshot, c.capability.Limited())})
	return nil
}

// degrade flips the capability flag and emits the warning exactly once.
func (c *Controller) degrade() {
	if c.capability.Degrade() {
		c.log.Warn("session degraded into limited mode")
		c.notify(Notification{Kind: NoteLimited,
			Message: "the assistant is running with limited functionality; memory features are disabled until the backend recovers"})
	}
}

// resetToIdle tears down the channel and reenters the idle state.
func (c *Controller) resetToIdle() {
	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	c.active = nil
	c.setStatusLocked(StatusIdle, "")
	c.mu.Unlock()
}

func (c *Controller) setStatus(status Status, phase string) {
	c.mu.Lock()
	c.setStatusLocked(status, phase)
	c.mu.Unlock()
}

// setStatusLocked mutates status and emits the transition. Caller holds mu.
func (c *Controller) setStatusLocked(status Status, phase string) {
	if c.status == status {
		return
	}
	c.status = status
	c.notify(Notification{Kind: NoteStatus, Status: status, Phase: phase})
}

// notify emits without ever blocking protocol goroutines. A full buffer
// drops the notification and logs it; lifecycle invariants never depend
// on delivery.
func (c *Controller) notify(n Notification) {
	select {
	case c.notes <- n:
	default:
		c.log.Warn("notification dropped; consumer not keeping up",
			"kind", string(n.Kind))
	}
}
