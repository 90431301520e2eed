// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transport maintains the per-query real-time link to the backend
// and normalizes its messages into a typed event stream.
//
// One Channel exists per in-flight query. The session controller owns it
// exclusively: it dials on submit acknowledgment, consumes Events until
// the stream ends, and calls Close to detach and tear the link down. A
// closed-by-Close channel emits nothing further, which is how cancellation
// avoids spurious "closed unexpectedly" notifications.
//
// # Event Model
//
//	Opened   — handshake succeeded, delivered once, first
//	Progress — a status update for the bound query id
//	Error    — an in-band {error} message or a link-level failure; terminal
//	Closed   — the peer closed the link before a terminal status; terminal
//
// Messages carrying a different query id are discarded without side
// effects: residual frames from a previous query's channel must not touch
// the new query's state.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultConnectTimeout bounds the handshake. It is cleared on successful
// open and never retried; on expiry the caller must resubmit.
const DefaultConnectTimeout = 10 * time.Second

// eventBuffer sizes the event channel. The consumer drains continuously;
// the buffer only absorbs bursts around terminal status.
const eventBuffer = 16

// EventType discriminates channel events.
type EventType string

const (
	EventOpened   EventType = "opened"
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventClosed   EventType = "closed"
)

// ResultPayload is the result fragment a terminal progress message may carry.
type ResultPayload struct {
	FinalAnswer    string  `json:"final_answer"`
	ProcessingTime float64 `json:"processing_time"`
}

// progressMessage is the wire shape of one WebSocket frame.
type progressMessage struct {
	QueryID string         `json:"query_id"`
	Status  string         `json:"status"`
	Query   string         `json:"query,omitempty"`
	Time    string         `json:"time,omitempty"`
	Result  *ResultPayload `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Event is one normalized channel occurrence.
type Event struct {
	Type    EventType
	QueryID string
	// Status is the backend's lifecycle phase (queued, processing,
	// completed, failed). Set on Progress events.
	Status string
	// Query is the stored query text echoed by the server, when present.
	Query string
	// Result accompanies a completed Progress event when the server
	// inlines it.
	Result *ResultPayload
	// Err is set on Error and Closed events.
	Err error
}

// Options tunes channel construction.
type Options struct {
	// ConnectTimeout bounds the handshake. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// Logger for discard/teardown diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Channel is one live WebSocket link bound to a single query id.
//
// # Thread Safety
//
// Events is read by one consumer; Close may be called from any goroutine
// and is idempotent.
type Channel struct {
	queryID  string
	conn     *websocket.Conn
	events   chan Event
	detached atomic.Bool
	closeOne sync.Once
	closeErr error
	log      *slog.Logger
}

// Dial opens the real-time link for a query id.
//
// The handshake is bounded by the connect timeout; on expiry the dial is
// abandoned and an error returned — the channel never half-opens. On
// success the first event on Events is Opened.
func Dial(ctx context.Context, baseURL, queryID string, opts Options) (*Channel, error) {
	wsURL, err := DeriveURL(baseURL, queryID)
	if err != nil {
		return nil, err
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("open channel for %s: %w", queryID, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	ch := &Channel{
		queryID: queryID,
		conn:    conn,
		events:  make(chan Event, eventBuffer),
		log:     log,
	}
	ch.events <- Event{Type: EventOpened, QueryID: queryID}
	go ch.readLoop()

	log.Debug("channel opened", "query_id", queryID, "url", wsURL)
	return ch, nil
}

// Events returns the event stream. It is closed when the link ends for
// any reason; consumers should range over it.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// QueryID returns the query id this channel is bound to.
func (c *Channel) QueryID() string {
	return c.queryID
}

// Close detaches event delivery and closes the link.
//
// Detaching happens before the close so the read loop sees the teardown
// as intentional and stays silent — the equivalent of removing a close
// handler before closing a socket. Safe to call multiple times.
func (c *Channel) Close() error {
	c.detached.Store(true)
	c.closeOne.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// readLoop pumps frames into the event channel until the link ends.
func (c *Channel) readLoop() {
	defer close(c.events)

	sawTerminal := false
	for {
		var msg progressMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if c.detached.Load() {
				return
			}
			if sawTerminal {
				// Expected closure after a terminal status is silent.
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- Event{Type: EventClosed, QueryID: c.queryID, Err: err}
			} else {
				c.events <- Event{Type: EventError, QueryID: c.queryID,
					Err: fmt.Errorf("channel read: %w", err)}
			}
			return
		}

		if msg.Error != "" {
			// Error frames from the server may omit the query id; ones
			// that carry a foreign id are stale and dropped like any
			// other stale frame.
			if msg.QueryID != "" && msg.QueryID != c.queryID {
				c.log.Debug("discarding stale error frame",
					"frame_query_id", msg.QueryID, "bound_query_id", c.queryID)
				continue
			}
			c.events <- Event{Type: EventError, QueryID: c.queryID,
				Err: errors.New(msg.Error)}
			return
		}

		if msg.QueryID != c.queryID {
			c.log.Debug("discarding stale frame",
				"frame_query_id", msg.QueryID, "bound_query_id", c.queryID)
			continue
		}

		if msg.Status == "completed" || msg.Status == "failed" {
			sawTerminal = true
		}
		c.events <- Event{
			Type:    EventProgress,
			QueryID: msg.QueryID,
			Status:  msg.Status,
			Query:   msg.Query,
			Result:  msg.Result,
		}
	}
}
