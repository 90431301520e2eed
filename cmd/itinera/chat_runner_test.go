// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itinera-ai/itinera/pkg/client"
	"github.com/itinera-ai/itinera/pkg/display"
	"github.com/itinera-ai/itinera/pkg/session"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type runnerHarness struct {
	runner *QueryChatRunner
	out    *bytes.Buffer
	errw   *bytes.Buffer
}

func newRunnerHarness(t *testing.T, mux *http.ServeMux, inputs []string) *runnerHarness {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	api := client.New(client.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	controller := session.New(session.Config{
		API:            api,
		ConnectTimeout: 2 * time.Second,
	})

	var out, errw bytes.Buffer
	console := display.NewConsole(&out, &errw, true)
	return &runnerHarness{
		runner: NewQueryChatRunner(QueryChatRunnerConfig{
			Controller: controller,
			Reader:     NewMockInputReader(inputs),
			Console:    console,
			Renderer:   display.NewRenderer(console, false, 0),
		}),
		out:  &out,
		errw: &errw,
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// healthyMux serves the endpoints every session needs at startup.
func healthyMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /memory", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"memory": map[string]any{
				"current_locations": map[string]any{},
				"current_pois":      []any{},
				"current_plans":     map[string]any{},
				"last_query":        "",
				"query_count":       0,
			},
		})
	})
	return mux
}

func TestRunnerExitImmediately(t *testing.T) {
	h := newRunnerHarness(t, healthyMux(), []string{"exit"})

	require.NoError(t, h.runner.Run(context.Background()))
	assert.Contains(t, h.out.String(), "goodbye")
}

func TestRunnerEOFExitsCleanly(t *testing.T) {
	h := newRunnerHarness(t, healthyMux(), nil)

	require.NoError(t, h.runner.Run(context.Background()))
	assert.Contains(t, h.out.String(), "goodbye")
}

func TestRunnerBootstrapFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	h := newRunnerHarness(t, mux, []string{"exit"})

	assert.Error(t, h.runner.Run(context.Background()))
}

func TestRunnerRoundTrip(t *testing.T) {
	const (
		queryID   = "q-trip"
		queryText = "深圳到珠海怎么走"
	)

	mux := healthyMux()
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"query_id": queryID, "status": "queued",
		})
	})
	mux.HandleFunc("GET /ws/query/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, status := range []string{"queued", "processing", "completed"} {
			conn.WriteJSON(map[string]any{"query_id": queryID, "status": status})
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	mux.HandleFunc("GET /query/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"query_id": queryID, "status": "completed", "query": queryText,
		})
	})
	mux.HandleFunc("GET /query/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"query_id":        queryID,
			"final_answer":    "最终回答: 乘坐高铁约一小时。",
			"processing_time": 2.5,
		})
	})
	h := newRunnerHarness(t, mux, []string{queryText, "exit"})

	require.NoError(t, h.runner.Run(context.Background()))

	got := h.out.String()
	assert.Contains(t, got, "乘坐高铁约一小时。")
	assert.NotContains(t, got, "最终回答:")
}

func TestRunnerLastCommandRepeatsAnswer(t *testing.T) {
	const (
		queryID   = "q-again"
		queryText = "珠海一日游"
		answer    = "白天逛情侣路，晚上看港珠澳大桥夜景。"
	)
	var resultCalls atomic.Int32

	mux := healthyMux()
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"query_id": queryID, "status": "queued",
		})
	})
	mux.HandleFunc("GET /ws/query/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.WriteJSON(map[string]any{"query_id": queryID, "status": "completed"})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	mux.HandleFunc("GET /query/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"query_id": queryID, "status": "completed", "query": queryText,
		})
	})
	mux.HandleFunc("GET /query/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		resultCalls.Add(1)
		respondJSON(w, http.StatusOK, map[string]any{
			"query_id":        queryID,
			"final_answer":    "最终回答: " + answer,
			"processing_time": 1.5,
		})
	})
	h := newRunnerHarness(t, mux, []string{queryText, "last", "exit"})

	require.NoError(t, h.runner.Run(context.Background()))

	got := h.out.String()
	assert.Equal(t, 2, strings.Count(got, answer))
	// The repeat came out of the result cache.
	assert.Equal(t, int32(1), resultCalls.Load())
}

func TestRunnerMemoryCommand(t *testing.T) {
	mux := healthyMux()
	h := newRunnerHarness(t, mux, []string{"memory", "exit"})

	require.NoError(t, h.runner.Run(context.Background()))
	assert.Contains(t, h.out.String(), "no trips planned yet")
}

func TestRunnerSubmitFailureKeepsLoopAlive(t *testing.T) {
	var submits atomic.Int32
	mux := healthyMux()
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad query"})
	})
	h := newRunnerHarness(t, mux, []string{"first question", "second question", "exit"})

	require.NoError(t, h.runner.Run(context.Background()))

	// Both questions reached the backend; the loop survived the errors.
	assert.Equal(t, int32(2), submits.Load())
	assert.True(t, strings.Contains(h.errw.String(), "ERROR") ||
		strings.Contains(h.out.String(), "ERROR"))
}
