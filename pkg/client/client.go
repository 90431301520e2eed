// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package client implements the HTTP side of the backend contract: query
// submission, status and result retrieval, memory access, and the result
// fetcher that guards against cross-query answer delivery.
//
// The real-time progress side of the contract lives in pkg/transport.
//
// # Architecture
//
//	Session Controller → Client → HTTPClient Interface → http.Client
//	                   → Fetcher (status check + consistency + result + memory)
//
// All methods accept a context and return typed errors; callers decide
// whether a failure is a degradation (ErrServiceNotReady,
// ErrMemoryUnavailable), a consistency violation (ConsistencyError), or a
// plain retrieval failure (APIError or transport error).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// HTTPClient Interface
// =============================================================================

// HTTPClient abstracts HTTP operations for testability.
//
// # Description
//
// Production code uses defaultHTTPClient wrapping http.Client. Tests
// substitute a mock to exercise error paths without a network.
//
// # Assumptions
//
//   - Implementations honor context cancellation
//   - Callers close the response body
type HTTPClient interface {
	// Get performs a GET request to the given URL.
	Get(ctx context.Context, url string) (*http.Response, error)
	// Post performs a POST request with the given content type and body.
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

// defaultHTTPClient implements HTTPClient with a real http.Client.
type defaultHTTPClient struct {
	client *http.Client
}

func (c *defaultHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

func (c *defaultHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.client.Do(req)
}

// =============================================================================
// Wire Types
// =============================================================================

// SubmitResponse is the acknowledgment for POST /query.
type SubmitResponse struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is the payload of GET /query/{id}/status.
//
// Query carries the stored query text, which the fetcher compares against
// the transcript before trusting any result for this id.
type StatusResponse struct {
	QueryID       string       `json:"query_id"`
	Status        string       `json:"status"`
	Query         string       `json:"query"`
	TimeSubmitted string       `json:"time_submitted"`
	Result        *QueryResult `json:"result,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// QueryResult is the payload of GET /query/{id}/result.
type QueryResult struct {
	QueryID        string  `json:"query_id"`
	FinalAnswer    string  `json:"final_answer"`
	ProcessingTime float64 `json:"processing_time"`
}

// memoryEnvelope wraps the snapshot as GET /memory returns it.
type memoryEnvelope struct {
	Memory json.RawMessage `json:"memory"`
}

// detailBody is the FastAPI-style error shape: {"detail": "..."}.
type detailBody struct {
	Detail string `json:"detail"`
}

// =============================================================================
// Client
// =============================================================================

// Config holds client construction parameters.
type Config struct {
	// BaseURL is the backend root, no trailing slash (e.g. "http://localhost:8000").
	BaseURL string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
	// Logger for request diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to the travel-planning backend over HTTP.
//
// # Thread Safety
//
// Client is stateless apart from its http.Client and safe for concurrent
// use, though the session controller serializes all calls anyway.
type Client struct {
	http    HTTPClient
	baseURL string
	log     *slog.Logger
}

// New creates a Client with a production HTTP client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:    &defaultHTTPClient{client: &http.Client{Timeout: timeout}},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		log:     log,
	}
}

// NewWithHTTP creates a Client with an injected HTTPClient, for tests.
func NewWithHTTP(httpClient HTTPClient, baseURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes GET /health. Any non-200 answer or transport failure
// means the service is unreachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.baseURL+"/health")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	return nil
}

// SubmitQuery posts the user's text and returns the assigned query id.
//
// A 503 maps to ErrServiceNotReady (wrapped with the backend's detail),
// which the session interprets as limited mode rather than a failure.
func (c *Client) SubmitQuery(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"query": text})
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/query", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("submit query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		detail := readDetail(resp.Body)
		c.log.Warn("backend reported not ready on submit", "detail", detail)
		return "", fmt.Errorf("%w: %s", ErrServiceNotReady, detail)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var ack SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if ack.QueryID == "" {
		return "", fmt.Errorf("submit accepted but no query id returned")
	}

	c.log.Info("query submitted", "query_id", ack.QueryID, "status", ack.Status)
	return ack.QueryID, nil
}

// QueryStatus fetches the authoritative status record for a query id.
func (c *Client) QueryStatus(ctx context.Context, queryID string) (*StatusResponse, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/query/"+queryID+"/status")
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &status, nil
}

// QueryResultByID fetches the final answer payload for a completed query.
func (c *Client) QueryResultByID(ctx context.Context, queryID string) (*QueryResult, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/query/"+queryID+"/result")
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var result QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode result response: %w", err)
	}
	return &result, nil
}

// Memory fetches the full recollection snapshot.
//
// The protocol defines 500 and 503 here as the limited-mode marker, so
// those map to ErrMemoryUnavailable rather than a generic APIError.
func (c *Client) Memory(ctx context.Context, out any) error {
	resp, err := c.http.Get(ctx, c.baseURL+"/memory")
	if err != nil {
		return fmt.Errorf("fetch memory: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusInternalServerError,
		resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: status %d", ErrMemoryUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var envelope memoryEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode memory response: %w", err)
	}
	if err := json.Unmarshal(envelope.Memory, out); err != nil {
		return fmt.Errorf("decode memory snapshot: %w", err)
	}
	return nil
}

// ResetMemory clears the backend's recollection state.
func (c *Client) ResetMemory(ctx context.Context) error {
	resp, err := c.http.Post(ctx, c.baseURL+"/memory/reset", "application/json", nil)
	if err != nil {
		return fmt.Errorf("reset memory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	c.log.Info("memory reset")
	return nil
}

// readDetail extracts the {"detail": ...} message from an error body.
// Bodies that are not JSON come back verbatim, truncated.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var d detailBody
	if err := json.Unmarshal(raw, &d); err == nil && d.Detail != "" {
		return d.Detail
	}
	return strings.TrimSpace(string(raw))
}
