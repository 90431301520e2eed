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
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/itinera-ai/itinera/pkg/memoryview"
)

// =============================================================================
// Mock HTTP Client
// =============================================================================

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	// GetFunc allows customizing GET behavior per test
	GetFunc func(ctx context.Context, url string) (*http.Response, error)
	// PostFunc allows customizing POST behavior per test
	PostFunc func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)

	// Capture request details for assertions
	lastGetURL   string
	lastPostURL  string
	lastPostBody string
}

func (m *mockHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	m.lastGetURL = url
	return m.GetFunc(ctx, url)
}

func (m *mockHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	m.lastPostURL = url
	if body != nil {
		raw, _ := io.ReadAll(body)
		m.lastPostBody = string(raw)
	}
	return m.PostFunc(ctx, url, contentType, body)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// =============================================================================
// SubmitQuery Tests
// =============================================================================

func TestSubmitQuery_Success(t *testing.T) {
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			return jsonResponse(200, `{"query_id":"query_20250101_abcd","status":"queued","message":"submitted"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	id, err := c.SubmitQuery(context.Background(), "深圳到珠海怎么走")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "query_20250101_abcd" {
		t.Errorf("expected query id, got %q", id)
	}
	if mock.lastPostURL != "http://localhost:8000/query" {
		t.Errorf("unexpected URL %q", mock.lastPostURL)
	}
	if !strings.Contains(mock.lastPostBody, "深圳到珠海怎么走") {
		t.Errorf("request body missing query text: %s", mock.lastPostBody)
	}
}

func TestSubmitQuery_ServiceNotReady(t *testing.T) {
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			return jsonResponse(503, `{"detail":"服务未就绪，请稍后再试"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	_, err := c.SubmitQuery(context.Background(), "query")
	if !errors.Is(err, ErrServiceNotReady) {
		t.Fatalf("expected ErrServiceNotReady, got %v", err)
	}
}

func TestSubmitQuery_ErrorDetail(t *testing.T) {
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			return jsonResponse(422, `{"detail":"query must not be empty"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	_, err := c.SubmitQuery(context.Background(), "query")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 422 || apiErr.Detail != "query must not be empty" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestSubmitQuery_MissingQueryID(t *testing.T) {
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			return jsonResponse(200, `{"status":"queued"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	if _, err := c.SubmitQuery(context.Background(), "query"); err == nil {
		t.Fatal("expected an error for ack without query id")
	}
}

func TestSubmitQuery_TransportError(t *testing.T) {
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	if _, err := c.SubmitQuery(context.Background(), "query"); err == nil {
		t.Fatal("expected a transport error")
	}
}

// =============================================================================
// Status / Result Tests
// =============================================================================

func TestQueryStatus_Success(t *testing.T) {
	mock := &mockHTTPClient{
		GetFunc: func(ctx context.Context, url string) (*http.Response, error) {
			return jsonResponse(200, `{"query_id":"q1","status":"completed","query":"深圳到珠海怎么走"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	status, err := c.QueryStatus(context.Background(), "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Query != "深圳到珠海怎么走" {
		t.Errorf("unexpected stored query %q", status.Query)
	}
	if mock.lastGetURL != "http://localhost:8000/query/q1/status" {
		t.Errorf("unexpected URL %q", mock.lastGetURL)
	}
}

func TestQueryStatus_NotFound(t *testing.T) {
	mock := &mockHTTPClient{
		GetFunc: func(ctx context.Context, url string) (*http.Response, error) {
			return jsonResponse(404, `{"detail":"未找到查询ID: q1"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	if _, err := c.QueryStatus(context.Background(), "q1"); err == nil {
		t.Fatal("expected an error for 404")
	}
}

func TestQueryResultByID_Success(t *testing.T) {
	mock := &mockHTTPClient{
		GetFunc: func(ctx context.Context, url string) (*http.Response, error) {
			return jsonResponse(200, `{"query_id":"q1","final_answer":"乘坐城际铁路","processing_time":12.5}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	result, err := c.QueryResultByID(context.Background(), "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalAnswer != "乘坐城际铁路" {
		t.Errorf("unexpected answer %q", result.FinalAnswer)
	}
	if result.ProcessingTime != 12.5 {
		t.Errorf("unexpected processing time %v", result.ProcessingTime)
	}
}

// =============================================================================
// Memory Tests
// =============================================================================

func TestMemory_Success(t *testing.T) {
	mock := &mockHTTPClient{
		GetFunc: func(ctx context.Context, url string) (*http.Response, error) {
			return jsonResponse(200, `{"memory":{"query_count":2,"current_locations":{"珠海":{"address":"广东省珠海市"}}}}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	var snap memoryview.Snapshot
	if err := c.Memory(context.Background(), &snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.QueryCount != 2 {
		t.Errorf("expected query count 2, got %d", snap.QueryCount)
	}
	if snap.Locations["珠海"].Address != "广东省珠海市" {
		t.Errorf("unexpected locations: %+v", snap.Locations)
	}
}

func TestMemory_LimitedModeStatuses(t *testing.T) {
	for _, status := range []int{500, 503} {
		mock := &mockHTTPClient{
			GetFunc: func(ctx context.Context, url string) (*http.Response, error) {
				return jsonResponse(status, `{"detail":"客户端未初始化"}`), nil
			},
		}
		c := NewWithHTTP(mock, "http://localhost:8000", nil)

		var snap memoryview.Snapshot
		err := c.Memory(context.Background(), &snap)
		if !errors.Is(err, ErrMemoryUnavailable) {
			t.Errorf("status %d: expected ErrMemoryUnavailable, got %v", status, err)
		}
	}
}

func TestResetMemory(t *testing.T) {
	mock := &mockHTTPClient{
		PostFunc: func(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
			return jsonResponse(200, `{"status":"success","message":"记忆已重置"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)

	if err := c.ResetMemory(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastPostURL != "http://localhost:8000/memory/reset" {
		t.Errorf("unexpected URL %q", mock.lastPostURL)
	}
}

func TestHealth(t *testing.T) {
	mock := &mockHTTPClient{
		GetFunc: func(ctx context.Context, url string) (*http.Response, error) {
			return jsonResponse(200, `{"status":"ok"}`), nil
		},
	}
	c := NewWithHTTP(mock, "http://localhost:8000", nil)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.GetFunc = func(ctx context.Context, url string) (*http.Response, error) {
		return jsonResponse(502, ``), nil
	}
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected an error for non-200 health")
	}
}

func TestReadDetail_PlainTextBody(t *testing.T) {
	detail := readDetail(strings.NewReader("gateway exploded"))
	if detail != "gateway exploded" {
		t.Errorf("expected verbatim body, got %q", detail)
	}
}
