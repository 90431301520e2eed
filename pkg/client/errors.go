// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package client

import (
	"errors"
	"fmt"
)

// ErrServiceNotReady signals the backend's distinguished 503 on submit:
// the assistant's upstream dependencies are not initialized. The session
// treats this as a degradation into limited mode, not a plain error.
var ErrServiceNotReady = errors.New("service not ready")

// ErrMemoryUnavailable signals that GET /memory answered 500 or 503,
// which the protocol defines as the limited-mode marker.
var ErrMemoryUnavailable = errors.New("memory service unavailable")

// APIError is a non-2xx response with the backend's detail message.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// ConsistencyError reports that the stored query text for a completed
// query id does not match what the user last submitted. It is distinct
// from network failures: the result exists but belongs to different
// input, so rendering it would show an answer to the wrong question.
type ConsistencyError struct {
	Submitted string
	Stored    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("stored query %q does not match last submitted %q",
		e.Stored, e.Submitted)
}

// IsConsistency reports whether err is (or wraps) a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
