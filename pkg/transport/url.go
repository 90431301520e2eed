// Copyright (C) 2025 Itinera Labs (dev@itinera.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// DeriveURL maps the backend base URL to the per-query WebSocket endpoint.
//
// The scheme follows the base (http→ws, https→wss); host, port, and any
// path prefix are preserved. The endpoint is never configured directly,
// so a client pointed at a proxy or a TLS terminator keeps working.
func DeriveURL(baseURL, queryID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend url %q has no host", baseURL)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws/query/" + url.PathEscape(queryID)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
