// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// CLIENT IP TESTS
// =============================================================================

func TestGetClientIP_DirectConnection(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.7:52011"

	if got := GetClientIP(req); got != "203.0.113.7" {
		t.Errorf("GetClientIP = %q, want 203.0.113.7", got)
	}
}

func TestGetClientIP_ForwardedFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:52011"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	if got := GetClientIP(req); got != "203.0.113.7" {
		t.Errorf("GetClientIP = %q, want first forwarded hop", got)
	}
}

func TestGetClientIP_SpoofedHeaderFromUntrustedSource(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.7:52011"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("X-Real-IP", "1.2.3.4")

	// Forwarded headers from outside the trusted ranges are ignored.
	if got := GetClientIP(req); got != "203.0.113.7" {
		t.Errorf("GetClientIP = %q, want the connection address", got)
	}
}

func TestGetClientIP_RealIPFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:52011"
	req.Header.Set("X-Real-IP", "203.0.113.9")

	if got := GetClientIP(req); got != "203.0.113.9" {
		t.Errorf("GetClientIP = %q, want 203.0.113.9", got)
	}
}

// =============================================================================
// LOGGING MIDDLEWARE TESTS
// =============================================================================

func TestLoggingMiddleware_IncludesClientIP(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.RemoteAddr = "192.0.2.4:40000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if !strings.Contains(line, "192.0.2.4") {
		t.Errorf("log line %q should contain the client IP", line)
	}
	if !strings.Contains(line, "GET /api/models") {
		t.Errorf("log line %q should contain the method and path", line)
	}
	if !strings.Contains(line, "200") {
		t.Errorf("log line %q should contain the status code", line)
	}
}
