// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeUpstream spins up an httptest server that mimics the OpenRouter
// streaming endpoint and returns an Upstream pointed at it.
func fakeUpstream(t *testing.T, handler http.HandlerFunc) (*Upstream, *httptest.Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	up := NewUpstream("test-key").WithBaseURL(ts.URL)
	return up, ts, &calls
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

const validHistory = `[{"role": "user", "content": "Hello"}]`

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestHandleChat_MissingHistory(t *testing.T) {
	up, _, calls := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(up, 0)

	cases := []struct {
		name string
		body string
	}{
		{"empty object", `{"modelId": "meta-llama/llama-3.2-3b-instruct:free"}`},
		{"empty array", `{"conversationHistory": [], "modelId": "meta-llama/llama-3.2-3b-instruct:free"}`},
		{"invalid json", `not json`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postChat(t, srv, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Success {
				t.Error("success = true, want false")
			}
			if resp.Error != "Conversation history is required" {
				t.Errorf("error = %q, want %q", resp.Error, "Conversation history is required")
			}
		})
	}

	if n := calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestHandleChat_MissingModelID(t *testing.T) {
	up, _, calls := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(up, 0)

	rec := postChat(t, srv, `{"conversationHistory": `+validHistory+`}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "Model ID is required" {
		t.Errorf("error = %q, want %q", resp.Error, "Model ID is required")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestHandleChat_UnsupportedModel(t *testing.T) {
	up, _, calls := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(up, 0)

	rec := postChat(t, srv, `{"conversationHistory": `+validHistory+`, "modelId": "openai/gpt-4"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "This model is not supported" {
		t.Errorf("error = %q, want %q", resp.Error, "This model is not supported")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

// =============================================================================
// UPSTREAM FORWARDING TESTS
// =============================================================================

func TestHandleChat_ForwardsUpstreamRequest(t *testing.T) {
	var captured upstreamRequest
	var gotAuth string

	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode upstream body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: [DONE]\n\n"))
	})
	srv := NewServer(up, 0)

	body := `{"conversationHistory": [
		{"role": "user", "content": "Hello"},
		{"role": "ai", "content": "Hi there"},
		{"role": "user", "content": "Bye"}
	], "modelId": "meta-llama/llama-3.2-3b-instruct:free"}`

	rec := postChat(t, srv, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if !captured.Stream {
		t.Error("upstream stream = false, want true")
	}
	if captured.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", captured.Temperature)
	}
	if captured.MaxTokens != 1000 {
		t.Errorf("max_tokens = %d, want 1000", captured.MaxTokens)
	}
	if captured.Model != "meta-llama/llama-3.2-3b-instruct:free" {
		t.Errorf("model = %q", captured.Model)
	}

	wantRoles := []string{"user", "assistant", "user"}
	if len(captured.Messages) != len(wantRoles) {
		t.Fatalf("messages = %d, want %d", len(captured.Messages), len(wantRoles))
	}
	for i, want := range wantRoles {
		if captured.Messages[i].Role != want {
			t.Errorf("messages[%d].Role = %q, want %q", i, captured.Messages[i].Role, want)
		}
	}
}

func TestHandleChat_UpstreamErrorBecomesJSON500(t *testing.T) {
	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "model overloaded"}`))
	})
	srv := NewServer(up, 0)

	rec := postChat(t, srv, `{"conversationHistory": `+validHistory+`, "modelId": "meta-llama/llama-3.2-3b-instruct:free"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Success {
		t.Error("success = true, want false")
	}
	if !strings.HasPrefix(resp.Error, "OpenRouter API error: ") {
		t.Errorf("error = %q, want OpenRouter API error prefix", resp.Error)
	}
	if !strings.Contains(resp.Error, "model overloaded") {
		t.Errorf("error = %q, should contain upstream body", resp.Error)
	}
}

func TestHandleChat_StreamPassthrough(t *testing.T) {
	payload := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n" +
		"data: [DONE]\n\n"

	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(payload))
	})
	srv := NewServer(up, 0)

	rec := postChat(t, srv, `{"conversationHistory": `+validHistory+`, "modelId": "meta-llama/llama-3.2-3b-instruct:free"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Error("X-Accel-Buffering header missing")
	}
	// Bytes must pass through untouched.
	if !bytes.Equal(rec.Body.Bytes(), []byte(payload)) {
		t.Errorf("body = %q, want %q", rec.Body.String(), payload)
	}
}

// =============================================================================
// CATALOG AND HEALTH TESTS
// =============================================================================

func TestHandleModels(t *testing.T) {
	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(up, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp modelsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}
	if len(resp.Models) != len(model.SupportedModels) {
		t.Errorf("models = %d, want %d", len(resp.Models), len(model.SupportedModels))
	}
}

func TestHandleHealth(t *testing.T) {
	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(up, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandler_SetsSecurityHeaders(t *testing.T) {
	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(up, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

// An interrupt can land before the serve goroutine gets going. The server
// is built in NewServer, so an early Shutdown still reaches it and a
// later Start returns cleanly instead of leaving an orphaned listener.
func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := NewServer(NewUpstream("test-key"), 0)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown before Start: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start after Shutdown: %v", err)
	}
}

// =============================================================================
// RELAY CLIENT TESTS
// =============================================================================

func TestClient_SendChat_Stream(t *testing.T) {
	payload := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi there\"}}]}\n\ndata: [DONE]\n\n"

	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(payload))
	})
	relay := httptest.NewServer(NewServer(up, 0).Handler())
	defer relay.Close()

	client := NewClient(relay.URL)
	body, err := client.SendChat(context.Background(), []HistoryMessage{
		{Role: "user", Content: "Hello"},
	}, "meta-llama/llama-3.2-3b-instruct:free")
	if err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(got) != payload {
		t.Errorf("stream = %q, want %q", got, payload)
	}
}

func TestClient_SendChat_RelayError(t *testing.T) {
	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	relay := httptest.NewServer(NewServer(up, 0).Handler())
	defer relay.Close()

	client := NewClient(relay.URL)
	_, err := client.SendChat(context.Background(), []HistoryMessage{
		{Role: "user", Content: "Hello"},
	}, "openai/gpt-4")
	if err == nil {
		t.Fatal("expected error for unsupported model")
	}

	var relayErr *RelayError
	if !errors.As(err, &relayErr) {
		t.Fatalf("error type = %T, want *RelayError", err)
	}
	if relayErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", relayErr.Status)
	}
	if relayErr.Message != "This model is not supported" {
		t.Errorf("message = %q", relayErr.Message)
	}
}

func TestClient_ListModels(t *testing.T) {
	up, _, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	relay := httptest.NewServer(NewServer(up, 0).Handler())
	defer relay.Close()

	models, err := NewClient(relay.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) == 0 {
		t.Error("expected non-empty model catalog")
	}
}
