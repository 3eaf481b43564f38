// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// UPSTREAM: Shared HTTP Clients with Connection Pooling
// =============================================================================

// PERFORMANCE: Shared HTTP clients with connection pooling.
// Reusing TCP connections avoids handshake overhead on every request.
var (
	// sharedHTTPClient is used for non-streaming requests (model listing).
	sharedHTTPClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}

	// sharedStreamingClient is used for streaming chat completions.
	// STREAMING: No client timeout; a completion may legitimately take minutes.
	// Connection lifecycle is governed by the request context instead.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// UPSTREAM: Errors
// =============================================================================

var (
	// ErrNotConfigured indicates the OpenRouter API key is missing.
	ErrNotConfigured = errors.New("openrouter api key not configured")

	// ErrAuthFailed indicates an invalid or expired API key.
	ErrAuthFailed = errors.New("openrouter authentication failed")
)

// UpstreamError captures a non-OK response from the OpenRouter API,
// preserving the raw body so the relay can surface it to the client.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("OpenRouter API error: %s", e.Body)
}

// =============================================================================
// UPSTREAM: Wire Types
// =============================================================================

// upstreamMessage is a single message in the OpenAI-compatible chat format.
type upstreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// upstreamRequest is the request body sent to the OpenRouter completions API.
type upstreamRequest struct {
	Model       string            `json:"model"`
	Messages    []upstreamMessage `json:"messages"`
	Stream      bool              `json:"stream"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

// HistoryMessage is a conversation entry as received from the relay client.
// Roles use the client vocabulary ("user" or "ai").
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toUpstream maps client roles onto the OpenAI role vocabulary.
// "user" stays "user"; everything else becomes "assistant".
func (m HistoryMessage) toUpstream() upstreamMessage {
	role := "assistant"
	if m.Role == string(model.RoleUser) {
		role = "user"
	}
	return upstreamMessage{Role: role, Content: m.Content}
}

// =============================================================================
// UPSTREAM: OpenRouter Client
// =============================================================================

// DefaultOpenRouterURL is the base URL for the OpenRouter API.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// Upstream talks to the OpenRouter chat completions API on behalf of
// the relay. Streaming responses are handed back as raw readers so the
// relay can pass bytes through untouched.
type Upstream struct {
	apiKey   string
	baseURL  string
	siteURL  string
	siteName string
}

// NewUpstream creates an OpenRouter upstream client with the given API key.
func NewUpstream(apiKey string) *Upstream {
	return &Upstream{
		apiKey:   apiKey,
		baseURL:  DefaultOpenRouterURL,
		siteURL:  "https://routerchat.local",
		siteName: "routerchat",
	}
}

// WithBaseURL sets a custom base URL for the API.
func (u *Upstream) WithBaseURL(url string) *Upstream {
	u.baseURL = strings.TrimSuffix(url, "/")
	return u
}

// WithSiteURL sets the site URL sent as the HTTP-Referer header.
func (u *Upstream) WithSiteURL(url string) *Upstream {
	u.siteURL = url
	return u
}

// WithSiteName sets the site name sent as the X-Title header.
func (u *Upstream) WithSiteName(name string) *Upstream {
	u.siteName = name
	return u
}

// IsConfigured returns true if the upstream has an API key.
func (u *Upstream) IsConfigured() bool {
	return u.apiKey != ""
}

// setHeaders sets the required headers for OpenRouter API requests.
// SECURITY: The Authorization header never appears in logs.
func (u *Upstream) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+u.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "routerchat/0.1.0")

	if u.siteURL != "" {
		req.Header.Set("HTTP-Referer", u.siteURL)
	}
	if u.siteName != "" {
		req.Header.Set("X-Title", u.siteName)
	}
}

// OpenStream starts a streaming chat completion and returns the raw
// response body. The caller owns the reader and must close it.
//
// A non-OK status drains the body and returns an *UpstreamError carrying
// its text, so callers can relay the upstream's own explanation.
func (u *Upstream) OpenStream(ctx context.Context, modelID string, history []HistoryMessage) (io.ReadCloser, error) {
	if !u.IsConfigured() {
		return nil, ErrNotConfigured
	}

	messages := make([]upstreamMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, m.toUpstream())
	}

	reqBody := upstreamRequest{
		Model:       modelID,
		Messages:    messages,
		Stream:      true,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	u.setHeaders(req)

	log.Printf("UPSTREAM: POST /chat/completions model=%s messages=%d", modelID, len(messages))

	// STREAMING: Use the streaming client (no timeout).
	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		resp.Body.Close()
		log.Printf("UPSTREAM: error status=%d", resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrAuthFailed, strings.TrimSpace(string(body)))
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp.Body, nil
}
