// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// CLIENT: Relay Client
// =============================================================================

// DefaultRelayURL is where the chat client expects a local relay.
const DefaultRelayURL = "http://127.0.0.1:3000"

// RelayError is a non-2xx response from the relay, carrying the
// human-readable message from its JSON error body.
type RelayError struct {
	Status  int
	Message string
}

func (e *RelayError) Error() string {
	return e.Message
}

// Client talks to a relay server from the chat frontend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a relay client for the given base URL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultRelayURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// STREAMING: No timeout; responses stream for as long as the
		// model keeps producing tokens.
		httpClient: sharedStreamingClient,
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// BaseURL returns the relay base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendChat posts the conversation history to the relay and returns the
// raw SSE stream. The caller owns the reader and must close it.
//
// A non-2xx response is decoded into a *RelayError carrying the relay's
// error message.
func (c *Client) SendChat(ctx context.Context, history []HistoryMessage, modelID string) (io.ReadCloser, error) {
	reqBody := chatRequest{
		ConversationHistory: history,
		ModelID:             modelID,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeRelayError(resp)
	}

	return resp.Body, nil
}

// ListModels fetches the supported model catalog from the relay.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeRelayError(resp)
	}

	var body modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}
	return body.Models, nil
}

// Healthy reports whether the relay answers its health probe.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// decodeRelayError extracts the relay's JSON error shape from a
// failed response, falling back to the raw body text.
func decodeRelayError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &RelayError{Status: resp.StatusCode, Message: errResp.Error}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("relay returned status %d", resp.StatusCode)
	}
	return &RelayError{Status: resp.StatusCode, Message: msg}
}
