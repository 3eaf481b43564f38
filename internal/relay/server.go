// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jeranaias/routerchat/internal/model"
)

// ============================================================================
// Server Configuration
// ============================================================================

const (
	// DefaultPort is the default relay listen port.
	DefaultPort = 3000

	// MaxRequestBodySize limits request bodies to prevent memory exhaustion.
	// SECURITY: 1MB is generous for chat history payloads.
	MaxRequestBodySize = 1 * 1024 * 1024
)

// Server is the HTTP relay between chat clients and the OpenRouter API.
//
// It validates chat requests, forwards them upstream with streaming enabled,
// and passes the SSE response bytes through to the client untouched.
type Server struct {
	host       string
	port       int
	upstream   *Upstream
	httpServer *http.Server
	logger     *log.Logger
	cors       *CORSConfig
}

// NewServer creates a relay server for the given upstream.
//
// The underlying http.Server is built here, not in Start, so Shutdown
// always has a server to stop. A shutdown signal that lands before
// Start makes the later ListenAndServe return immediately instead of
// leaving an orphaned listener.
func NewServer(upstream *Upstream, port int) *Server {
	if port <= 0 {
		port = DefaultPort
	}
	s := &Server{
		host:     "127.0.0.1",
		port:     port,
		upstream: upstream,
		logger:   log.New(os.Stderr, "", 0),
		cors:     DefaultCORSConfig(),
	}
	s.httpServer = &http.Server{
		Addr:    s.Addr(),
		Handler: s.Handler(),
		// STREAMING: WriteTimeout must cover a full model response.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// WithHost sets the listen host.
func (s *Server) WithHost(host string) *Server {
	s.host = host
	s.httpServer.Addr = s.Addr()
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(logger *log.Logger) *Server {
	s.logger = logger
	s.httpServer.Handler = s.Handler()
	return s
}

// WithCORS sets the CORS configuration.
func (s *Server) WithCORS(cors *CORSConfig) *Server {
	s.cors = cors
	s.httpServer.Handler = s.Handler()
	return s
}

// Addr returns the listen address in host:port form.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// ============================================================================
// Wire Types
// ============================================================================

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	ConversationHistory []HistoryMessage `json:"conversationHistory"`
	ModelID             string           `json:"modelId"`
}

// errorResponse is the JSON error shape for all non-streaming failures.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// modelsResponse is the body of GET /api/models.
type modelsResponse struct {
	Success bool              `json:"success"`
	Models  []model.ModelInfo `json:"models"`
}

// ============================================================================
// Handlers
// ============================================================================

// Handler returns the full relay handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /health", s.handleHealth)

	chain := Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		CORSMiddleware(s.cors),
		LoggingMiddleware(s.logger),
	)

	return chain(mux)
}

// handleChat validates the chat request and streams the upstream response
// back to the client byte for byte.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	// SECURITY: Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Conversation history is required")
		return
	}

	// Validation happens before anything is sent upstream.
	if len(req.ConversationHistory) == 0 {
		s.writeError(w, http.StatusBadRequest, "Conversation history is required")
		return
	}
	if req.ModelID == "" {
		s.writeError(w, http.StatusBadRequest, "Model ID is required")
		return
	}
	if !model.IsFreeModel(req.ModelID) {
		s.writeError(w, http.StatusBadRequest, "This model is not supported")
		return
	}

	body, err := s.upstream.OpenStream(r.Context(), req.ModelID, req.ConversationHistory)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			s.writeError(w, http.StatusInternalServerError, upErr.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("OpenRouter API error: %v", err))
		return
	}
	defer body.Close()

	// STREAMING: SSE headers for the client connection.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	s.passthrough(w, body)
}

// passthrough copies upstream bytes to the client, flushing after every
// read so tokens appear as soon as the upstream produces them. The bytes
// are not reframed or parsed; the client owns SSE interpretation.
func (s *Server) passthrough(w http.ResponseWriter, body io.Reader) {
	flusher, canFlush := w.(http.Flusher)

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away; nothing useful left to do.
				log.Printf("RELAY: client write failed: %v", werr)
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("RELAY: upstream read failed: %v", err)
			}
			return
		}
	}
}

// handleModels returns the supported model catalog.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, modelsResponse{
		Success: true,
		Models:  model.SupportedModels,
	})
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"configured": s.upstream.IsConfigured(),
	})
}

// ============================================================================
// Response Helpers
// ============================================================================

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RELAY: failed to encode response: %v", err)
	}
}

// writeError writes the relay's JSON error shape.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start begins listening for HTTP requests. Blocks until the server
// stops or fails.
func (s *Server) Start() error {
	log.Printf("RELAY: listening on http://%s", s.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("relay server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, letting in-flight streams finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
