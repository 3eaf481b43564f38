// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAI:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAI
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Content on an AI message only ever grows while a response streams in;
// deltas are appended, never replace what is already there. ModelID is set
// once (at creation, or on the first delta for an AI message) and never
// reassigned afterwards. CreatedAt is immutable.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ModelID   string    `json:"modelId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// Streaming state (not persisted)
	IsStreaming bool `json:"-"`
}

// NewUserMessage creates a new user message with a generated UUID.
// modelID may be empty; user messages carry it for display only.
func NewUserMessage(content, modelID string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		ModelID:   modelID,
		CreatedAt: time.Now(),
	}
}

// NewAIMessage creates a new streaming AI message with empty content.
func NewAIMessage(modelID string) *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAI,
		ModelID:     modelID,
		CreatedAt:   time.Now(),
		IsStreaming: true,
	}
}

// NewAIError creates a completed AI message carrying an error string.
// Used when a request fails before or during streaming.
func NewAIError(content, modelID string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleAI,
		Content:   content,
		ModelID:   modelID,
		CreatedAt: time.Now(),
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendDelta appends a streamed delta to the message content.
// If the message has no ModelID yet, the delta's model id is adopted.
func (m *Message) AppendDelta(delta, modelID string) {
	m.Content += delta
	if m.ModelID == "" && modelID != "" {
		m.ModelID = modelID
	}
}

// FinalizeStream marks a streaming message as complete.
func (m *Message) FinalizeStream() {
	m.IsStreaming = false
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly. Limits too
// small to hold an ellipsis fall back to a hard cut.
func (m *Message) Preview(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}
