// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultNamePrefix is the prefix used for auto-generated conversation names.
const DefaultNamePrefix = "Conversation #"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation with history and metadata.
//
// Messages are kept in insertion order. UpdatedAt is refreshed on every
// structural change (message append, streamed delta, rename); CreatedAt
// never changes after construction.
type Conversation struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewConversation creates a new conversation with a generated UUID.
func NewConversation(name string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Name:      name,
		Messages:  make([]*Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the conversation and refreshes UpdatedAt.
func (c *Conversation) Append(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// Touch refreshes UpdatedAt. Called when a streamed delta mutates a
// message in place rather than appending a new one.
func (c *Conversation) Touch() {
	c.UpdatedAt = time.Now()
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageByID returns a message by its ID, or nil if not found.
func (c *Conversation) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// LastModelID returns the ModelID of the most recent AI message.
// Used to restore the model selector when a conversation is reopened.
func (c *Conversation) LastModelID() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAI && c.Messages[i].ModelID != "" {
			return c.Messages[i].ModelID
		}
	}
	return ""
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Rename sets the conversation name and refreshes UpdatedAt.
// Duplicate names across conversations are permitted.
func (c *Conversation) Rename(name string) {
	c.Name = name
	c.UpdatedAt = time.Now()
}

// Preview returns a short preview of the last message for list display.
func (c *Conversation) Preview() string {
	last := c.LastMessage()
	if last == nil {
		return "Empty conversation"
	}
	return last.Preview(100)
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}
	return clone
}

// =============================================================================
// NAMING
// =============================================================================

// NextDefaultName returns the default name for a new conversation given the
// existing ones: "Conversation #N" where N is one past the highest numeric
// suffix already in use. Gaps are tolerated ("#1" and "#3" yield "#4") and
// names that do not match the pattern are ignored.
func NextDefaultName(existing []*Conversation) string {
	max := 0
	for _, conv := range existing {
		if !strings.HasPrefix(conv.Name, DefaultNamePrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(conv.Name, DefaultNamePrefix))
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return DefaultNamePrefix + strconv.Itoa(max+1)
}

// SortByUpdatedAt sorts conversations in place, most recently updated first.
func SortByUpdatedAt(convs []*Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}
