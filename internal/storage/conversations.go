// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for routerchat.
package storage

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/routerchat/internal/model"
	"github.com/jeranaias/routerchat/internal/util"
)

// Storage keys. Each key maps to one file under the base directory; the
// conversation key holds the entire collection as a single JSON array,
// which is rewritten wholesale on every mutation.
const (
	KeyConversations     = "routerChatConversations"
	KeyLastSelectedModel = "routerChatLastSelectedModelId"
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore handles conversation persistence.
//
// All operations are synchronous whole-collection read-modify-write: the
// store assumes a single writer, and concurrent writers get last-writer-wins
// at blob granularity. Storage failures are logged and swallowed so a full
// disk never takes down the chat loop.
type ConversationStore struct {
	// BaseDir is the directory holding the storage files.
	// Default: ~/.routerchat/
	BaseDir string
}

// NewConversationStore creates a store rooted at ~/.routerchat.
func NewConversationStore() (*ConversationStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewConversationStoreWithDir(filepath.Join(homeDir, ".routerchat"))
}

// NewConversationStoreWithDir creates a store with a custom directory.
func NewConversationStoreWithDir(baseDir string) (*ConversationStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &ConversationStore{BaseDir: baseDir}, nil
}

// ConversationsPath returns the path of the conversation collection file.
func (s *ConversationStore) ConversationsPath() string {
	return filepath.Join(s.BaseDir, KeyConversations+".json")
}

// lastModelPath returns the path of the last-selected-model file.
func (s *ConversationStore) lastModelPath() string {
	return filepath.Join(s.BaseDir, KeyLastSelectedModel)
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// LoadConversations returns all persisted conversations, most recently
// updated first. A missing file yields an empty slice; a corrupt file is
// logged and treated as empty rather than aborting startup.
func (s *ConversationStore) LoadConversations() []*model.Conversation {
	data, err := os.ReadFile(s.ConversationsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("STORAGE: failed to read %s: %v", KeyConversations, err)
		}
		return []*model.Conversation{}
	}

	var convs []*model.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		log.Printf("STORAGE: corrupt %s, starting empty: %v", KeyConversations, err)
		return []*model.Conversation{}
	}

	model.SortByUpdatedAt(convs)
	return convs
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// SaveConversation inserts a new conversation into the collection.
// If a conversation with the same ID already exists the call is a logged
// no-op; callers wanting replacement semantics use UpdateConversation.
func (s *ConversationStore) SaveConversation(conv *model.Conversation) error {
	convs := s.LoadConversations()
	for _, existing := range convs {
		if existing.ID == conv.ID {
			log.Printf("STORAGE: conversation %s already exists, not saving", conv.ID)
			return nil
		}
	}
	convs = append(convs, conv)
	return s.writeConversations(convs)
}

// UpdateConversation replaces a conversation in the collection.
// If the ID is not present it falls back to an insert, so callers never
// lose data for having missed the initial save.
func (s *ConversationStore) UpdateConversation(conv *model.Conversation) error {
	convs := s.LoadConversations()
	replaced := false
	for i, existing := range convs {
		if existing.ID == conv.ID {
			convs[i] = conv
			replaced = true
			break
		}
	}
	if !replaced {
		convs = append(convs, conv)
	}
	return s.writeConversations(convs)
}

// DeleteConversation removes a conversation from the collection.
// Deleting an ID that is not present is a silent no-op.
func (s *ConversationStore) DeleteConversation(id string) error {
	convs := s.LoadConversations()
	filtered := convs[:0]
	for _, existing := range convs {
		if existing.ID != id {
			filtered = append(filtered, existing)
		}
	}
	return s.writeConversations(filtered)
}

// writeConversations rewrites the whole collection blob.
func (s *ConversationStore) writeConversations(convs []*model.Conversation) error {
	data, err := json.MarshalIndent(convs, "", "  ")
	if err != nil {
		return err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(s.ConversationsPath(), data, 0644)
}

// =============================================================================
// LAST SELECTED MODEL
// =============================================================================

// SaveLastSelectedModelID persists the model id chosen in the selector.
// Stored as a bare string, not JSON.
func (s *ConversationStore) SaveLastSelectedModelID(id string) error {
	return util.AtomicWriteFile(s.lastModelPath(), []byte(id), 0644)
}

// LoadLastSelectedModelID returns the persisted model id.
// The second return is false when nothing has been stored yet.
func (s *ConversationStore) LoadLastSelectedModelID() (string, bool) {
	data, err := os.ReadFile(s.lastModelPath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("STORAGE: failed to read %s: %v", KeyLastSelectedModel, err)
		}
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false
	}
	return id, true
}

// Clear removes all storage files. Used by tests and the reset command.
func (s *ConversationStore) Clear() error {
	for _, path := range []string{s.ConversationsPath(), s.lastModelPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
