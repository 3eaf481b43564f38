// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for routerchat.
//
// The entire conversation collection lives in one JSON document that is
// read, modified, and atomically rewritten on every mutation. This mirrors
// a key/value blob store: one key for the conversation array, one for the
// last selected model id. The store assumes a single writer per key.
//
// # Key Types
//
//   - ConversationStore: whole-collection read-modify-write persistence
//   - Watcher: fsnotify-based change notification for external rewrites
//
// # Usage
//
// Create a store and persist a conversation:
//
//	store, err := storage.NewConversationStore()
//	err = store.SaveConversation(conv)
//
// Load everything back, most recently updated first:
//
//	convs := store.LoadConversations()
//
// # Storage Location
//
// Files are stored under ~/.routerchat/ by default.
package storage
