// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations, messages, and the selectable model
// catalog.
//
// # Key Types
//
//   - Conversation: Container for a chat session with messages and metadata
//   - Message: Single message with role, content, model id, and timestamp
//   - ModelInfo: Catalog entry for a selectable OpenRouter model
//   - Role: Message role enumeration (user, ai)
//
// # Usage
//
// Create a new conversation:
//
//	conv := model.NewConversation("Conversation #1")
//	conv.Append(model.NewUserMessage("Hello!", model.DefaultModelID))
//
// Work with the model catalog:
//
//	if info, ok := model.GetModelInfo(model.DefaultModelID); ok {
//	    fmt.Printf("Model: %s\n", info.Name)
//	}
package model
