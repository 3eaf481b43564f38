// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for routerchat.
package storage

import (
	"os"
	"testing"
	"time"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// CONVERSATION STORE TESTS
// =============================================================================

func TestNewConversationStoreWithDir(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewConversationStoreWithDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if store.BaseDir != tempDir {
		t.Errorf("BaseDir = %q, want %q", store.BaseDir, tempDir)
	}
}

func TestConversationStore_SaveAndLoad(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	conv := model.NewConversation("Conversation #1")
	conv.Append(model.NewUserMessage("Hello", model.DefaultModelID))
	ai := model.NewAIMessage(model.DefaultModelID)
	ai.AppendDelta("Hi there!", "")
	ai.FinalizeStream()
	conv.Append(ai)

	if err := store.SaveConversation(conv); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	loaded := store.LoadConversations()
	if len(loaded) != 1 {
		t.Fatalf("LoadConversations count = %d, want 1", len(loaded))
	}
	if loaded[0].ID != conv.ID {
		t.Errorf("Loaded ID = %q, want %q", loaded[0].ID, conv.ID)
	}
	if loaded[0].Name != "Conversation #1" {
		t.Errorf("Loaded Name = %q, want 'Conversation #1'", loaded[0].Name)
	}
	if len(loaded[0].Messages) != 2 {
		t.Fatalf("Loaded Messages count = %d, want 2", len(loaded[0].Messages))
	}
	if loaded[0].Messages[1].Content != "Hi there!" {
		t.Errorf("AI content = %q, want 'Hi there!'", loaded[0].Messages[1].Content)
	}
	if loaded[0].Messages[1].Role != model.RoleAI {
		t.Errorf("AI role = %q, want %q", loaded[0].Messages[1].Role, model.RoleAI)
	}
}

func TestConversationStore_LoadEmpty(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	convs := store.LoadConversations()
	if convs == nil {
		t.Error("LoadConversations should return an empty slice, not nil")
	}
	if len(convs) != 0 {
		t.Errorf("LoadConversations count = %d, want 0", len(convs))
	}
}

func TestConversationStore_LoadCorrupt(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := os.WriteFile(store.ConversationsPath(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	convs := store.LoadConversations()
	if len(convs) != 0 {
		t.Errorf("corrupt file should load as empty, got %d conversations", len(convs))
	}
}

func TestConversationStore_SaveDuplicateIsNoOp(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	conv := model.NewConversation("Conversation #1")
	if err := store.SaveConversation(conv); err != nil {
		t.Fatal(err)
	}

	// Second save with the same ID must not overwrite or duplicate.
	altered := conv.Clone()
	altered.Name = "changed"
	if err := store.SaveConversation(altered); err != nil {
		t.Fatal(err)
	}

	loaded := store.LoadConversations()
	if len(loaded) != 1 {
		t.Fatalf("LoadConversations count = %d, want 1", len(loaded))
	}
	if loaded[0].Name != "Conversation #1" {
		t.Errorf("duplicate save should be a no-op, got Name = %q", loaded[0].Name)
	}
}

func TestConversationStore_UpdateReplaces(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	conv := model.NewConversation("Conversation #1")
	if err := store.SaveConversation(conv); err != nil {
		t.Fatal(err)
	}

	conv.Append(model.NewUserMessage("Hello", ""))
	if err := store.UpdateConversation(conv); err != nil {
		t.Fatal(err)
	}

	loaded := store.LoadConversations()
	if len(loaded) != 1 {
		t.Fatalf("LoadConversations count = %d, want 1", len(loaded))
	}
	if len(loaded[0].Messages) != 1 {
		t.Errorf("updated conversation should have 1 message, got %d", len(loaded[0].Messages))
	}
}

func TestConversationStore_UpdateMissingFallsBackToInsert(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	conv := model.NewConversation("Conversation #1")
	if err := store.UpdateConversation(conv); err != nil {
		t.Fatal(err)
	}

	loaded := store.LoadConversations()
	if len(loaded) != 1 {
		t.Fatalf("update of a missing conversation should insert it, got %d", len(loaded))
	}
}

func TestConversationStore_Delete(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	a := model.NewConversation("Conversation #1")
	b := model.NewConversation("Conversation #2")
	store.SaveConversation(a)
	store.SaveConversation(b)

	if err := store.DeleteConversation(a.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	loaded := store.LoadConversations()
	if len(loaded) != 1 || loaded[0].ID != b.ID {
		t.Error("delete should remove exactly the named conversation")
	}

	// Deleting a missing ID is a silent no-op.
	if err := store.DeleteConversation("nonexistent-id"); err != nil {
		t.Errorf("deleting a missing id should not error, got %v", err)
	}
}

func TestConversationStore_LoadSortedByUpdatedAt(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	old := model.NewConversation("Conversation #1")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	recent := model.NewConversation("Conversation #2")

	store.SaveConversation(old)
	store.SaveConversation(recent)

	loaded := store.LoadConversations()
	if len(loaded) != 2 {
		t.Fatalf("LoadConversations count = %d, want 2", len(loaded))
	}
	if loaded[0].ID != recent.ID {
		t.Error("conversations should be sorted most recently updated first")
	}
}

// =============================================================================
// LAST SELECTED MODEL TESTS
// =============================================================================

func TestConversationStore_LastSelectedModel(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, ok := store.LoadLastSelectedModelID(); ok {
		t.Error("LoadLastSelectedModelID should report absent before any save")
	}

	if err := store.SaveLastSelectedModelID(model.DefaultModelID); err != nil {
		t.Fatalf("SaveLastSelectedModelID failed: %v", err)
	}

	id, ok := store.LoadLastSelectedModelID()
	if !ok {
		t.Fatal("LoadLastSelectedModelID should report present after save")
	}
	if id != model.DefaultModelID {
		t.Errorf("LoadLastSelectedModelID = %q, want %q", id, model.DefaultModelID)
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_NotifiesOnExternalWrite(t *testing.T) {
	store, err := NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	changed := make(chan struct{}, 1)
	w, err := NewWatcher(store, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := store.SaveConversation(model.NewConversation("Conversation #1")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report the rewrite")
	}
}
