// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/routerchat/internal/model"
	"github.com/jeranaias/routerchat/internal/relay"
	"github.com/jeranaias/routerchat/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newTestController builds a controller backed by a temp dir and a fake
// relay server. The handler receives every POST /api/chat request.
func newTestController(t *testing.T, handler http.HandlerFunc) (*Controller, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	persist, err := storage.NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	ctrl := NewController(NewStore(), persist, relay.NewClient(ts.URL))
	if err := ctrl.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return ctrl, &calls
}

// sseHandler replies with a fixed SSE stream built from content deltas.
func sseHandler(deltas ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"model\":\"meta-llama/llama-3.2-3b-instruct:free\",\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// =============================================================================
// STARTUP TESTS
// =============================================================================

func TestLoad_EmptyCreatesDefaultConversation(t *testing.T) {
	ctrl, _ := newTestController(t, sseHandler())

	convs := ctrl.Store().Snapshots()
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	if convs[0].Name != "Conversation #1" {
		t.Errorf("name = %q, want %q", convs[0].Name, "Conversation #1")
	}
	if ctrl.Store().ActiveID() != convs[0].ID {
		t.Error("new conversation should be active")
	}
	if ctrl.Store().SelectedModel() != model.DefaultModelID {
		t.Errorf("model = %q, want default", ctrl.Store().SelectedModel())
	}
}

func TestLoad_ActivatesMostRecent(t *testing.T) {
	dir := t.TempDir()
	persist, err := storage.NewConversationStoreWithDir(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	old := model.NewConversation("Old")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	recent := model.NewConversation("Recent")
	if err := persist.SaveConversation(old); err != nil {
		t.Fatal(err)
	}
	if err := persist.SaveConversation(recent); err != nil {
		t.Fatal(err)
	}

	ctrl := NewController(NewStore(), persist, relay.NewClient(""))
	if err := ctrl.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	active := ctrl.Store().Active()
	if active == nil || active.Name != "Recent" {
		t.Errorf("active = %v, want Recent", active)
	}
}

func TestLoad_ModelFromPersistedSelection(t *testing.T) {
	dir := t.TempDir()
	persist, err := storage.NewConversationStoreWithDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := persist.SaveLastSelectedModelID("deepseek/deepseek-r1:free"); err != nil {
		t.Fatal(err)
	}

	ctrl := NewController(NewStore(), persist, relay.NewClient(""))
	if err := ctrl.Load(); err != nil {
		t.Fatal(err)
	}

	if got := ctrl.Store().SelectedModel(); got != "deepseek/deepseek-r1:free" {
		t.Errorf("model = %q, want persisted selection", got)
	}
}

func TestLoad_ModelFromLastAIMessageWins(t *testing.T) {
	dir := t.TempDir()
	persist, err := storage.NewConversationStoreWithDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := persist.SaveLastSelectedModelID("deepseek/deepseek-r1:free"); err != nil {
		t.Fatal(err)
	}

	conv := model.NewConversation("Chat")
	ai := model.NewAIMessage("google/gemma-3-1b-it:free")
	ai.Content = "hello"
	conv.Append(ai)
	if err := persist.SaveConversation(conv); err != nil {
		t.Fatal(err)
	}

	ctrl := NewController(NewStore(), persist, relay.NewClient(""))
	if err := ctrl.Load(); err != nil {
		t.Fatal(err)
	}

	if got := ctrl.Store().SelectedModel(); got != "google/gemma-3-1b-it:free" {
		t.Errorf("model = %q, want the active conversation's last AI model", got)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestSubmit_ValidationShortCircuits(t *testing.T) {
	ctrl, calls := newTestController(t, sseHandler("hi"))

	if err := ctrl.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty text: err = %v, want ErrEmptyMessage", err)
	}

	ctrl.Store().SetSelectedModel("")
	if err := ctrl.Submit(context.Background(), "Hello"); !errors.Is(err, ErrNoModelSelected) {
		t.Errorf("no model: err = %v, want ErrNoModelSelected", err)
	}
	ctrl.Store().SetSelectedModel(model.DefaultModelID)

	if n := calls.Load(); n != 0 {
		t.Errorf("relay calls = %d, want 0 after failed validation", n)
	}
}

func TestSubmit_BusyRejectsSecondSubmission(t *testing.T) {
	ctrl, calls := newTestController(t, sseHandler("hi"))

	if !ctrl.Store().beginResponding() {
		t.Fatal("could not claim in-flight slot")
	}
	defer ctrl.Store().endResponding()

	if err := ctrl.Submit(context.Background(), "Hello"); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("relay calls = %d, want 0", n)
	}
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmit_EndToEnd(t *testing.T) {
	ctrl, calls := newTestController(t, sseHandler("Hi", " there"))

	if err := ctrl.Submit(context.Background(), "Hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	conv := ctrl.Store().Active()
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want 2", conv.MessageCount())
	}

	user := conv.Messages[0]
	if user.Role != model.RoleUser || user.Content != "Hello" {
		t.Errorf("user message = %+v", user)
	}

	ai := conv.Messages[1]
	if ai.Role != model.RoleAI {
		t.Errorf("ai role = %q", ai.Role)
	}
	if ai.Content != "Hi there" {
		t.Errorf("ai content = %q, want %q", ai.Content, "Hi there")
	}
	if ai.ModelID != "meta-llama/llama-3.2-3b-instruct:free" {
		t.Errorf("ai model = %q", ai.ModelID)
	}
	if ai.IsStreaming {
		t.Error("ai message should be finalized")
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("relay calls = %d, want 1", n)
	}
	if ctrl.Store().IsResponding() {
		t.Error("responding flag not cleared")
	}
	if got := ctrl.Store().Phase(); got != PhaseSettled {
		t.Errorf("phase = %v, want settled", got)
	}

	// The full exchange must survive a reload from disk.
	reloaded := ctrl.persist.LoadConversations()
	if len(reloaded) != 1 || reloaded[0].MessageCount() != 2 {
		t.Errorf("persisted state wrong: %d conversations", len(reloaded))
	}
}

func TestSubmit_RelayErrorBecomesChatMessage(t *testing.T) {
	ctrl, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success": false, "error": "OpenRouter API error: overloaded"}`)
	})

	if err := ctrl.Submit(context.Background(), "Hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	conv := ctrl.Store().Active()
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want user + error", conv.MessageCount())
	}

	errMsg := conv.Messages[1]
	if errMsg.Role != model.RoleAI {
		t.Errorf("role = %q, want ai", errMsg.Role)
	}
	want := "Error: OpenRouter API error: overloaded"
	if errMsg.Content != want {
		t.Errorf("content = %q, want %q", errMsg.Content, want)
	}
	if ctrl.Store().IsResponding() {
		t.Error("responding flag not cleared")
	}
}

func TestSubmit_UserMessagePersistedBeforeRelayFailure(t *testing.T) {
	persist, err := storage.NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// Point at a port nothing listens on.
	ctrl := NewController(NewStore(), persist, relay.NewClient("http://127.0.0.1:1"))
	if err := ctrl.Load(); err != nil {
		t.Fatal(err)
	}

	if err := ctrl.Submit(context.Background(), "Hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	reloaded := persist.LoadConversations()
	if len(reloaded) != 1 {
		t.Fatalf("conversations = %d, want 1", len(reloaded))
	}
	if reloaded[0].MessageCount() < 1 || reloaded[0].Messages[0].Content != "Hello" {
		t.Error("user message not persisted before transport failure")
	}
}

func TestSubmit_SwitchingConversationMidStream(t *testing.T) {
	release := make(chan struct{})
	firstSent := make(chan struct{})

	ctrl, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"part one\"}}]}\n\n")
		flusher.Flush()
		close(firstSent)

		<-release
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" part two\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	originID := ctrl.Store().ActiveID()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Submit(context.Background(), "Hello")
	}()

	<-firstSent
	waitFor(t, func() bool {
		snap := ctrl.Store().Snapshot(originID)
		return snap != nil && snap.MessageCount() == 2
	})

	// Switch away while the stream is still open.
	other, err := ctrl.NewConversation()
	if err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The reply belongs to the conversation it started in.
	origin := ctrl.Store().Snapshot(originID)
	ai := origin.Messages[1]
	if ai.Content != "part one part two" {
		t.Errorf("origin content = %q, want full reply", ai.Content)
	}
	if otherSnap := ctrl.Store().Snapshot(other.ID); otherSnap.MessageCount() != 0 {
		t.Errorf("other conversation got %d messages, want 0", otherSnap.MessageCount())
	}
}

// =============================================================================
// CONVERSATION MANAGEMENT TESTS
// =============================================================================

// The TUI re-renders the active conversation on every change
// notification while the streaming goroutine is still appending deltas.
// Reading must go through snapshots; walking the live messages here
// would race with AppendDelta.
func TestSubmit_ConcurrentRenderDuringStream(t *testing.T) {
	deltas := make([]string, 50)
	for i := range deltas {
		deltas[i] = "chunk "
	}
	ctrl, _ := newTestController(t, sseHandler(deltas...))
	if err := ctrl.Load(); err != nil {
		t.Fatal(err)
	}

	changed := make(chan struct{}, 1)
	ctrl.Store().SetOnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Submit(context.Background(), "Hello")
	}()

	for {
		select {
		case <-changed:
			if snap := ctrl.Store().ActiveSnapshot(); snap != nil {
				for _, msg := range snap.Messages {
					_ = msg.Content
				}
			}
		case err := <-done:
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			snap := ctrl.Store().ActiveSnapshot()
			if got := snap.MessageCount(); got != 2 {
				t.Fatalf("MessageCount() = %d, want 2", got)
			}
			want := strings.Repeat("chunk ", len(deltas))
			if snap.Messages[1].Content != want {
				t.Errorf("streamed content = %q, want %d repeats", snap.Messages[1].Content, len(deltas))
			}
			return
		}
	}
}

func TestNewConversation_NamesCountUp(t *testing.T) {
	ctrl, _ := newTestController(t, sseHandler())

	second, err := ctrl.NewConversation()
	if err != nil {
		t.Fatal(err)
	}
	if second.Name != "Conversation #2" {
		t.Errorf("name = %q, want %q", second.Name, "Conversation #2")
	}
	if ctrl.Store().ActiveID() != second.ID {
		t.Error("new conversation should become active")
	}
}

func TestDeleteConversation_PromotesMostRecent(t *testing.T) {
	ctrl, _ := newTestController(t, sseHandler())

	first := ctrl.Store().Active()
	first.UpdatedAt = time.Now().Add(-time.Hour)

	second, err := ctrl.NewConversation()
	if err != nil {
		t.Fatal(err)
	}
	third, err := ctrl.NewConversation()
	if err != nil {
		t.Fatal(err)
	}
	second.Touch() // make second the most recently updated

	if err := ctrl.DeleteConversation(third.ID); err != nil {
		t.Fatal(err)
	}

	if got := ctrl.Store().ActiveID(); got != second.ID {
		t.Errorf("active = %s, want the most recently updated survivor", got)
	}
}

func TestDeleteConversation_LastOneCreatesFresh(t *testing.T) {
	ctrl, _ := newTestController(t, sseHandler())

	only := ctrl.Store().Active()
	if err := ctrl.DeleteConversation(only.ID); err != nil {
		t.Fatal(err)
	}

	if ctrl.Store().Count() != 1 {
		t.Fatalf("count = %d, want 1 fresh conversation", ctrl.Store().Count())
	}
	fresh := ctrl.Store().Active()
	if fresh == nil || fresh.ID == only.ID {
		t.Error("expected a fresh active conversation")
	}
}

func TestDeleteConversation_UnknownIDIsNoOp(t *testing.T) {
	ctrl, _ := newTestController(t, sseHandler())

	if err := ctrl.DeleteConversation("nope"); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if ctrl.Store().Count() != 1 {
		t.Error("conversation count changed")
	}
}

func TestSelectModel_Persists(t *testing.T) {
	ctrl, _ := newTestController(t, sseHandler())

	if err := ctrl.SelectModel("deepseek/deepseek-r1:free"); err != nil {
		t.Fatal(err)
	}

	if got, ok := ctrl.persist.LoadLastSelectedModelID(); !ok || got != "deepseek/deepseek-r1:free" {
		t.Errorf("persisted model = %q (ok=%v)", got, ok)
	}
}
