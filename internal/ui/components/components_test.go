// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// CODE BLOCK TESTS
// =============================================================================

func TestParseCodeBlocks_ReplacesFencedBlocks(t *testing.T) {
	text := "before\n```go\nfmt.Println(\"hi\")\n```\nafter"
	out := ParseCodeBlocks(text, 80)

	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Error("surrounding text should be preserved")
	}
	if strings.Contains(out, "```") {
		t.Error("code fences should be consumed")
	}
	if !strings.Contains(out, "Println") {
		t.Error("code content should survive rendering")
	}
}

func TestParseCodeBlocks_UnclosedFence(t *testing.T) {
	text := "```python\nprint('streaming')"
	out := ParseCodeBlocks(text, 80)

	if !strings.Contains(out, "streaming") {
		t.Error("unclosed block content should still render")
	}
}

func TestParseCodeBlocks_NoFences(t *testing.T) {
	text := "plain text\nwith lines"
	if got := ParseCodeBlocks(text, 80); got != text {
		t.Errorf("text without fences should pass through, got %q", got)
	}
}

func TestSetHighlightStyle_IgnoresEmpty(t *testing.T) {
	SetHighlightStyle("dracula")
	if highlightStyle != "dracula" {
		t.Errorf("highlightStyle = %q, want dracula", highlightStyle)
	}

	SetHighlightStyle("")
	if highlightStyle != "dracula" {
		t.Error("empty style name should be ignored")
	}

	SetHighlightStyle("monokai")
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusReady, "Ready"},
		{StatusSending, "Sending..."},
		{StatusStreaming, "Streaming..."},
		{StatusError, "Error"},
		{Status(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusBarView_ContainsStatus(t *testing.T) {
	bar := NewStatusBar(80)
	bar.Status = StatusStreaming
	bar.Conversations = 3

	out := bar.View()
	if !strings.Contains(out, "Streaming") {
		t.Error("status bar should show status text")
	}
	if !strings.Contains(out, "3 conversations") {
		t.Error("status bar should show conversation count")
	}
}

// =============================================================================
// MESSAGE BUBBLE TESTS
// =============================================================================

func TestRenderMessage_UserAndAssistantLabels(t *testing.T) {
	user := model.NewUserMessage("hello there", "")
	out := RenderMessage(user, 80)
	if !strings.Contains(out, "You") {
		t.Error("user message should carry the You label")
	}
	if !strings.Contains(out, "hello there") {
		t.Error("user message content missing")
	}

	ai := model.NewAIMessage(model.DefaultModelID)
	ai.AppendDelta("general reply", model.DefaultModelID)
	ai.FinalizeStream()
	out = RenderMessage(ai, 80)
	if !strings.Contains(out, "Assistant") {
		t.Error("assistant message should carry the Assistant label")
	}
}

func TestRenderMessage_ErrorStyling(t *testing.T) {
	msg := model.NewAIError("Error: upstream unavailable", model.DefaultModelID)
	out := RenderMessage(msg, 80)

	if !strings.Contains(out, "Error") {
		t.Error("error message should carry the Error label")
	}
	if !strings.Contains(out, "upstream unavailable") {
		t.Error("error content missing")
	}
}

func TestRenderMessage_StreamingCursor(t *testing.T) {
	msg := model.NewAIMessage(model.DefaultModelID)
	out := RenderMessage(msg, 80)

	if !strings.Contains(out, streamingCursor) {
		t.Error("streaming message should show the cursor")
	}
}

// =============================================================================
// HEADER TESTS
// =============================================================================

func TestHeaderView(t *testing.T) {
	h := NewHeader(80)
	h.Conversation = "Conversation #1"
	h.Model = "Llama 3.2 3B"

	out := h.View()
	if !strings.Contains(out, "routerchat") {
		t.Error("header should show the app name")
	}
	if !strings.Contains(out, "Conversation #1") {
		t.Error("header should show the conversation name")
	}
	if !strings.Contains(out, "Llama 3.2 3B") {
		t.Error("header should show the model name")
	}
}

func TestHeaderView_TruncatesLongConversationName(t *testing.T) {
	h := NewHeader(40)
	h.Conversation = strings.Repeat("very long name ", 10)
	h.Model = "Llama 3.2 3B"

	out := h.View()
	if !strings.Contains(out, "...") {
		t.Error("long conversation name should be truncated with an ellipsis")
	}
	if !strings.Contains(out, "Llama 3.2 3B") {
		t.Error("model name should survive truncation of the conversation name")
	}
}
