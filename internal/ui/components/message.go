// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/routerchat/internal/model"
	"github.com/jeranaias/routerchat/internal/ui/styles"
)

// =============================================================================
// MESSAGE BUBBLE RENDERER
// =============================================================================

// streamingCursor marks the insertion point while a reply streams in.
const streamingCursor = "▌"

// RenderMessage renders a single chat message as a bordered bubble with a
// role label, timestamp, and syntax-highlighted code blocks.
func RenderMessage(msg *model.Message, width int) string {
	var label, labelColor string
	bubble := lipgloss.NewStyle()

	isError := msg.Role == model.RoleAI && strings.HasPrefix(msg.Content, "Error: ")

	switch {
	case isError:
		label = "Error"
		labelColor = "error"
		bubble = bubble.
			Foreground(styles.ErrorBubbleFg).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(styles.ErrorBubbleBorder).
			PaddingLeft(1)
	case msg.Role == model.RoleUser:
		label = "You"
		labelColor = "user"
		bubble = bubble.
			Foreground(styles.UserBubbleFg).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(styles.UserBubbleBorder).
			PaddingLeft(1)
	default:
		label = "Assistant"
		labelColor = "assistant"
		bubble = bubble.
			Foreground(styles.TextPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(styles.AssistantBubbleBorder).
			PaddingLeft(1)
	}

	header := renderMessageHeader(msg, label, labelColor)

	content := msg.Content
	if msg.Role == model.RoleAI && !isError {
		content = ParseCodeBlocks(content, width-4)
	}
	if msg.IsStreaming {
		content += streamingCursor
	}
	if content == "" {
		content = streamingCursor
	}

	maxWidth := width - 2
	if maxWidth < 20 {
		maxWidth = 20
	}
	body := bubble.MaxWidth(maxWidth).Render(content)

	return header + "\n" + body
}

// renderMessageHeader renders the "You 15:04" line above a bubble.
func renderMessageHeader(msg *model.Message, label, labelColor string) string {
	var color lipgloss.AdaptiveColor
	switch labelColor {
	case "user":
		color = styles.Cyan
	case "error":
		color = styles.Rose
	default:
		color = styles.Purple
	}

	styled := lipgloss.NewStyle().
		Foreground(color).
		Bold(true).
		Render(label)

	ts := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Render(msg.CreatedAt.Format("15:04"))

	header := fmt.Sprintf("%s %s", styled, ts)

	// Model attribution on assistant messages
	if msg.Role == model.RoleAI && msg.ModelID != "" {
		header += " " + lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Render(model.ModelDisplayName(msg.ModelID))
	}

	return header
}
