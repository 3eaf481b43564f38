// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/routerchat/internal/ui/styles"
	"github.com/jeranaias/routerchat/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header renders the top bar: app name, conversation name, and model.
type Header struct {
	Width        int
	Conversation string
	Model        string
}

// NewHeader creates a header for the given terminal width.
func NewHeader(width int) Header {
	return Header{Width: width}
}

// View renders the header line.
func (h Header) View() string {
	brand := lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Bold(true).
		Render("routerchat")

	conv := h.Conversation
	if conv == "" {
		conv = "No conversation"
	}
	// USABILITY: Long conversation names must not push the model name
	// off screen. Width-aware truncation keeps CJK names intact.
	if maxName := h.Width - util.StringWidth("routerchat") - util.StringWidth(h.Model) - 8; maxName > 0 {
		conv = util.TruncateWidth(conv, maxName)
	}
	title := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Render(conv)

	left := fmt.Sprintf("%s  %s", brand, title)

	right := ""
	if h.Model != "" {
		right = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Render(h.Model)
	}

	// Pad the middle so the model name sits flush right
	gap := h.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	line := left + runewidth.FillLeft("", gap) + right

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Width(h.Width).
		Padding(0, 1).
		Render(line)
}
