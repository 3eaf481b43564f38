// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/routerchat/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the current application status shown in the bar.
type Status int

const (
	StatusReady Status = iota
	StatusSending
	StatusStreaming
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusSending:
		return "Sending..."
	case StatusStreaming:
		return "Streaming..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns an icon for the status.
// ACCESSIBILITY: Distinct shapes alongside colors for colorblind users.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusSending:
		return styles.StatusIndicators.Pending
	case StatusStreaming:
		return "~"
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "?"
	}
}

// color returns the accent color for the status.
func (s Status) color() lipgloss.AdaptiveColor {
	switch s {
	case StatusReady:
		return styles.Emerald
	case StatusSending, StatusStreaming:
		return styles.Amber
	case StatusError:
		return styles.Rose
	default:
		return styles.TextSecondary
	}
}

// StatusBar renders the bottom status bar.
type StatusBar struct {
	Width         int
	Status        Status
	Conversations int
	Hint          string
}

// NewStatusBar creates a status bar for the given terminal width.
func NewStatusBar(width int) StatusBar {
	return StatusBar{Width: width, Hint: "? help"}
}

// View renders the status bar line.
func (b StatusBar) View() string {
	statusText := lipgloss.NewStyle().
		Foreground(b.Status.color()).
		Bold(true).
		Render(fmt.Sprintf("%s %s", b.Status.Icon(), b.Status.String()))

	convText := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Render(fmt.Sprintf("%d conversations", b.Conversations))

	hint := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Render(b.Hint)

	left := statusText + "  " + convText

	gap := b.Width - lipgloss.Width(left) - lipgloss.Width(hint) - 2
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Width(b.Width).
		Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + hint)
}
