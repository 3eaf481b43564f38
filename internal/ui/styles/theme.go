// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// THEME
// =============================================================================

// Theme bundles the pre-built lipgloss styles used across the TUI.
// Build it once at startup and share it between views; styles are
// value types and cheap to copy when a view needs a variant.
type Theme struct {
	// Layout
	Header    lipgloss.Style
	StatusBar lipgloss.Style
	InputBox  lipgloss.Style

	// Message bubbles
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	RoleLabel       lipgloss.Style
	Timestamp       lipgloss.Style

	// Conversation sidebar / picker
	PickerTitle    lipgloss.Style
	PickerItem     lipgloss.Style
	PickerSelected lipgloss.Style

	// Status text
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style

	// Help
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// NewTheme builds the default theme.
func NewTheme() *Theme {
	t := &Theme{}

	t.Header = lipgloss.NewStyle().
		Foreground(Cyan).
		Background(SurfaceDim).
		Bold(true).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBubbleBorder).
		PaddingLeft(1)

	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(ErrorBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(ErrorBubbleBorder).
		PaddingLeft(1)

	t.RoleLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.PickerTitle = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true).
		Padding(0, 1)

	t.PickerItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 2)

	t.PickerSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 2)

	t.Info = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Success = lipgloss.NewStyle().Foreground(Emerald)
	t.Warning = lipgloss.NewStyle().Foreground(Amber)
	t.Error = lipgloss.NewStyle().Foreground(Rose)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.HelpKey = lipgloss.NewStyle().Foreground(Cyan)
	t.HelpDesc = lipgloss.NewStyle().Foreground(TextMuted)

	return t
}

// =============================================================================
// LAYOUT MODE
// =============================================================================

// LayoutMode describes how much horizontal room the terminal gives us.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutNormal                   // 60-119 columns
	LayoutWide                     // >= 120 columns
)

// LayoutFor returns the layout mode for a terminal width.
func LayoutFor(width int) LayoutMode {
	switch {
	case width < 60:
		return LayoutNarrow
	case width < 120:
		return LayoutNormal
	default:
		return LayoutWide
	}
}
