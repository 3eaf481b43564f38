// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// view.go - Rendering for the chat interface.

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	chatctrl "github.com/jeranaias/routerchat/internal/chat"
	"github.com/jeranaias/routerchat/internal/model"
	"github.com/jeranaias/routerchat/internal/ui/components"
	"github.com/jeranaias/routerchat/internal/ui/styles"
)

// View renders the full interface.
func (m *Model) View() string {
	if m.sizing {
		return "Loading..."
	}

	if m.overlay != overlayNone {
		return m.renderOverlay()
	}

	var sb strings.Builder

	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")

	if spin := m.spinner.View(); spin != "" {
		sb.WriteString(spin)
		sb.WriteString("\n")
	}

	sb.WriteString(m.theme.InputBox.Width(m.width - 2).Render(m.input.View()))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())

	return sb.String()
}

func (m *Model) renderHeader() string {
	h := components.NewHeader(m.width)
	if conv := m.store.ActiveSnapshot(); conv != nil {
		h.Conversation = conv.Name
	}
	h.Model = model.ModelDisplayName(m.store.SelectedModel())
	return h.View()
}

func (m *Model) renderStatusBar() string {
	// A transient status message replaces the bar until it expires.
	if m.statusMsg != "" {
		style := m.theme.Info
		if m.statusIsErr {
			style = m.theme.Error
		}
		return m.theme.StatusBar.Width(m.width).Render(style.Render(m.statusMsg))
	}

	bar := components.NewStatusBar(m.width)
	bar.Status = statusFor(m.store.Phase())
	bar.Conversations = m.store.Count()
	bar.Hint = "F1 help"
	return bar.View()
}

// statusFor maps the controller phase onto the status bar display.
func statusFor(p chatctrl.Phase) components.Status {
	switch p {
	case chatctrl.PhaseSending:
		return components.StatusSending
	case chatctrl.PhaseStreaming:
		return components.StatusStreaming
	default:
		return components.StatusReady
	}
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m *Model) renderOverlay() string {
	var panel string
	switch m.overlay {
	case overlayConversations:
		panel = m.renderConversationPicker()
	case overlayModels:
		panel = m.renderModelPicker()
	case overlayHelp:
		panel = m.renderHelp()
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func (m *Model) renderConversationPicker() string {
	var sb strings.Builder
	sb.WriteString(m.theme.PickerTitle.Render("Conversations"))
	sb.WriteString("\n\n")

	convs := m.store.Snapshots()
	if len(convs) == 0 {
		sb.WriteString(m.theme.Muted.Render("  No conversations yet"))
		sb.WriteString("\n")
	}
	activeID := m.store.ActiveID()
	for i, conv := range convs {
		label := conv.Name
		if conv.ID == activeID {
			label = "* " + label
		} else {
			label = "  " + label
		}
		label += m.theme.Muted.Render(fmt.Sprintf("  (%d messages)", conv.MessageCount()))

		if i == m.pickerIndex {
			sb.WriteString(m.theme.PickerSelected.Render(label))
		} else {
			sb.WriteString(m.theme.PickerItem.Render(label))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.theme.HelpDesc.Render("enter select  n new  d delete  esc close"))
	return m.panelStyle().Render(sb.String())
}

func (m *Model) renderModelPicker() string {
	var sb strings.Builder
	sb.WriteString(m.theme.PickerTitle.Render("Models"))
	sb.WriteString("\n\n")

	selected := m.store.SelectedModel()
	for i, info := range model.SupportedModels {
		label := info.Name
		if info.ID == selected {
			label = "* " + label
		} else {
			label = "  " + label
		}

		if i == m.pickerIndex {
			sb.WriteString(m.theme.PickerSelected.Render(label))
		} else {
			sb.WriteString(m.theme.PickerItem.Render(label))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.theme.HelpDesc.Render("enter select  esc close"))
	return m.panelStyle().Render(sb.String())
}

func (m *Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.theme.PickerTitle.Render("Keyboard Shortcuts"))
	sb.WriteString("\n\n")

	for _, group := range m.keyMap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			sb.WriteString("  ")
			sb.WriteString(m.theme.HelpKey.Width(12).Render(h.Key))
			sb.WriteString(m.theme.HelpDesc.Render(h.Desc))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(m.theme.HelpDesc.Render("press any key to close"))
	return m.panelStyle().Render(sb.String())
}

func (m *Model) panelStyle() lipgloss.Style {
	width := m.width - 8
	if width > 64 {
		width = 64
	}
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Purple).
		Padding(1, 2).
		Width(width)
}
