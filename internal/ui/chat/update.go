// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// update.go - Message handling for the chat interface.

package chat

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/routerchat/internal/model"
	"github.com/jeranaias/routerchat/internal/telemetry"
)

// statusDisplayTime is how long a temporary status line stays visible.
const statusDisplayTime = 4 * time.Second

// Update handles incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StoreChangedMsg:
		// Keep listening, render when the frame budget allows.
		cmds := []tea.Cmd{m.waitForChangeCmd()}
		if m.gate.ShouldRender() {
			m.refreshViewport()
		} else if m.gate.Pending() {
			cmds = append(cmds, streamTickCmd())
		}
		return m, tea.Batch(cmds...)

	case StreamTickMsg:
		if m.gate.ShouldRender() {
			m.refreshViewport()
		}
		if m.gate.Pending() {
			return m, streamTickCmd()
		}
		return m, nil

	case SubmitDoneMsg:
		return m.handleSubmitDone(msg)

	case ExportDoneMsg:
		if msg.Err != nil {
			return m.setStatus(fmt.Sprintf("Export failed: %v", msg.Err), true)
		}
		return m.setStatus("Exported to "+msg.Path, false)

	case statusExpiredMsg:
		m.statusMsg = ""
		return m, nil
	}

	// Forward everything else (blink, spinner ticks) to components
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// =============================================================================
// RESIZE
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	inputHeight := m.input.Height() + 2 // border
	chrome := 2                         // header + status bar
	viewportHeight := m.height - inputHeight - chrome - 1
	if viewportHeight < 3 {
		viewportHeight = 3
	}

	if m.sizing {
		m.viewport = viewport.New(m.width, viewportHeight)
		m.sizing = false
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = viewportHeight
	}
	m.input.SetWidth(m.width - 4)

	m.refreshViewport()
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quit always works
	if key.Matches(msg, m.keyMap.Quit) {
		if m.cancelSubmit != nil {
			m.cancelSubmit()
		}
		return m, tea.Quit
	}

	// Overlays swallow input while open
	if m.overlay != overlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		if m.store.IsResponding() && m.cancelSubmit != nil {
			m.cancelSubmit()
			m.cancelSubmit = nil
			return m.setStatus("Cancelled", false)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keyMap.NewConv):
		if _, err := m.ctrl.NewConversation(); err != nil {
			return m.setStatus(fmt.Sprintf("Could not create conversation: %v", err), true)
		}
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keyMap.Conversations):
		m.overlay = overlayConversations
		m.pickerIndex = m.activeConversationIndex()
		return m, nil

	case key.Matches(msg, m.keyMap.Models):
		m.overlay = overlayModels
		m.pickerIndex = m.selectedModelIndex()
		return m, nil

	case key.Matches(msg, m.keyMap.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keyMap.Help):
		m.overlay = overlayHelp
		return m, nil

	case key.Matches(msg, m.keyMap.Up),
		key.Matches(msg, m.keyMap.Down),
		key.Matches(msg, m.keyMap.PageUp),
		key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// Everything else goes to the input
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit validates and sends the typed message.
func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.store.IsResponding() {
		return m.setStatus("A response is already in flight", true)
	}

	m.input.Reset()
	m.submitStart = time.Now()
	m.pendingPrompt = len(text)

	return m, tea.Batch(
		m.submitCmd(text),
		m.spinner.Start(),
	)
}

// handleSubmitDone processes the end of a submission.
func (m *Model) handleSubmitDone(msg SubmitDoneMsg) (tea.Model, tea.Cmd) {
	m.cancelSubmit = nil
	m.spinner.Stop()
	m.gate.Force()
	m.refreshViewport()

	if msg.Err != nil {
		return m.setStatus(fmt.Sprintf("%v", msg.Err), true)
	}

	m.recordUsage()
	return m, nil
}

// recordUsage stores the completed exchange in the local stats database.
// Only sizes and timing are recorded, never message content.
func (m *Model) recordUsage() {
	if m.usage == nil {
		return
	}

	ex := telemetry.Exchange{
		ModelID:     m.store.SelectedModel(),
		PromptChars: m.pendingPrompt,
		Duration:    time.Since(m.submitStart),
	}

	conv := m.store.ActiveSnapshot()
	if conv != nil {
		ex.ConversationID = conv.ID
	}

	var reply *model.Message
	if conv != nil {
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			if conv.Messages[i].Role == model.RoleAI {
				reply = conv.Messages[i]
				break
			}
		}
	}
	if reply != nil {
		ex.ReplyChars = len(reply.Content)
		ex.Failed = strings.HasPrefix(reply.Content, "Error: ")
		if reply.ModelID != "" {
			ex.ModelID = reply.ModelID
		}
	} else {
		ex.Failed = true
	}

	if err := m.usage.Record(ex); err != nil {
		log.Printf("TELEMETRY: could not record usage: %v", err)
	}
}

// =============================================================================
// OVERLAY KEYS
// =============================================================================

func (m *Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Cancel) {
		m.overlay = overlayNone
		return m, nil
	}

	switch m.overlay {
	case overlayHelp:
		// Any other key closes help
		m.overlay = overlayNone
		return m, nil

	case overlayConversations:
		return m.handleConversationPickerKey(msg)

	case overlayModels:
		return m.handleModelPickerKey(msg)
	}
	return m, nil
}

func (m *Model) handleConversationPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convs := m.store.Snapshots()

	switch msg.String() {
	case "up", "k":
		if m.pickerIndex > 0 {
			m.pickerIndex--
		}
	case "down", "j":
		if m.pickerIndex < len(convs)-1 {
			m.pickerIndex++
		}
	case "n":
		m.overlay = overlayNone
		if _, err := m.ctrl.NewConversation(); err != nil {
			return m.setStatus(fmt.Sprintf("Could not create conversation: %v", err), true)
		}
		m.refreshViewport()
	case "d":
		if m.pickerIndex < len(convs) {
			if err := m.ctrl.DeleteConversation(convs[m.pickerIndex].ID); err != nil {
				return m.setStatus(fmt.Sprintf("Delete failed: %v", err), true)
			}
			if m.pickerIndex > 0 {
				m.pickerIndex--
			}
			m.refreshViewport()
		}
	case "enter":
		m.overlay = overlayNone
		if m.pickerIndex < len(convs) {
			if err := m.ctrl.SelectConversation(convs[m.pickerIndex].ID); err != nil {
				return m.setStatus(fmt.Sprintf("Select failed: %v", err), true)
			}
			m.refreshViewport()
		}
	}
	return m, nil
}

func (m *Model) handleModelPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.pickerIndex > 0 {
			m.pickerIndex--
		}
	case "down", "j":
		if m.pickerIndex < len(model.SupportedModels)-1 {
			m.pickerIndex++
		}
	case "enter":
		m.overlay = overlayNone
		if m.pickerIndex < len(model.SupportedModels) {
			id := model.SupportedModels[m.pickerIndex].ID
			if err := m.ctrl.SelectModel(id); err != nil {
				return m.setStatus(fmt.Sprintf("Model switch failed: %v", err), true)
			}
			return m.setStatus("Model: "+model.ModelDisplayName(id), false)
		}
	}
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// setStatus shows a temporary status line.
func (m *Model) setStatus(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.statusMsg = text
	m.statusIsErr = isErr
	return m, tea.Tick(statusDisplayTime, func(time.Time) tea.Msg {
		return statusExpiredMsg{}
	})
}

// activeConversationIndex finds the active conversation in the sorted list.
func (m *Model) activeConversationIndex() int {
	activeID := m.store.ActiveID()
	for i, conv := range m.store.Snapshots() {
		if conv.ID == activeID {
			return i
		}
	}
	return 0
}

// selectedModelIndex finds the selected model in the supported list.
func (m *Model) selectedModelIndex() int {
	selected := m.store.SelectedModel()
	for i, info := range model.SupportedModels {
		if info.ID == selected {
			return i
		}
	}
	return 0
}
