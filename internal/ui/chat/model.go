// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	chatctrl "github.com/jeranaias/routerchat/internal/chat"
	"github.com/jeranaias/routerchat/internal/config"
	"github.com/jeranaias/routerchat/internal/telemetry"
	"github.com/jeranaias/routerchat/internal/ui/components"
	"github.com/jeranaias/routerchat/internal/ui/styles"
)

// =============================================================================
// VIEW STATE
// =============================================================================

// overlay identifies which overlay, if any, sits on top of the chat view.
type overlay int

const (
	overlayNone overlay = iota
	overlayConversations
	overlayModels
	overlayHelp
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat interface.
type Model struct {
	// Controller and state store
	ctrl  *chatctrl.Controller
	store *chatctrl.Store

	// Store change notifications (pushed from the controller's
	// OnChange hook, drained by waitForChangeCmd)
	changes chan struct{}

	// Render throttling while streaming
	gate *RenderGate

	// Configuration
	cfg *config.Config

	// Usage stats, nil when telemetry is disabled
	usage *telemetry.Store

	// In-flight submission bookkeeping for usage recording
	submitStart   time.Time
	pendingPrompt int

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spinner  components.Spinner

	// Key bindings
	keyMap KeyMap

	// Overlay state
	overlay     overlay
	pickerIndex int

	// Cancel function for the in-flight submission
	cancelSubmit context.CancelFunc

	// Temporary status line (export results, errors)
	statusMsg   string
	statusIsErr bool

	// True until the first WindowSizeMsg arrives
	sizing bool
}

// New creates the chat interface around a loaded controller. usage may
// be nil when telemetry is disabled.
func New(ctrl *chatctrl.Controller, cfg *config.Config, usage *telemetry.Store) *Model {
	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.SetHeight(3)
	input.CharLimit = 0
	input.ShowLineNumbers = false
	input.Focus()

	m := &Model{
		ctrl:    ctrl,
		store:   ctrl.Store(),
		changes: make(chan struct{}, 1),
		gate:    NewRenderGate(30),
		cfg:     cfg,
		usage:   usage,
		theme:   styles.NewTheme(),
		input:   input,
		spinner: components.NewStreamingSpinner(),
		keyMap:  DefaultKeyMap(),
		sizing:  true,
	}

	components.SetHighlightStyle(cfg.Export.HighlightTheme)

	// Coalescing push: a full channel already means a refresh is due.
	m.store.SetOnChange(func() {
		m.gate.Mark()
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})

	return m
}

// Init starts the store listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChangeCmd(),
		textarea.Blink,
	)
}

// waitForChangeCmd blocks until the store reports a change.
func (m *Model) waitForChangeCmd() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return StoreChangedMsg{}
	}
}

// submitCmd sends the current input through the controller.
// The controller streams the reply into the store; per-delta updates
// arrive through the change channel.
func (m *Model) submitCmd(text string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelSubmit = cancel

	return func() tea.Msg {
		err := m.ctrl.Submit(ctx, text)
		return SubmitDoneMsg{Err: err}
	}
}

// exportCmd exports the active conversation to markdown.
func (m *Model) exportCmd() tea.Cmd {
	snapshot := m.store.ActiveSnapshot()
	if snapshot == nil || snapshot.IsEmpty() {
		return func() tea.Msg {
			return ExportDoneMsg{Err: errNothingToExport}
		}
	}

	cfg := m.cfg
	return func() tea.Msg {
		opts := exportOptions(cfg)
		path, err := exportMarkdown(snapshot, opts)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// =============================================================================
// VIEWPORT CONTENT
// =============================================================================

// renderConversation builds the viewport content for the active
// conversation. It reads a deep-copy snapshot: the streaming goroutine
// mutates the live messages under the store lock, so rendering must
// never walk those objects directly.
func (m *Model) renderConversation() string {
	conv := m.store.ActiveSnapshot()
	if conv == nil || conv.IsEmpty() {
		return m.renderWelcome()
	}

	var sb strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(components.RenderMessage(msg, m.viewport.Width))
	}
	return sb.String()
}

// renderWelcome fills the empty viewport with a short hint.
func (m *Model) renderWelcome() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(m.theme.PickerTitle.Render("Welcome to routerchat"))
	sb.WriteString("\n\n")
	sb.WriteString(m.theme.Info.Render("  Type a message below and press Enter to start."))
	sb.WriteString("\n\n")
	sb.WriteString(m.theme.Muted.Render("  C-o conversations  C-p models  C-n new  F1 help"))
	return sb.String()
}

// refreshViewport rebuilds the viewport and keeps it scrolled to the bottom
// while a response streams in.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom || m.store.IsResponding() {
		m.viewport.GotoBottom()
	}
}
