// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui hosts the terminal user interface. The bubbletea program
// lives in the chat subpackage; shared building blocks live under
// components and styles.
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	chatctrl "github.com/jeranaias/routerchat/internal/chat"
	"github.com/jeranaias/routerchat/internal/config"
	"github.com/jeranaias/routerchat/internal/telemetry"
	uichat "github.com/jeranaias/routerchat/internal/ui/chat"
)

// Run starts the full-screen chat interface and blocks until the user
// quits. usage may be nil when telemetry is disabled.
func Run(ctrl *chatctrl.Controller, cfg *config.Config, usage *telemetry.Store) error {
	m := uichat.New(ctrl, cfg, usage)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interface error: %w", err)
	}
	return nil
}
