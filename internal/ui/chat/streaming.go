// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// streaming.go - Render throttling for smooth streaming display.
//
// Deltas can arrive far faster than a terminal can usefully repaint.
// The RenderGate coalesces store-change notifications and caps viewport
// rebuilds at a fixed frame rate, so streaming stays smooth without
// burning CPU on redundant renders.

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// RENDER GATE
// =============================================================================

// RenderGate coalesces change notifications into frame-rate-capped renders.
//
// Thread-safety: Mark is called from the streaming goroutine while
// ShouldRender runs in the main Bubble Tea loop, so all state is
// mutex-protected.
type RenderGate struct {
	mu         sync.Mutex
	dirty      bool
	lastRender time.Time

	minInterval time.Duration
}

// NewRenderGate creates a gate capped at the given frame rate.
// Rates outside 1..60 fall back to 30fps.
func NewRenderGate(maxFPS int) *RenderGate {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &RenderGate{
		minInterval: time.Duration(1000/maxFPS) * time.Millisecond,
	}
}

// Mark records that the underlying data changed.
func (g *RenderGate) Mark() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = true
}

// ShouldRender reports whether a render is due: data changed and the
// frame budget allows it. When it returns true the gate resets.
func (g *RenderGate) ShouldRender() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.dirty {
		return false
	}
	if time.Since(g.lastRender) < g.minInterval {
		return false
	}

	g.dirty = false
	g.lastRender = time.Now()
	return true
}

// Pending reports whether a change is waiting for the next frame.
func (g *RenderGate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dirty
}

// Force marks the gate clean and renders regardless of the frame budget.
// Use when a stream completes so the final content always lands.
func (g *RenderGate) Force() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = false
	g.lastRender = time.Now()
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd creates a tea.Cmd that sends StreamTickMsg at ~30fps.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
