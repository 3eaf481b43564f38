// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the routerchat
// TUI: header, status bar, spinner, message bubbles, and syntax-highlighted
// code blocks.
package components
