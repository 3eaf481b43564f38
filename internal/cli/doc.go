// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the plain-terminal REPL for routerchat.
//
// The REPL drives the chat controller over the relay without the
// full-screen TUI. It supports line editing with history, slash
// commands for conversation and model management, export, and usage
// statistics. Output adapts to the terminal: markdown rendering on a
// TTY, raw token streaming when piped.
package cli
