// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen Bubble Tea interface for
// routerchat.
//
// The interface is a single chat view with overlay pickers for
// conversations and models. State lives in the controller's store; the
// view subscribes to store changes through a channel and re-renders at a
// capped frame rate while a response streams in.
package chat
