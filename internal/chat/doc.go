// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state and the
// controller that drives submissions.
//
// The Store is a thread-safe container for the conversation list, the
// active selection, the chosen model, and the in-flight flag. The
// Controller layers behavior on top: validation, persistence
// write-through, relay calls, and folding streamed deltas back into
// the conversation they started in.
package chat
