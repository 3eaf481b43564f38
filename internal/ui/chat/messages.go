// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// messages.go - Bubble Tea message types used by the chat interface.

package chat

import "time"

// =============================================================================
// STORE MESSAGES
// =============================================================================

// StoreChangedMsg signals that the conversation store changed: a message
// was appended, a delta arrived, or a conversation was added or removed.
type StoreChangedMsg struct{}

// SubmitDoneMsg signals that a submission finished. Err carries validation
// errors only; transport failures surface as error messages in the
// conversation itself.
type SubmitDoneMsg struct {
	Err error
}

// =============================================================================
// RENDER MESSAGES
// =============================================================================

// StreamTickMsg drives throttled re-rendering while a response streams.
type StreamTickMsg struct {
	Time time.Time
}

// statusExpiredMsg clears a temporary status message.
type statusExpiredMsg struct{}

// =============================================================================
// EXPORT MESSAGES
// =============================================================================

// ExportDoneMsg reports the result of a conversation export.
type ExportDoneMsg struct {
	Path string
	Err  error
}
