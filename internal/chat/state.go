// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// SUBMISSION PHASES
// =============================================================================

// Phase tracks where an in-flight submission is in its lifecycle.
type Phase int

const (
	// PhaseIdle means no submission is in flight.
	PhaseIdle Phase = iota

	// PhaseSending means the request has been posted but no token
	// has arrived yet.
	PhaseSending

	// PhaseStreaming means at least one delta has been received.
	PhaseStreaming

	// PhaseSettled means the submission finished, successfully or not.
	PhaseSettled
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the in-memory chat state: the conversation list, the
// active conversation, the selected model, and the in-flight flag.
//
// All methods are safe for concurrent use. Persistence is not Store's
// job; the Controller writes through to disk after mutating it.
type Store struct {
	mu sync.Mutex

	conversations []*model.Conversation
	activeID      string
	selectedModel string

	responding bool
	phase      Phase

	// onChange is invoked (outside the lock) after any mutation, so a
	// UI can re-render. May be nil.
	onChange func()
}

// NewStore creates an empty chat store.
func NewStore() *Store {
	return &Store{phase: PhaseIdle}
}

// SetOnChange registers the change callback.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// notify fires the change callback. Must be called without the lock held.
func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// =============================================================================
// CONVERSATION ACCESS
// =============================================================================

// Snapshots returns deep copies of every conversation, most recently
// updated first. Renderers and persistence work from snapshots; the
// live objects are only ever touched under the store lock, so a
// snapshot never observes a half-applied delta.
func (s *Store) Snapshots() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	model.SortByUpdatedAt(out)
	return out
}

// Snapshot returns a deep copy of the conversation with the given ID,
// or nil when it does not exist.
func (s *Store) Snapshot(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return nil
	}
	return conv.Clone()
}

// ActiveSnapshot returns a deep copy of the active conversation, or nil
// when none is selected.
func (s *Store) ActiveSnapshot() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(s.activeID)
	if conv == nil {
		return nil
	}
	return conv.Clone()
}

// NextDefaultName computes the default name for a new conversation from
// the current list.
func (s *Store) NextDefaultName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.NextDefaultName(s.conversations)
}

// findLocked looks up a conversation by ID. Caller holds the lock.
func (s *Store) findLocked(id string) *model.Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Replace swaps in a new conversation list, typically after loading
// from disk. The active selection is preserved when the conversation
// still exists, otherwise cleared.
func (s *Store) Replace(convs []*model.Conversation) {
	s.mu.Lock()
	s.conversations = convs
	if s.findLocked(s.activeID) == nil {
		s.activeID = ""
	}
	s.mu.Unlock()
	s.notify()
}

// Add inserts a conversation into the store.
func (s *Store) Add(conv *model.Conversation) {
	s.mu.Lock()
	s.conversations = append(s.conversations, conv)
	s.mu.Unlock()
	s.notify()
}

// Remove deletes the conversation with the given ID. Removing an
// unknown ID is a no-op. Returns true if something was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	removed := false
	kept := s.conversations[:0]
	for _, c := range s.conversations {
		if c.ID == id {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	s.conversations = kept
	if s.activeID == id {
		s.activeID = ""
	}
	s.mu.Unlock()

	if removed {
		s.notify()
	}
	return removed
}

// Count returns the number of conversations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// =============================================================================
// MESSAGE MUTATION
// =============================================================================

// Message and conversation content is mutated here, under the store
// lock. The streaming goroutine writes through these methods while the
// UI reads snapshots, so neither side sees the other mid-write.

// AppendMessage adds a message to the conversation with the given ID
// and refreshes its UpdatedAt. Returns false when the conversation does
// not exist.
func (s *Store) AppendMessage(convID string, msg *model.Message) bool {
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return false
	}
	conv.Append(msg)
	s.mu.Unlock()
	s.notify()
	return true
}

// StartAIMessage appends a fresh streaming AI message with the given
// message ID.
func (s *Store) StartAIMessage(convID, msgID, modelID string) bool {
	msg := model.NewAIMessage(modelID)
	msg.ID = msgID
	return s.AppendMessage(convID, msg)
}

// ApplyDelta folds a streamed delta into the identified message and
// refreshes the conversation's UpdatedAt. Returns false when the
// conversation or message is gone (deleted mid-stream).
func (s *Store) ApplyDelta(convID, msgID, content, modelID string) bool {
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return false
	}
	msg := conv.MessageByID(msgID)
	if msg == nil {
		s.mu.Unlock()
		return false
	}
	msg.AppendDelta(content, modelID)
	conv.Touch()
	s.mu.Unlock()
	s.notify()
	return true
}

// FinalizeMessage marks a streaming message as complete.
func (s *Store) FinalizeMessage(convID, msgID string) {
	s.mu.Lock()
	if conv := s.findLocked(convID); conv != nil {
		if msg := conv.MessageByID(msgID); msg != nil {
			msg.FinalizeStream()
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Rename renames a conversation and refreshes its UpdatedAt. Returns
// false when it does not exist.
func (s *Store) Rename(convID, name string) bool {
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return false
	}
	conv.Rename(name)
	s.mu.Unlock()
	s.notify()
	return true
}

// =============================================================================
// ACTIVE CONVERSATION
// =============================================================================

// Active returns the live active conversation, or nil when none is
// selected. Callers that can overlap with a streaming submission must
// use ActiveSnapshot instead; the live messages are mutated under the
// store lock while a response streams in.
func (s *Store) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(s.activeID)
}

// ActiveID returns the active conversation ID.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetActive selects the conversation with the given ID. Returns false
// if no such conversation exists.
func (s *Store) SetActive(id string) bool {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return false
	}
	s.activeID = id
	s.mu.Unlock()
	s.notify()
	return true
}

// MostRecent returns the conversation with the latest UpdatedAt, or nil.
func (s *Store) MostRecent() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *model.Conversation
	for _, c := range s.conversations {
		if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	return best
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// SelectedModel returns the currently selected model ID.
func (s *Store) SelectedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedModel
}

// SetSelectedModel updates the selected model ID.
func (s *Store) SetSelectedModel(id string) {
	s.mu.Lock()
	s.selectedModel = id
	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// IN-FLIGHT TRACKING
// =============================================================================

// IsResponding reports whether a submission is in flight.
func (s *Store) IsResponding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responding
}

// beginResponding atomically claims the in-flight slot. Returns false
// if a submission is already running.
func (s *Store) beginResponding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responding {
		return false
	}
	s.responding = true
	s.phase = PhaseSending
	return true
}

// endResponding releases the in-flight slot and settles the phase.
func (s *Store) endResponding() {
	s.mu.Lock()
	s.responding = false
	s.phase = PhaseSettled
	s.mu.Unlock()
	s.notify()
}

// Phase returns the current submission phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// setPhase transitions the submission phase.
func (s *Store) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	s.notify()
}
