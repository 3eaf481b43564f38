// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/routerchat/internal/model"
	"github.com/jeranaias/routerchat/internal/relay"
	"github.com/jeranaias/routerchat/internal/storage"
	"github.com/jeranaias/routerchat/internal/stream"
)

// =============================================================================
// CONTROLLER ERRORS
// =============================================================================

var (
	// ErrBusy indicates a submission is already in flight.
	ErrBusy = errors.New("a response is already in progress")

	// ErrEmptyMessage indicates the submitted text was empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrNoModelSelected indicates no model has been selected.
	ErrNoModelSelected = errors.New("no model selected")

	// ErrNoActiveConversation indicates there is no active conversation.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrConversationNotFound indicates the referenced conversation does
	// not exist.
	ErrConversationNotFound = errors.New("conversation not found")
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller coordinates the chat flow: it validates submissions,
// appends messages to the active conversation, talks to the relay,
// folds streamed deltas back into the originating conversation, and
// writes every structural change through to disk.
type Controller struct {
	store   *Store
	persist *storage.ConversationStore
	relay   *relay.Client
}

// NewController wires a controller to its state, persistence, and relay.
func NewController(store *Store, persist *storage.ConversationStore, relayClient *relay.Client) *Controller {
	return &Controller{
		store:   store,
		persist: persist,
		relay:   relayClient,
	}
}

// Store returns the underlying state container.
func (c *Controller) Store() *Store {
	return c.store
}

// =============================================================================
// STARTUP
// =============================================================================

// Load restores state from disk: the conversation list, the active
// selection, and the model choice.
//
// When no conversations exist, a fresh default one is created. The
// active conversation is the most recently updated. The model comes
// from the active conversation's last AI message when present, then
// the persisted last selection, then the default.
func (c *Controller) Load() error {
	convs := c.persist.LoadConversations()
	c.store.Replace(convs)

	if c.store.Count() == 0 {
		if _, err := c.NewConversation(); err != nil {
			return err
		}
	} else if recent := c.store.MostRecent(); recent != nil {
		c.store.SetActive(recent.ID)
	}

	c.store.SetSelectedModel(c.resolveModel())
	return nil
}

// resolveModel picks the startup model.
func (c *Controller) resolveModel() string {
	if active := c.store.Active(); active != nil {
		if id := active.LastModelID(); id != "" {
			return id
		}
	}
	if id, ok := c.persist.LoadLastSelectedModelID(); ok {
		return id
	}
	return model.DefaultModelID
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// NewConversation creates a conversation with the next default name,
// persists it, and makes it active.
func (c *Controller) NewConversation() (*model.Conversation, error) {
	name := c.store.NextDefaultName()
	conv := model.NewConversation(name)

	c.store.Add(conv)
	c.store.SetActive(conv.ID)

	if err := c.persist.SaveConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SelectConversation makes the conversation with the given ID active.
func (c *Controller) SelectConversation(id string) error {
	if !c.store.SetActive(id) {
		return ErrConversationNotFound
	}
	return nil
}

// RenameConversation renames a conversation and persists the change.
func (c *Controller) RenameConversation(id, name string) error {
	if !c.store.Rename(id, name) {
		return ErrConversationNotFound
	}
	return c.persist.UpdateConversation(c.store.Snapshot(id))
}

// DeleteConversation removes a conversation. If it was active, the
// most recently updated remaining conversation is promoted; if none
// remain, a fresh default conversation takes its place.
func (c *Controller) DeleteConversation(id string) error {
	wasActive := c.store.ActiveID() == id

	if !c.store.Remove(id) {
		// Deleting an unknown conversation is a silent no-op.
		return nil
	}

	if err := c.persist.DeleteConversation(id); err != nil {
		return err
	}

	if !wasActive {
		return nil
	}

	if next := c.store.MostRecent(); next != nil {
		c.store.SetActive(next.ID)
		return nil
	}

	_, err := c.NewConversation()
	return err
}

// SelectModel updates the selected model and persists the choice.
func (c *Controller) SelectModel(id string) error {
	c.store.SetSelectedModel(id)
	return c.persist.SaveLastSelectedModelID(id)
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit sends the user's text to the model and streams the reply into
// the active conversation.
//
// Validation happens before anything touches the network or disk: the
// trimmed text must be non-empty, a model must be selected, a
// conversation must be active, and no other submission may be running.
//
// The user message is appended and persisted before the request goes
// out, so it survives even if the relay is unreachable. Transport and
// upstream failures are surfaced as an AI error message in the
// conversation rather than returned; Submit only returns an error when
// validation fails.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	modelID := c.store.SelectedModel()
	if modelID == "" {
		return ErrNoModelSelected
	}

	convID := c.store.ActiveID()
	if convID == "" {
		return ErrNoActiveConversation
	}

	if !c.store.beginResponding() {
		return ErrBusy
	}
	defer c.store.endResponding()

	userMsg := model.NewUserMessage(text, modelID)
	if !c.store.AppendMessage(convID, userMsg) {
		return ErrNoActiveConversation
	}

	// Persistence and the wire history both read from a point-in-time
	// copy; the live conversation is only touched under the store lock.
	snapshot := c.store.Snapshot(convID)
	if err := c.persist.UpdateConversation(snapshot); err != nil {
		log.Printf("CHAT: failed to persist user message: %v", err)
	}

	history := buildHistory(snapshot)

	body, err := c.relay.SendChat(ctx, history, modelID)
	if err != nil {
		c.appendError(convID, err, modelID)
		return nil
	}
	defer body.Close()

	c.streamReply(ctx, body, convID, modelID)
	return nil
}

// streamReply drives the SSE consumer, folding each delta into the
// originating conversation. The AI message is created on the first
// delta; its model comes from the delta when present, otherwise the
// selected model.
//
// Deltas keep landing in the conversation they started in, even if
// the user switches the active conversation mid-stream.
func (c *Controller) streamReply(ctx context.Context, body io.Reader, convID, modelID string) {
	msgID := uuid.NewString()

	started := false

	onDelta := func(d stream.Delta) {
		if !started {
			started = true
			c.store.StartAIMessage(convID, d.MessageID, modelID)
			c.store.setPhase(PhaseStreaming)
		}
		c.store.ApplyDelta(convID, d.MessageID, d.Content, d.ModelID)
		c.persistSnapshot(convID)
	}

	onComplete := func() {
		if started {
			c.store.FinalizeMessage(convID, msgID)
		}
		c.persistSnapshot(convID)
	}

	if err := stream.Consume(ctx, body, msgID, onDelta, onComplete); err != nil {
		c.appendError(convID, err, modelID)
	}
}

// appendError records a failure as an AI message so the user sees it
// in the conversation, and persists it.
func (c *Controller) appendError(convID string, err error, modelID string) {
	log.Printf("CHAT: submission failed: %v", err)

	errMsg := model.NewAIError("Error: "+err.Error(), modelID)
	c.store.AppendMessage(convID, errMsg)
	c.persistSnapshot(convID)
}

// persistSnapshot writes the conversation through to disk from a
// point-in-time copy.
func (c *Controller) persistSnapshot(convID string) {
	snapshot := c.store.Snapshot(convID)
	if snapshot == nil {
		return
	}
	if err := c.persist.UpdateConversation(snapshot); err != nil {
		log.Printf("CHAT: failed to persist conversation: %v", err)
	}
}

// buildHistory converts a conversation into the relay's wire history.
func buildHistory(conv *model.Conversation) []relay.HistoryMessage {
	history := make([]relay.HistoryMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		history = append(history, relay.HistoryMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return history
}
