package inbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expertly/inbox/internal/model"
)

// ConversationWriter is the slice of the REST API the tracker needs
// for its write-back operation.
type ConversationWriter interface {
	MarkConversationRead(ctx context.Context, conversationID string) error
}

// ConversationTracker maps conversation identifiers to their unread
// count and preview metadata. Push events only ever carry a bare
// recomputed count; previews change exclusively through snapshot
// reconciliation, which keeps the client free of a second message
// cache.
type ConversationTracker struct {
	writer   ConversationWriter
	onChange func()

	mu      sync.Mutex
	convs   map[string]model.Conversation
	pending map[string]bool
}

// NewConversationTracker creates an empty tracker writing
// acknowledgements through w. onChange, if non-nil, runs after every
// mutation, including the optimistic half of an in-flight write.
func NewConversationTracker(w ConversationWriter, onChange func()) *ConversationTracker {
	return &ConversationTracker{
		writer:   w,
		onChange: onChange,
		convs:    make(map[string]model.Conversation),
		pending:  make(map[string]bool),
	}
}

// changed invokes the mutation hook outside the tracker lock.
func (t *ConversationTracker) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}

// ApplyDelta records the authoritative current unread count for one
// conversation (last value wins, never an increment). Counts for
// conversations with an in-flight mark-read are left untouched until
// the write settles. A delta for an unknown conversation creates a
// placeholder entry; its preview arrives with the next snapshot.
func (t *ConversationTracker) ApplyDelta(conversationID string, newCount int) {
	if conversationID == "" || newCount < 0 {
		return
	}

	t.mu.Lock()
	defer t.changed()
	defer t.mu.Unlock()

	if t.pending[conversationID] {
		return
	}

	conv, ok := t.convs[conversationID]
	if !ok {
		conv = model.Conversation{
			ID:            conversationID,
			LastMessageAt: time.Now(),
		}
	}
	conv.UnreadCount = newCount
	t.convs[conversationID] = conv
}

// ReconcileSnapshot replaces the whole map from a full conversation
// listing. Conversations with an in-flight mark-read keep their
// optimistic zero count.
func (t *ConversationTracker) ReconcileSnapshot(list []model.Conversation) {
	t.mu.Lock()
	defer t.changed()
	defer t.mu.Unlock()

	next := make(map[string]model.Conversation, len(list))
	for _, conv := range list {
		if conv.Validate() != nil {
			continue
		}
		if t.pending[conv.ID] {
			conv.UnreadCount = 0
		}
		next[conv.ID] = conv
	}
	t.convs = next
}

// MarkConversationRead optimistically zeroes the count, records the
// pending write, and confirms with the server. On failure the previous
// count is restored and the error returned for display.
func (t *ConversationTracker) MarkConversationRead(ctx context.Context, conversationID string) error {
	t.mu.Lock()
	conv, ok := t.convs[conversationID]
	if !ok || conv.UnreadCount == 0 {
		t.mu.Unlock()
		return nil
	}
	prev := conv.UnreadCount
	conv.UnreadCount = 0
	t.convs[conversationID] = conv
	t.pending[conversationID] = true
	t.mu.Unlock()
	t.changed()

	err := t.writer.MarkConversationRead(ctx, conversationID)

	t.mu.Lock()
	defer t.changed()
	defer t.mu.Unlock()
	delete(t.pending, conversationID)

	if err != nil {
		if conv, ok := t.convs[conversationID]; ok && conv.UnreadCount == 0 {
			conv.UnreadCount = prev
			t.convs[conversationID] = conv
		}
		return fmt.Errorf("marking conversation read: %w", err)
	}
	return nil
}

// Unread returns a copy of the conversations that currently have
// unread messages.
func (t *ConversationTracker) Unread() []model.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []model.Conversation
	for _, conv := range t.convs {
		if conv.UnreadCount > 0 {
			out = append(out, conv)
		}
	}
	return out
}

// List returns a copy of every tracked conversation.
func (t *ConversationTracker) List() []model.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.Conversation, 0, len(t.convs))
	for _, conv := range t.convs {
		out = append(out, conv)
	}
	return out
}

// UnreadTotal returns the sum of all conversation unread counts.
func (t *ConversationTracker) UnreadTotal() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, conv := range t.convs {
		total += conv.UnreadCount
	}
	return total
}

// Count returns the unread count for one conversation (0 if unknown).
func (t *ConversationTracker) Count(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.convs[conversationID].UnreadCount
}
