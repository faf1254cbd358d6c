package inbox

import (
	"sort"
	"sync"

	"github.com/expertly/inbox/internal/model"
)

// MergeFeed projects unread notifications and unread conversations
// into one list sorted by descending display timestamp, ties broken by
// identifier. The projection is pure: it allocates a fresh slice and
// never mutates its inputs.
func MergeFeed(notifications []model.Notification, conversations []model.Conversation) []model.FeedEntry {
	entries := make([]model.FeedEntry, 0, len(notifications)+len(conversations))

	for _, n := range notifications {
		if n.Read {
			continue
		}
		entries = append(entries, model.FeedEntry{
			Source:    model.FeedSourceNotification,
			ID:        n.ID,
			Title:     n.Title,
			Preview:   n.Message,
			Type:      n.Type,
			Target:    n.ActionURL,
			Timestamp: n.CreatedAt,
		})
	}

	for _, c := range conversations {
		if c.UnreadCount <= 0 {
			continue
		}
		entries = append(entries, model.FeedEntry{
			Source:      model.FeedSourceConversation,
			ID:          c.ID,
			Title:       c.ParticipantName,
			Preview:     c.LastMessage,
			Type:        model.NotificationMessage,
			UnreadCount: c.UnreadCount,
			Target:      "/messages/" + c.ID,
			Timestamp:   c.LastMessageAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})

	return entries
}

// FeedMerger combines the two stores into the capped, incrementally
// loadable feed shown in the bell dropdown. The full merged set is
// always held in memory; the limit only moves the visible window.
type FeedMerger struct {
	mu        sync.Mutex
	limit     int
	increment int
}

// NewFeedMerger creates a merger exposing pageSize entries initially
// and growing by increment on demand.
func NewFeedMerger(pageSize, increment int) *FeedMerger {
	if pageSize <= 0 {
		pageSize = 10
	}
	if increment <= 0 {
		increment = pageSize
	}
	return &FeedMerger{limit: pageSize, increment: increment}
}

// Take returns at most the current limit of merged entries.
func (m *FeedMerger) Take(entries []model.FeedEntry) []model.FeedEntry {
	m.mu.Lock()
	limit := m.limit
	m.mu.Unlock()

	if len(entries) <= limit {
		return entries
	}
	return entries[:limit]
}

// Grow raises the visible limit by the configured increment. Called
// when the UI signals it scrolled near the bottom; no fetch happens.
func (m *FeedMerger) Grow() {
	m.mu.Lock()
	m.limit += m.increment
	m.mu.Unlock()
}

// Limit returns the current visible limit.
func (m *FeedMerger) Limit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit
}
