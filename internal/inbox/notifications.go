package inbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/expertly/inbox/internal/model"
)

// NotificationWriter is the slice of the REST API the notification
// store needs for its write-back operations.
type NotificationWriter interface {
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// NotificationStore holds the ordered notification list and its
// running unread counter. Items arrive by push or by snapshot; drift
// between the two is corrected by ReconcileSnapshot, with the
// pending-acknowledgement set protecting in-flight optimistic writes
// from being overwritten.
type NotificationStore struct {
	writer   NotificationWriter
	onChange func()

	mu      sync.Mutex
	items   []model.Notification
	unread  int
	pending map[string]bool
}

// NewNotificationStore creates an empty store writing acknowledgements
// through w. onChange, if non-nil, runs after every mutation,
// including the optimistic half of an in-flight write.
func NewNotificationStore(w NotificationWriter, onChange func()) *NotificationStore {
	return &NotificationStore{
		writer:   w,
		onChange: onChange,
		pending:  make(map[string]bool),
	}
}

// changed invokes the mutation hook outside the store lock.
func (s *NotificationStore) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// IngestPush merges one pushed notification. A known identifier is
// replaced in place, so redelivery is idempotent and never bumps the
// unread counter twice; a new item is prepended.
func (s *NotificationStore) IngestPush(item model.Notification) {
	item.NormalizeType()

	s.mu.Lock()
	defer s.changed()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != item.ID {
			continue
		}
		// A confirmed read flag never reverts on replacement.
		if s.items[i].Read && !item.Read {
			item.Read = true
		}
		if !s.items[i].Read && item.Read {
			s.unread--
		}
		s.items[i] = item
		return
	}

	s.items = append([]model.Notification{item}, s.items...)
	if !item.Read {
		s.unread++
	}
}

// ReconcileSnapshot replaces the store contents with an authoritative
// snapshot. Identifiers with an in-flight mark-read keep their
// locally-optimistic read flag until the pending write settles; the
// unread counter is adjusted accordingly.
func (s *NotificationStore) ReconcileSnapshot(items []model.Notification, unreadTotal int) {
	s.mu.Lock()
	defer s.changed()
	defer s.mu.Unlock()

	if unreadTotal < 0 {
		unreadTotal = 0
	}

	local := make(map[string]bool, len(s.pending))
	for i := range s.items {
		if s.pending[s.items[i].ID] {
			local[s.items[i].ID] = s.items[i].Read
		}
	}

	next := make([]model.Notification, len(items))
	copy(next, items)
	for i := range next {
		next[i].NormalizeType()
		if !s.pending[next[i].ID] {
			continue
		}
		read, ok := local[next[i].ID]
		if !ok {
			continue
		}
		if read && !next[i].Read {
			// Snapshot predates the optimistic write; it still
			// counts this item in unreadTotal.
			next[i].Read = true
			unreadTotal--
		}
	}
	if unreadTotal < 0 {
		unreadTotal = 0
	}

	s.items = next
	s.unread = unreadTotal
}

// MarkRead optimistically marks one notification read, records it in
// the pending set, and confirms with the server. On failure the flag
// and counter are rolled back and the error returned for display. The
// pending entry is cleared on both paths so an identifier can never
// stay stuck.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || s.items[idx].Read {
		s.mu.Unlock()
		return nil
	}
	s.items[idx].Read = true
	s.unread--
	s.pending[id] = true
	s.mu.Unlock()
	s.changed()

	err := s.writer.MarkNotificationRead(ctx, id)

	s.mu.Lock()
	defer s.changed()
	defer s.mu.Unlock()
	delete(s.pending, id)

	if err != nil {
		for i := range s.items {
			if s.items[i].ID == id && s.items[i].Read {
				s.items[i].Read = false
				s.unread++
				break
			}
		}
		return fmt.Errorf("marking notification read: %w", err)
	}
	return nil
}

// MarkAllRead optimistically marks everything read and zeroes the
// counter, then confirms with the server. The caller is expected to
// trigger a fresh snapshot fetch on failure to restore ground truth.
func (s *NotificationStore) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()
	s.changed()

	if err := s.writer.MarkAllNotificationsRead(ctx); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Dismiss removes a notification from the client view only. Nothing is
// sent to the server, so the item reappears after the next snapshot
// reconciliation.
func (s *NotificationStore) Dismiss(id string) {
	s.mu.Lock()
	defer s.changed()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].Read {
			s.unread--
		}
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		return
	}
}

// Items returns a copy of the current notification list, newest first.
func (s *NotificationStore) Items() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadItems returns a copy of only the unread notifications.
func (s *NotificationStore) UnreadItems() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Notification
	for _, n := range s.items {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns the running unread counter.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// PendingCount reports how many mark-read writes are in flight.
func (s *NotificationStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
