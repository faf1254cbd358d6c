package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/expertly/inbox/internal/model"
)

// fakeWriter implements NotificationWriter and ConversationWriter with
// scriptable outcomes.
type fakeWriter struct {
	markReadErr    error
	markAllErr     error
	markConvErr    error
	markReadCalls  []string
	markAllCalls   int
	markConvCalls  []string
	markReadEnter  chan string
	markReadResult chan error
}

func (f *fakeWriter) MarkNotificationRead(ctx context.Context, id string) error {
	f.markReadCalls = append(f.markReadCalls, id)
	if f.markReadEnter != nil {
		f.markReadEnter <- id
		return <-f.markReadResult
	}
	return f.markReadErr
}

func (f *fakeWriter) MarkAllNotificationsRead(ctx context.Context) error {
	f.markAllCalls++
	return f.markAllErr
}

func (f *fakeWriter) MarkConversationRead(ctx context.Context, id string) error {
	f.markConvCalls = append(f.markConvCalls, id)
	return f.markConvErr
}

func notif(id string, read bool, at time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.NotificationGeneric,
		Title:     "title " + id,
		Message:   "message " + id,
		Read:      read,
		CreatedAt: at,
	}
}

func TestIngestPushNewItemIncrementsUnread(t *testing.T) {
	s := NewNotificationStore(&fakeWriter{}, nil)

	s.IngestPush(notif("1", false, time.Now()))
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("expected unread count 1, got %d", got)
	}

	items := s.Items()
	if len(items) != 1 || items[0].ID != "1" {
		t.Fatalf("expected single item 1, got %+v", items)
	}
}

func TestIngestPushDuplicateDoesNotChangeCounter(t *testing.T) {
	s := NewNotificationStore(&fakeWriter{}, nil)

	item := notif("1", false, time.Now())
	s.IngestPush(item)
	s.IngestPush(item)

	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("expected unread count 1 after duplicate ingest, got %d", got)
	}
	if got := len(s.Items()); got != 1 {
		t.Fatalf("expected 1 item after duplicate ingest, got %d", got)
	}
}

func TestIngestPushPrependsNewest(t *testing.T) {
	s := NewNotificationStore(&fakeWriter{}, nil)

	s.IngestPush(notif("old", false, time.Now().Add(-time.Hour)))
	s.IngestPush(notif("new", false, time.Now()))

	items := s.Items()
	if items[0].ID != "new" || items[1].ID != "old" {
		t.Fatalf("expected newest first, got %+v", items)
	}
}

func TestIngestPushNeverRevertsConfirmedRead(t *testing.T) {
	s := NewNotificationStore(&fakeWriter{}, nil)

	s.IngestPush(notif("1", true, time.Now()))
	s.IngestPush(notif("1", false, time.Now()))

	if items := s.Items(); !items[0].Read {
		t.Fatalf("expected read flag to stay true on redelivery")
	}
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("expected unread count 0, got %d", got)
	}
}

func TestIngestPushUnknownTypeNormalized(t *testing.T) {
	s := NewNotificationStore(&fakeWriter{}, nil)

	item := notif("1", false, time.Now())
	item.Type = "promo-blast"
	s.IngestPush(item)

	if got := s.Items()[0].Type; got != model.NotificationGeneric {
		t.Fatalf("expected generic type for unknown tag, got %q", got)
	}
}

func TestReconcileSnapshotReplacesContents(t *testing.T) {
	s := NewNotificationStore(&fakeWriter{}, nil)
	s.IngestPush(notif("stale", false, time.Now()))

	snapshot := []model.Notification{
		notif("a", false, time.Now()),
		notif("b", true, time.Now().Add(-time.Minute)),
	}
	s.ReconcileSnapshot(snapshot, 1)

	items := s.Items()
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("expected snapshot contents, got %+v", items)
	}
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("expected unread count 1 from snapshot, got %d", got)
	}
}

func TestMarkReadSuccess(t *testing.T) {
	w := &fakeWriter{}
	s := NewNotificationStore(w, nil)
	s.IngestPush(notif("1", false, time.Now()))

	if err := s.MarkRead(context.Background(), "1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	if !s.Items()[0].Read {
		t.Fatalf("expected item marked read")
	}
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("expected unread count 0, got %d", got)
	}
	if got := s.PendingCount(); got != 0 {
		t.Fatalf("expected pending set cleared, got %d entries", got)
	}
	if len(w.markReadCalls) != 1 || w.markReadCalls[0] != "1" {
		t.Fatalf("expected one mark-read call for id 1, got %v", w.markReadCalls)
	}
}

func TestMarkReadFailureRollsBack(t *testing.T) {
	w := &fakeWriter{markReadErr: errors.New("boom")}
	s := NewNotificationStore(w, nil)
	s.IngestPush(notif("1", false, time.Now()))

	if err := s.MarkRead(context.Background(), "1"); err == nil {
		t.Fatalf("expected error from failed mark read")
	}

	if s.Items()[0].Read {
		t.Fatalf("expected read flag rolled back")
	}
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("expected unread count restored to 1, got %d", got)
	}
	if got := s.PendingCount(); got != 0 {
		t.Fatalf("expected pending set cleared after failure, got %d entries", got)
	}
}

func TestMarkReadAlreadyReadIsNoop(t *testing.T) {
	w := &fakeWriter{}
	s := NewNotificationStore(w, nil)
	s.IngestPush(notif("1", true, time.Now()))

	if err := s.MarkRead(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.markReadCalls) != 0 {
		t.Fatalf("expected no write for an already-read item, got %v", w.markReadCalls)
	}
}

// A snapshot that still lists an id as unread must not flip it back
// while its mark-read write is in flight.
func TestReconcileRespectsPendingMarkRead(t *testing.T) {
	w := &fakeWriter{
		markReadEnter:  make(chan string),
		markReadResult: make(chan error),
	}
	s := NewNotificationStore(w, nil)
	s.IngestPush(notif("10", false, time.Now()))

	done := make(chan error, 1)
	go func() {
		done <- s.MarkRead(context.Background(), "10")
	}()

	// Wait until the optimistic half applied and the write is in flight.
	<-w.markReadEnter

	snapshot := []model.Notification{notif("10", false, time.Now())}
	s.ReconcileSnapshot(snapshot, 1)

	if !s.Items()[0].Read {
		t.Fatalf("expected pending optimistic read flag to survive reconciliation")
	}
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("expected unread count 0 while pending, got %d", got)
	}

	w.markReadResult <- nil
	if err := <-done; err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if got := s.PendingCount(); got != 0 {
		t.Fatalf("expected pending cleared after settle, got %d", got)
	}

	// Once acknowledged, a later snapshot is accepted as server truth.
	s.ReconcileSnapshot(snapshot, 1)
	if s.Items()[0].Read {
		t.Fatalf("expected settled snapshot to win after acknowledgement")
	}
}

func TestMarkAllReadIdempotent(t *testing.T) {
	w := &fakeWriter{}
	s := NewNotificationStore(w, nil)
	s.IngestPush(notif("1", false, time.Now()))
	s.IngestPush(notif("2", false, time.Now()))

	if err := s.MarkAllRead(context.Background()); err != nil {
		t.Fatalf("mark all read failed: %v", err)
	}
	first := s.Items()
	firstCount := s.UnreadCount()

	if err := s.MarkAllRead(context.Background()); err != nil {
		t.Fatalf("second mark all read failed: %v", err)
	}

	if got := s.UnreadCount(); got != firstCount || got != 0 {
		t.Fatalf("expected unread count 0 after both passes, got %d", got)
	}
	if got := s.UnreadItems(); len(got) != 0 {
		t.Fatalf("expected no unread items after mark all read, got %d", len(got))
	}
	second := s.Items()
	if len(first) != len(second) {
		t.Fatalf("expected identical state after second pass")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("state diverged after second mark-all-read: %+v vs %+v", first[i], second[i])
		}
	}
}

func TestDismissRemovesLocallyOnly(t *testing.T) {
	s := NewNotificationStore(&fakeWriter{}, nil)
	s.IngestPush(notif("1", false, time.Now()))

	s.Dismiss("1")
	if got := len(s.Items()); got != 0 {
		t.Fatalf("expected empty store after dismiss, got %d items", got)
	}
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("expected unread count 0 after dismissing unread item, got %d", got)
	}

	// A later snapshot resurrects the item: nothing was deleted server-side.
	s.ReconcileSnapshot([]model.Notification{notif("1", false, time.Now())}, 1)
	if got := len(s.Items()); got != 1 {
		t.Fatalf("expected dismissed item back after reconciliation, got %d items", got)
	}
}
