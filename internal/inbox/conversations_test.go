package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/expertly/inbox/internal/model"
)

func conv(id string, unread int, at time.Time) model.Conversation {
	return model.Conversation{
		ID:              id,
		UnreadCount:     unread,
		ParticipantName: "name " + id,
		LastMessage:     "preview " + id,
		LastMessageAt:   at,
	}
}

// blockingConvWriter lets a test hold a mark-read write in flight.
type blockingConvWriter struct {
	enter  chan string
	result chan error
}

func (w *blockingConvWriter) MarkConversationRead(ctx context.Context, id string) error {
	w.enter <- id
	return <-w.result
}

func TestApplyDeltaLastValueWins(t *testing.T) {
	tr := NewConversationTracker(&fakeWriter{}, nil)
	tr.ReconcileSnapshot([]model.Conversation{conv("7", 2, time.Now())})

	tr.ApplyDelta("7", 5)
	tr.ApplyDelta("7", 3)

	if got := tr.Count("7"); got != 3 {
		t.Fatalf("expected last delta to win (3), got %d", got)
	}
	if got := tr.UnreadTotal(); got != 3 {
		t.Fatalf("expected total 3, got %d", got)
	}
}

func TestApplyDeltaUnknownConversationCreatesPlaceholder(t *testing.T) {
	tr := NewConversationTracker(&fakeWriter{}, nil)

	tr.ApplyDelta("9", 4)

	if got := tr.Count("9"); got != 4 {
		t.Fatalf("expected placeholder with count 4, got %d", got)
	}
	unread := tr.Unread()
	if len(unread) != 1 || unread[0].ID != "9" {
		t.Fatalf("expected placeholder in unread list, got %+v", unread)
	}
}

func TestApplyDeltaRejectsInvalidInput(t *testing.T) {
	tr := NewConversationTracker(&fakeWriter{}, nil)

	tr.ApplyDelta("", 3)
	tr.ApplyDelta("7", -1)

	if got := tr.UnreadTotal(); got != 0 {
		t.Fatalf("expected invalid deltas dropped, total %d", got)
	}
}

func TestReconcileSnapshotReplacesMap(t *testing.T) {
	tr := NewConversationTracker(&fakeWriter{}, nil)
	tr.ApplyDelta("gone", 2)

	tr.ReconcileSnapshot([]model.Conversation{
		conv("a", 1, time.Now()),
		conv("b", 0, time.Now()),
	})

	if got := tr.Count("gone"); got != 0 {
		t.Fatalf("expected stale conversation dropped, got count %d", got)
	}
	if got := tr.UnreadTotal(); got != 1 {
		t.Fatalf("expected total 1 from snapshot, got %d", got)
	}
	if got := len(tr.List()); got != 2 {
		t.Fatalf("expected 2 tracked conversations, got %d", got)
	}
}

func TestReconcileSnapshotSkipsInvalidEntries(t *testing.T) {
	tr := NewConversationTracker(&fakeWriter{}, nil)

	tr.ReconcileSnapshot([]model.Conversation{
		{ID: "", UnreadCount: 3},
		{ID: "ok", UnreadCount: -2},
		conv("good", 1, time.Now()),
	})

	if got := len(tr.List()); got != 1 {
		t.Fatalf("expected only the valid entry kept, got %d", got)
	}
}

func TestMarkConversationReadSuccess(t *testing.T) {
	w := &fakeWriter{}
	tr := NewConversationTracker(w, nil)
	tr.ReconcileSnapshot([]model.Conversation{conv("7", 5, time.Now())})

	if err := tr.MarkConversationRead(context.Background(), "7"); err != nil {
		t.Fatalf("mark conversation read failed: %v", err)
	}
	if got := tr.Count("7"); got != 0 {
		t.Fatalf("expected count 0, got %d", got)
	}
	if len(w.markConvCalls) != 1 || w.markConvCalls[0] != "7" {
		t.Fatalf("expected one write for conversation 7, got %v", w.markConvCalls)
	}
}

func TestMarkConversationReadFailureRestoresCount(t *testing.T) {
	w := &fakeWriter{markConvErr: errors.New("boom")}
	tr := NewConversationTracker(w, nil)
	tr.ReconcileSnapshot([]model.Conversation{conv("7", 5, time.Now())})

	if err := tr.MarkConversationRead(context.Background(), "7"); err == nil {
		t.Fatalf("expected error from failed write")
	}
	if got := tr.Count("7"); got != 5 {
		t.Fatalf("expected count restored to 5, got %d", got)
	}
}

func TestMarkConversationReadZeroCountIsNoop(t *testing.T) {
	w := &fakeWriter{}
	tr := NewConversationTracker(w, nil)
	tr.ReconcileSnapshot([]model.Conversation{conv("7", 0, time.Now())})

	if err := tr.MarkConversationRead(context.Background(), "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.markConvCalls) != 0 {
		t.Fatalf("expected no write for an already-read conversation")
	}
}

// While a mark-read write is in flight, neither a snapshot nor a push
// delta may overwrite the optimistic zero.
func TestPendingBlocksSnapshotAndDelta(t *testing.T) {
	w := &blockingConvWriter{
		enter:  make(chan string),
		result: make(chan error),
	}
	tr := NewConversationTracker(w, nil)
	tr.ReconcileSnapshot([]model.Conversation{conv("7", 5, time.Now())})

	done := make(chan error, 1)
	go func() {
		done <- tr.MarkConversationRead(context.Background(), "7")
	}()
	<-w.enter

	tr.ApplyDelta("7", 5)
	if got := tr.Count("7"); got != 0 {
		t.Fatalf("expected pending zero to survive delta, got %d", got)
	}

	tr.ReconcileSnapshot([]model.Conversation{conv("7", 5, time.Now())})
	if got := tr.Count("7"); got != 0 {
		t.Fatalf("expected pending zero to survive snapshot, got %d", got)
	}

	w.result <- nil
	if err := <-done; err != nil {
		t.Fatalf("mark conversation read failed: %v", err)
	}

	// Settled: a later snapshot is authoritative again.
	tr.ReconcileSnapshot([]model.Conversation{conv("7", 2, time.Now())})
	if got := tr.Count("7"); got != 2 {
		t.Fatalf("expected snapshot to win after settle, got %d", got)
	}
}
