package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/expertly/inbox/internal/model"
	"github.com/expertly/inbox/tests/testutil"
)

func TestEmptyCacheLoadsNothing(t *testing.T) {
	c := testutil.NewTestCache(t)
	ctx := context.Background()

	items, err := c.LoadNotifications(ctx)
	if err != nil {
		t.Fatalf("loading notifications: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty cache, got %d notifications", len(items))
	}

	convs, err := c.LoadConversations(ctx)
	if err != nil {
		t.Fatalf("loading conversations: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("expected empty cache, got %d conversations", len(convs))
	}
}

func TestNotificationSnapshotRoundTripPreservesOrder(t *testing.T) {
	c := testutil.NewTestCache(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	saved := []model.Notification{
		{ID: "2", Type: model.NotificationMessage, Title: "newest", Read: false, CreatedAt: at.Add(time.Hour)},
		{ID: "1", Type: model.NotificationPayment, Title: "older", Message: "paid", ActionURL: "/wallet", Read: true, CreatedAt: at},
	}
	if err := c.SaveNotifications(ctx, saved); err != nil {
		t.Fatalf("saving notifications: %v", err)
	}

	loaded, err := c.LoadNotifications(ctx)
	if err != nil {
		t.Fatalf("loading notifications: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(loaded))
	}
	if loaded[0].ID != "2" || loaded[1].ID != "1" {
		t.Fatalf("snapshot order not preserved: %+v", loaded)
	}
	if loaded[1].Type != model.NotificationPayment || !loaded[1].Read ||
		loaded[1].Message != "paid" || loaded[1].ActionURL != "/wallet" {
		t.Fatalf("fields not round-tripped: %+v", loaded[1])
	}
	if !loaded[1].CreatedAt.Equal(at) {
		t.Fatalf("timestamp not round-tripped: %v != %v", loaded[1].CreatedAt, at)
	}
}

func TestSaveNotificationsReplacesPreviousSnapshot(t *testing.T) {
	c := testutil.NewTestCache(t)
	ctx := context.Background()
	at := time.Now().UTC()

	first := []model.Notification{
		{ID: "a", Type: model.NotificationGeneric, CreatedAt: at},
		{ID: "b", Type: model.NotificationGeneric, CreatedAt: at},
	}
	if err := c.SaveNotifications(ctx, first); err != nil {
		t.Fatalf("saving first snapshot: %v", err)
	}

	second := []model.Notification{
		{ID: "c", Type: model.NotificationGeneric, CreatedAt: at},
	}
	if err := c.SaveNotifications(ctx, second); err != nil {
		t.Fatalf("saving second snapshot: %v", err)
	}

	loaded, err := c.LoadNotifications(ctx)
	if err != nil {
		t.Fatalf("loading notifications: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "c" {
		t.Fatalf("expected replacement snapshot, got %+v", loaded)
	}
}

func TestUnknownCachedTypeNormalizedOnLoad(t *testing.T) {
	c := testutil.NewTestCache(t)
	ctx := context.Background()

	saved := []model.Notification{
		{ID: "1", Type: model.NotificationType("retiredType"), CreatedAt: time.Now().UTC()},
	}
	if err := c.SaveNotifications(ctx, saved); err != nil {
		t.Fatalf("saving notifications: %v", err)
	}

	loaded, err := c.LoadNotifications(ctx)
	if err != nil {
		t.Fatalf("loading notifications: %v", err)
	}
	if loaded[0].Type != model.NotificationGeneric {
		t.Fatalf("expected unknown type normalized, got %q", loaded[0].Type)
	}
}

func TestConversationSnapshotRoundTrip(t *testing.T) {
	c := testutil.NewTestCache(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)

	saved := []model.Conversation{
		{ID: "c1", UnreadCount: 3, ParticipantName: "Ana", LastMessage: "hello", LastMessageAt: at},
		{ID: "c2", UnreadCount: 0, ParticipantName: "Bo", LastMessage: "bye", LastMessageAt: at.Add(time.Minute)},
	}
	if err := c.SaveConversations(ctx, saved); err != nil {
		t.Fatalf("saving conversations: %v", err)
	}

	loaded, err := c.LoadConversations(ctx)
	if err != nil {
		t.Fatalf("loading conversations: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(loaded))
	}

	byID := make(map[string]model.Conversation, len(loaded))
	for _, conv := range loaded {
		byID[conv.ID] = conv
	}
	got, ok := byID["c1"]
	if !ok {
		t.Fatalf("conversation c1 missing: %+v", loaded)
	}
	if got.UnreadCount != 3 || got.ParticipantName != "Ana" || got.LastMessage != "hello" {
		t.Fatalf("fields not round-tripped: %+v", got)
	}
	if !got.LastMessageAt.Equal(at) {
		t.Fatalf("timestamp not round-tripped: %v != %v", got.LastMessageAt, at)
	}
}

func TestSaveConversationsReplacesPreviousSnapshot(t *testing.T) {
	c := testutil.NewTestCache(t)
	ctx := context.Background()
	at := time.Now().UTC()

	if err := c.SaveConversations(ctx, []model.Conversation{
		{ID: "c1", UnreadCount: 1, LastMessageAt: at},
	}); err != nil {
		t.Fatalf("saving first snapshot: %v", err)
	}
	if err := c.SaveConversations(ctx, []model.Conversation{
		{ID: "c2", UnreadCount: 2, LastMessageAt: at},
	}); err != nil {
		t.Fatalf("saving second snapshot: %v", err)
	}

	loaded, err := c.LoadConversations(ctx)
	if err != nil {
		t.Fatalf("loading conversations: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "c2" {
		t.Fatalf("expected replacement snapshot, got %+v", loaded)
	}
}
