// Package inbox implements the client-side notification and
// unread-state aggregation engine: it merges push events, polled
// notification snapshots, and polled conversation snapshots into one
// deduplicated, time-ordered feed with a consistent unread badge.
package inbox

import (
	"context"
	"encoding/json"
	"log"

	"github.com/expertly/inbox/internal/api"
	"github.com/expertly/inbox/internal/model"
	"github.com/expertly/inbox/internal/stream"
)

// Push event names consumed by the engine. The transport delivers
// other events too (coinUpdate, expertVerificationChanged,
// userBannedChanged); those belong to other collaborators and flow
// through the same subscription registry without touching this engine.
const (
	EventNotification       = "notification"
	EventUnreadUpdate       = "unreadUpdate"
	EventNewMessage         = "newMessage"
	EventMessagesRead       = "messagesRead"
	EventAppointmentBooked  = "appointmentBooked"
	EventAppointmentUpdated = "appointmentUpdated"
	EventAppointmentRemind  = "appointmentReminder"
	EventFormationRemind    = "formationReminder"
)

// API is the full REST surface the engine consumes.
type API interface {
	NotificationWriter
	ConversationWriter
	FetchNotifications(ctx context.Context, limit int) (*api.NotificationSnapshot, error)
	FetchConversations(ctx context.Context) ([]model.Conversation, error)
}

// EventStream is the slice of the stream client the engine needs.
type EventStream interface {
	Subscribe(event string, h stream.Handler) string
	Unsubscribe(token string)
}

// SnapshotCache persists the last reconciled snapshots so the feed can
// render before the first fetch of a session. All methods are
// best-effort from the engine's point of view.
type SnapshotCache interface {
	SaveNotifications(ctx context.Context, items []model.Notification) error
	SaveConversations(ctx context.Context, convs []model.Conversation) error
	LoadNotifications(ctx context.Context) ([]model.Notification, error)
	LoadConversations(ctx context.Context) ([]model.Conversation, error)
}

// Update is published to subscribers after every store mutation. Badge
// and Feed are full recomputed projections, never deltas.
type Update struct {
	Badge int
	Feed  []model.FeedEntry

	// Toast carries a transient user-visible message ("" when none).
	Toast string
}

// Options configures an Engine.
type Options struct {
	API    API
	Stream EventStream

	// Cache is optional; nil disables warm starts and persistence.
	Cache SnapshotCache

	// SnapshotLimit is how many notifications each snapshot requests.
	SnapshotLimit int

	// FeedPageSize and FeedPageIncrement control the visible feed
	// window.
	FeedPageSize      int
	FeedPageIncrement int
}

// Engine owns the two stores, the feed merger, and the reconciliation
// scheduler, and bridges the push-event stream into them. It is a
// session-scoped singleton: UI views subscribe to its updates and
// never touch the transport.
type Engine struct {
	apiClient     API
	events        EventStream
	cache         SnapshotCache
	snapshotLimit int

	notifications *NotificationStore
	conversations *ConversationTracker
	merger        *FeedMerger
	scheduler     *Scheduler

	updates   chan Update
	subTokens []string
}

// NewEngine wires an engine from its collaborators.
func NewEngine(opts Options) *Engine {
	limit := opts.SnapshotLimit
	if limit <= 0 {
		limit = 50
	}

	e := &Engine{
		apiClient:     opts.API,
		events:        opts.Stream,
		cache:         opts.Cache,
		snapshotLimit: limit,
		merger:        NewFeedMerger(opts.FeedPageSize, opts.FeedPageIncrement),
		updates:       make(chan Update, 16),
	}
	// The stores publish through the engine after every mutation, so
	// optimistic updates reach the UI before their write settles.
	e.notifications = NewNotificationStore(opts.API, e.publish)
	e.conversations = NewConversationTracker(opts.API, e.publish)
	e.scheduler = NewScheduler(
		e.fetchNotificationSnapshot,
		e.fetchConversationSnapshot,
		e.publish,
	)
	return e
}

// Start warm-loads the stores from the cache, registers the push-event
// subscriptions, and launches the scheduler. The caller is responsible
// for only starting an authenticated session.
func (e *Engine) Start(ctx context.Context) {
	e.warmStart(ctx)

	e.subTokens = append(e.subTokens,
		e.events.Subscribe(stream.EventResync, func(json.RawMessage) {
			e.scheduler.Trigger(TriggerResync)
		}),
		e.events.Subscribe(EventNotification, e.handleNotification),
		e.events.Subscribe(EventUnreadUpdate, e.handleUnreadUpdate),
		e.events.Subscribe(EventNewMessage, e.handleDeltaOnly),
		e.events.Subscribe(EventMessagesRead, e.handleDeltaOnly),
		e.events.Subscribe(EventAppointmentBooked, e.handleToastEvent("Appointment booked")),
		e.events.Subscribe(EventAppointmentUpdated, e.handleToastEvent("Appointment updated")),
		e.events.Subscribe(EventAppointmentRemind, e.handleToastEvent("Appointment reminder")),
		e.events.Subscribe(EventFormationRemind, e.handleToastEvent("Formation reminder")),
	)

	e.scheduler.Start(ctx)
	e.publish()
}

// Stop unregisters the event subscriptions and halts the scheduler.
// The underlying connection outlives the engine; it is session-scoped.
func (e *Engine) Stop() {
	for _, token := range e.subTokens {
		e.events.Unsubscribe(token)
	}
	e.subTokens = nil
	e.scheduler.Stop()
}

// Updates returns the channel UI consumers receive projections on.
func (e *Engine) Updates() <-chan Update {
	return e.updates
}

// Badge returns the current derived badge total.
func (e *Engine) Badge() int {
	return BadgeTotal(e.notifications, e.conversations)
}

// Feed returns the current visible window of the merged feed.
func (e *Engine) Feed() []model.FeedEntry {
	merged := MergeFeed(e.notifications.Items(), e.conversations.List())
	return e.merger.Take(merged)
}

// Notifications exposes the notification store.
func (e *Engine) Notifications() *NotificationStore {
	return e.notifications
}

// Conversations exposes the conversation tracker.
func (e *Engine) Conversations() *ConversationTracker {
	return e.conversations
}

// Scheduler exposes the reconciliation scheduler.
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// OpenPanel reports that the user opened the notification panel, which
// is one of the explicit reconciliation triggers.
func (e *Engine) OpenPanel() {
	e.scheduler.Trigger(TriggerPanelOpened)
}

// LoadMore widens the visible feed window; the full set is already in
// memory so no fetch happens.
func (e *Engine) LoadMore() {
	e.merger.Grow()
	e.publish()
}

// MarkRead marks one notification read, optimistically first. The
// returned error is for display; state has already been rolled back.
func (e *Engine) MarkRead(ctx context.Context, id string) error {
	return e.notifications.MarkRead(ctx, id)
}

// MarkAllRead marks every notification read. Mark-all-read is also an
// explicit reconciliation trigger, which doubles as the fallback that
// restores ground truth when the write fails.
func (e *Engine) MarkAllRead(ctx context.Context) error {
	err := e.notifications.MarkAllRead(ctx)
	e.scheduler.Trigger(TriggerMarkAllRead)
	return err
}

// MarkConversationRead zeroes one conversation's unread count,
// optimistically first.
func (e *Engine) MarkConversationRead(ctx context.Context, conversationID string) error {
	return e.conversations.MarkConversationRead(ctx, conversationID)
}

// Dismiss removes a notification from the client view only; it will
// reappear after the next snapshot reconciliation.
func (e *Engine) Dismiss(id string) {
	e.notifications.Dismiss(id)
}

// warmStart seeds the stores from the local cache so the session opens
// with the last known state instead of an empty feed.
func (e *Engine) warmStart(ctx context.Context) {
	if e.cache == nil {
		return
	}

	if items, err := e.cache.LoadNotifications(ctx); err != nil {
		log.Printf("inbox: loading cached notifications failed: %v", err)
	} else if len(items) > 0 {
		unread := 0
		for _, n := range items {
			if !n.Read {
				unread++
			}
		}
		e.notifications.ReconcileSnapshot(items, unread)
	}

	if convs, err := e.cache.LoadConversations(ctx); err != nil {
		log.Printf("inbox: loading cached conversations failed: %v", err)
	} else if len(convs) > 0 {
		e.conversations.ReconcileSnapshot(convs)
	}
}

// fetchNotificationSnapshot is the scheduler's notification source.
func (e *Engine) fetchNotificationSnapshot(ctx context.Context) error {
	snap, err := e.apiClient.FetchNotifications(ctx, e.snapshotLimit)
	if err != nil {
		return err
	}
	e.notifications.ReconcileSnapshot(snap.Items, snap.UnreadTotal)

	if e.cache != nil {
		if err := e.cache.SaveNotifications(ctx, snap.Items); err != nil {
			log.Printf("inbox: caching notifications failed: %v", err)
		}
	}
	return nil
}

// fetchConversationSnapshot is the scheduler's conversation source.
func (e *Engine) fetchConversationSnapshot(ctx context.Context) error {
	convs, err := e.apiClient.FetchConversations(ctx)
	if err != nil {
		return err
	}
	e.conversations.ReconcileSnapshot(convs)

	if e.cache != nil {
		if err := e.cache.SaveConversations(ctx, convs); err != nil {
			log.Printf("inbox: caching conversations failed: %v", err)
		}
	}
	return nil
}

// handleNotification ingests a pushed notification after defensive
// validation; malformed payloads are dropped.
func (e *Engine) handleNotification(data json.RawMessage) {
	var item model.Notification
	if err := json.Unmarshal(data, &item); err != nil {
		log.Printf("inbox: dropping malformed notification push: %v", err)
		return
	}
	if err := item.Validate(); err != nil {
		log.Printf("inbox: dropping invalid notification push: %v", err)
		return
	}

	e.notifications.IngestPush(item)
}

// unreadUpdatePayload is the wire shape of the unreadUpdate event.
type unreadUpdatePayload struct {
	ConversationID string `json:"conversationId"`
	UnreadCount    *int   `json:"unreadCount"`
}

// handleUnreadUpdate applies a pushed per-conversation count after
// defensive validation; malformed payloads are dropped.
func (e *Engine) handleUnreadUpdate(data json.RawMessage) {
	var payload unreadUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("inbox: dropping malformed unreadUpdate push: %v", err)
		return
	}
	if payload.ConversationID == "" || payload.UnreadCount == nil || *payload.UnreadCount < 0 {
		log.Printf("inbox: dropping invalid unreadUpdate push for %q", payload.ConversationID)
		return
	}

	e.conversations.ApplyDelta(payload.ConversationID, *payload.UnreadCount)
}

// handleDeltaOnly reacts to events that signal a content change
// without carrying the new content: the only safe response is a full
// snapshot fetch.
func (e *Engine) handleDeltaOnly(json.RawMessage) {
	e.scheduler.Trigger(TriggerPushDelta)
}

// handleToastEvent builds a handler that both reconciles and surfaces
// a transient toast message.
func (e *Engine) handleToastEvent(message string) stream.Handler {
	return func(json.RawMessage) {
		e.scheduler.Trigger(TriggerPushDelta)
		e.send(Update{
			Badge: e.Badge(),
			Feed:  e.Feed(),
			Toast: message,
		})
	}
}

// publish recomputes both projections and sends them to subscribers.
func (e *Engine) publish() {
	e.send(Update{
		Badge: e.Badge(),
		Feed:  e.Feed(),
	})
}

// send delivers an update without blocking; a slow consumer only loses
// intermediate projections, never the final one for a mutation burst.
func (e *Engine) send(u Update) {
	select {
	case e.updates <- u:
	default:
		// Drop if the channel is full; the next publish carries the
		// complete recomputed state anyway.
	}
}
