package model

import "time"

// FeedSource tags a feed entry with the store it was projected from.
type FeedSource string

const (
	FeedSourceNotification FeedSource = "notification"
	FeedSourceConversation FeedSource = "conversation"
)

// FeedEntry is a projection over one unread notification or one
// conversation with unread messages. It is rebuilt from the stores on
// every mutation and never stored itself.
type FeedEntry struct {
	// Source discriminates which store produced this entry.
	Source FeedSource

	// ID is the identifier in the originating store. Notification and
	// conversation identifiers live in disjoint spaces, so (Source, ID)
	// is unique and ID alone is stable enough for sort tie-breaking.
	ID string

	// Title is the headline: notification title, or the conversation
	// participant's name.
	Title string

	// Preview is the notification message or the last-message preview.
	Preview string

	// Type is the notification type tag; NotificationMessage for
	// conversation entries.
	Type NotificationType

	// UnreadCount is 0 for notification entries and the conversation's
	// unread count otherwise.
	UnreadCount int

	// Target is the navigation target for the entry ("" when absent).
	Target string

	// Timestamp orders the feed: notification creation time, or the
	// conversation's last-message time.
	Timestamp time.Time
}
