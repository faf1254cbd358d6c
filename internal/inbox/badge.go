package inbox

// BadgeTotal derives the header badge count: unread notifications plus
// the sum of conversation unread counts. It holds no state of its own,
// so it cannot drift; callers recompute it after every store mutation.
func BadgeTotal(notifications *NotificationStore, conversations *ConversationTracker) int {
	return notifications.UnreadCount() + conversations.UnreadTotal()
}
