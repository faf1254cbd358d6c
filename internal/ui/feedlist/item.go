package feedlist

import (
	"fmt"
	"strings"
	"time"

	"github.com/expertly/inbox/internal/model"
	"github.com/expertly/inbox/internal/theme"
)

// FeedItem wraps a model.FeedEntry so it can be used in a bubbles/list.
type FeedItem struct {
	Entry model.FeedEntry
}

// FilterValue returns the string used for fuzzy filtering.
func (i FeedItem) FilterValue() string {
	return i.Entry.Title
}

// Title returns the entry headline for the list.
func (i FeedItem) Title() string {
	if i.Entry.Source == model.FeedSourceConversation {
		return fmt.Sprintf("%s (%d)", i.Entry.Title, i.Entry.UnreadCount)
	}
	return i.Entry.Title
}

// Description returns a short summary line for the list.
func (i FeedItem) Description() string {
	parts := []string{
		theme.TypeStyle(i.Entry.Type).Render(string(i.Entry.Type)),
		i.Entry.Preview,
		relativeTime(i.Entry.Timestamp),
	}
	return strings.Join(parts, " | ")
}

// relativeTime formats a timestamp as a short "ago" string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
