package model

import (
	"fmt"
	"strings"
	"time"
)

// Conversation summarizes one paid-messaging thread for the unread
// tracker. Previews (participant name, last message text) are only
// delivered by snapshot fetches; push events carry bare counts.
type Conversation struct {
	// ID identifies the conversation within the account.
	ID string `json:"id"`

	// UnreadCount is the number of messages the user has not read.
	// Always non-negative; the server sends the authoritative current
	// value, never an increment.
	UnreadCount int `json:"unreadCount"`

	// ParticipantName is the display name of the other party.
	ParticipantName string `json:"participantName"`

	// LastMessage is a short preview of the most recent message.
	LastMessage string `json:"lastMessage"`

	// LastMessageAt is when the most recent message was sent.
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Validate checks the fields a conversation snapshot entry must carry.
func (c Conversation) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("conversation missing id")
	}
	if c.UnreadCount < 0 {
		return fmt.Errorf("conversation %s has negative unread count %d", c.ID, c.UnreadCount)
	}
	return nil
}
