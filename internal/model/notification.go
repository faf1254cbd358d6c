package model

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType classifies a notification for filtering and display.
type NotificationType string

const (
	NotificationAppointment NotificationType = "appointment"
	NotificationMessage     NotificationType = "message"
	NotificationReview      NotificationType = "review"
	NotificationFormation   NotificationType = "formation"
	NotificationPayment     NotificationType = "payment"
	NotificationGeneric     NotificationType = "generic"
)

// knownNotificationTypes is the set of type tags the server may send.
var knownNotificationTypes = map[NotificationType]bool{
	NotificationAppointment: true,
	NotificationMessage:     true,
	NotificationReview:      true,
	NotificationFormation:   true,
	NotificationPayment:     true,
	NotificationGeneric:     true,
}

// Notification is a single entry in the account's notification list.
// Instances arrive either as a push event or inside a snapshot fetch;
// the server never deletes them.
type Notification struct {
	// ID is unique within the account.
	ID string `json:"id"`

	// Type is one of the fixed notification type tags. Unknown tags
	// are normalized to NotificationGeneric on ingestion.
	Type NotificationType `json:"type"`

	// Title is the short headline shown in the bell dropdown.
	Title string `json:"title"`

	// Message is the full notification body.
	Message string `json:"message"`

	// ActionURL is an optional navigation target ("" when absent).
	ActionURL string `json:"actionUrl,omitempty"`

	// Read reports whether the user has acknowledged this notification.
	Read bool `json:"read"`

	// CreatedAt is the server-side creation time.
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the fields a pushed notification must carry.
// Pushed payloads failing validation are dropped by the engine.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("notification missing id")
	}
	if n.CreatedAt.IsZero() {
		return fmt.Errorf("notification %s missing createdAt", n.ID)
	}
	return nil
}

// NormalizeType maps unknown type tags to NotificationGeneric so a
// newer server cannot break older clients.
func (n *Notification) NormalizeType() {
	if !knownNotificationTypes[n.Type] {
		n.Type = NotificationGeneric
	}
}
