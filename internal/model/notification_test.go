package model

import (
	"testing"
	"time"
)

func TestNotificationValidate(t *testing.T) {
	valid := Notification{ID: "1", Type: NotificationMessage, CreatedAt: time.Now()}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid notification, got %v", err)
	}

	missingID := Notification{Type: NotificationMessage, CreatedAt: time.Now()}
	if err := missingID.Validate(); err == nil {
		t.Fatal("expected error for missing id")
	}

	missingTime := Notification{ID: "1", Type: NotificationMessage}
	if err := missingTime.Validate(); err == nil {
		t.Fatal("expected error for zero timestamp")
	}
}

func TestNormalizeTypeMapsUnknownToGeneric(t *testing.T) {
	n := Notification{ID: "1", Type: NotificationType("groupInviteV2"), CreatedAt: time.Now()}
	n.NormalizeType()
	if n.Type != NotificationGeneric {
		t.Fatalf("expected generic, got %q", n.Type)
	}

	n.Type = NotificationReview
	n.NormalizeType()
	if n.Type != NotificationReview {
		t.Fatalf("known type must be preserved, got %q", n.Type)
	}
}

func TestConversationValidate(t *testing.T) {
	valid := Conversation{ID: "c1", UnreadCount: 0, LastMessageAt: time.Now()}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid conversation, got %v", err)
	}

	missingID := Conversation{UnreadCount: 1}
	if err := missingID.Validate(); err == nil {
		t.Fatal("expected error for missing id")
	}

	negative := Conversation{ID: "c1", UnreadCount: -1}
	if err := negative.Validate(); err == nil {
		t.Fatal("expected error for negative unread count")
	}
}
