package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/expertly/inbox/internal/model"
)

// NotificationSnapshot is the authoritative current state of the
// account's notification list, used to correct client drift.
type NotificationSnapshot struct {
	Items       []model.Notification `json:"items"`
	UnreadTotal int                  `json:"unreadTotal"`
}

// FetchNotifications retrieves the most recent notifications together
// with the server's unread total.
func (c *Client) FetchNotifications(ctx context.Context, limit int) (*NotificationSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	var snap NotificationSnapshot
	path := fmt.Sprintf("/v1/notifications?limit=%d", limit)
	if err := c.get(ctx, path, &snap); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	for i := range snap.Items {
		snap.Items[i].NormalizeType()
	}
	return &snap, nil
}

// MarkNotificationRead acknowledges a single notification server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := "/v1/notifications/" + url.PathEscape(id) + "/read"
	if err := c.post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead acknowledges every notification server-side.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.post(ctx, "/v1/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}
