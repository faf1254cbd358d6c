package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/expertly/inbox/internal/model"
)

// FetchConversations retrieves the full conversation listing, each
// entry carrying its own unread count, preview, and last-message time.
func (c *Client) FetchConversations(ctx context.Context) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := c.get(ctx, "/v1/conversations", &conversations); err != nil {
		return nil, fmt.Errorf("fetching conversations: %w", err)
	}
	return conversations, nil
}

// MarkConversationRead marks every message in a conversation as read
// server-side.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/read"
	if err := c.post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking conversation %s read: %w", conversationID, err)
	}
	return nil
}
