// Package cache persists the last reconciled snapshots in a local
// sqlite database so a new session can render the feed before its
// first fetch completes. The cache is advisory: every error is safe to
// ignore and the next reconciliation overwrites whatever is stored.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/expertly/inbox/internal/model"
)

// SQLiteCache stores notification and conversation snapshots in a
// local SQLite database.
type SQLiteCache struct {
	db *sqlx.DB
}

// New opens (or creates) a SQLite database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func New(dbPath string) (*SQLiteCache, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db}
	if err := c.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return c, nil
}

// Close closes the underlying database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (c *SQLiteCache) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := c.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = c.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := c.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveNotifications replaces the cached notification snapshot,
// preserving the snapshot's ordering.
func (c *SQLiteCache) SaveNotifications(ctx context.Context, items []model.Notification) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	for i, n := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (
				id, type, title, message, action_url, read, created_at, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, string(n.Type), n.Title, n.Message, n.ActionURL,
			boolToInt(n.Read), n.CreatedAt.UTC(), i,
		)
		if err != nil {
			return fmt.Errorf("caching notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notification snapshot: %w", err)
	}
	return nil
}

// SaveConversations replaces the cached conversation snapshot.
func (c *SQLiteCache) SaveConversations(ctx context.Context, convs []model.Conversation) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
		return fmt.Errorf("clearing cached conversations: %w", err)
	}

	for _, conv := range convs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (
				id, unread_count, participant_name, last_message, last_message_at
			) VALUES (?, ?, ?, ?, ?)`,
			conv.ID, conv.UnreadCount, conv.ParticipantName,
			conv.LastMessage, conv.LastMessageAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("caching conversation %s: %w", conv.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation snapshot: %w", err)
	}
	return nil
}

// notificationRow maps the notifications table.
type notificationRow struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	ActionURL string    `db:"action_url"`
	Read      int       `db:"read"`
	CreatedAt time.Time `db:"created_at"`
	Position  int       `db:"position"`
}

// LoadNotifications returns the cached notification snapshot in its
// original order.
func (c *SQLiteCache) LoadNotifications(ctx context.Context) ([]model.Notification, error) {
	var rows []notificationRow
	err := c.db.SelectContext(ctx, &rows,
		"SELECT id, type, title, message, action_url, read, created_at, position FROM notifications ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("loading cached notifications: %w", err)
	}

	items := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n := model.Notification{
			ID:        r.ID,
			Type:      model.NotificationType(r.Type),
			Title:     r.Title,
			Message:   r.Message,
			ActionURL: r.ActionURL,
			Read:      r.Read != 0,
			CreatedAt: r.CreatedAt,
		}
		n.NormalizeType()
		items = append(items, n)
	}
	return items, nil
}

// conversationRow maps the conversations table.
type conversationRow struct {
	ID              string    `db:"id"`
	UnreadCount     int       `db:"unread_count"`
	ParticipantName string    `db:"participant_name"`
	LastMessage     string    `db:"last_message"`
	LastMessageAt   time.Time `db:"last_message_at"`
}

// LoadConversations returns the cached conversation snapshot.
func (c *SQLiteCache) LoadConversations(ctx context.Context) ([]model.Conversation, error) {
	var rows []conversationRow
	err := c.db.SelectContext(ctx, &rows,
		"SELECT id, unread_count, participant_name, last_message, last_message_at FROM conversations")
	if err != nil {
		return nil, fmt.Errorf("loading cached conversations: %w", err)
	}

	convs := make([]model.Conversation, 0, len(rows))
	for _, r := range rows {
		convs = append(convs, model.Conversation{
			ID:              r.ID,
			UnreadCount:     r.UnreadCount,
			ParticipantName: r.ParticipantName,
			LastMessage:     r.LastMessage,
			LastMessageAt:   r.LastMessageAt,
		})
	}
	return convs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
