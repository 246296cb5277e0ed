package sqlite

import (
	"context"
	"fmt"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// CreateChannel inserts a channel and its allowed-users list.
func (s *SQLiteStore) CreateChannel(ctx context.Context, c *store.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO channels
			(id, server_id, name, type, is_private, slowmode_enabled, slowmode_delay, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ServerID, c.Name, c.Type, c.IsPrivate,
		c.Slowmode.Enabled, c.Slowmode.DelaySeconds, c.Position, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert channel: %w", mapError(err))
	}

	for _, userID := range c.AllowedUsers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_allowed_users (channel_id, user_id) VALUES (?, ?)`,
			c.ID, userID); err != nil {
			return fmt.Errorf("insert allowed user: %w", mapError(err))
		}
	}

	return tx.Commit()
}

// GetChannelByID retrieves a channel with its allowed-users list.
func (s *SQLiteStore) GetChannelByID(ctx context.Context, id string) (*store.Channel, error) {
	query := `
		SELECT id, server_id, name, type, is_private, slowmode_enabled, slowmode_delay,
		       position, last_message_id, message_count, created_at
		FROM channels
		WHERE id = ?
	`
	var c store.Channel
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ServerID, &c.Name, &c.Type, &c.IsPrivate,
		&c.Slowmode.Enabled, &c.Slowmode.DelaySeconds,
		&c.Position, &c.LastMessageID, &c.MessageCount, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query channel: %w", mapError(err))
	}

	if c.IsPrivate {
		allowed, err := s.listAllowedUsers(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.AllowedUsers = allowed
	}

	return &c, nil
}

func (s *SQLiteStore) listAllowedUsers(ctx context.Context, channelID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM channel_allowed_users WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query allowed users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan allowed user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ListChannels lists a server's channels ordered by position.
func (s *SQLiteStore) ListChannels(ctx context.Context, serverID string) ([]*store.Channel, error) {
	query := `
		SELECT id, server_id, name, type, is_private, slowmode_enabled, slowmode_delay,
		       position, last_message_id, message_count, created_at
		FROM channels
		WHERE server_id = ?
		ORDER BY position, created_at
	`
	rows, err := s.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*store.Channel
	for rows.Next() {
		var c store.Channel
		if err := rows.Scan(
			&c.ID, &c.ServerID, &c.Name, &c.Type, &c.IsPrivate,
			&c.Slowmode.Enabled, &c.Slowmode.DelaySeconds,
			&c.Position, &c.LastMessageID, &c.MessageCount, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, &c)
	}
	return channels, rows.Err()
}

// UpdateChannel rewrites channel settings and the allowed-users list.
// ServerID is immutable and never updated.
func (s *SQLiteStore) UpdateChannel(ctx context.Context, c *store.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE channels
		SET name = ?, type = ?, is_private = ?, slowmode_enabled = ?, slowmode_delay = ?, position = ?
		WHERE id = ?`,
		c.Name, c.Type, c.IsPrivate, c.Slowmode.Enabled, c.Slowmode.DelaySeconds, c.Position, c.ID)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM channel_allowed_users WHERE channel_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear allowed users: %w", err)
	}
	for _, userID := range c.AllowedUsers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_allowed_users (channel_id, user_id) VALUES (?, ?)`,
			c.ID, userID); err != nil {
			return fmt.Errorf("insert allowed user: %w", mapError(err))
		}
	}

	return tx.Commit()
}

// DeleteChannel removes the channel and cascades to its messages, attachments,
// and reactions.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM reactions WHERE message_id IN (SELECT id FROM messages WHERE channel_id = ?)`,
		`DELETE FROM attachments WHERE message_id IN (SELECT id FROM messages WHERE channel_id = ?)`,
		`DELETE FROM messages WHERE channel_id = ?`,
		`DELETE FROM channel_allowed_users WHERE channel_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete channel data: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// BumpLastMessage atomically advances the channel's derived message fields.
func (s *SQLiteStore) BumpLastMessage(ctx context.Context, channelID, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET last_message_id = ?, message_count = message_count + 1 WHERE id = ?`,
		messageID, channelID)
	if err != nil {
		return fmt.Errorf("bump last message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
