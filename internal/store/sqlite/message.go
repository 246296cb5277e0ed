package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// SaveMessage inserts a message together with its attachments.
func (s *SQLiteStore) SaveMessage(ctx context.Context, m *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, author_id, content, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChannelID, m.AuthorID, m.Content, m.ReferenceID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", mapError(err))
	}

	for _, a := range m.Attachments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (message_id, url, filename, filetype, size)
			VALUES (?, ?, ?, ?, ?)`,
			m.ID, a.URL, a.Filename, a.Filetype, a.Size); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	return tx.Commit()
}

// GetMessageByID retrieves a message with attachments and reactions.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id string) (*store.Message, error) {
	query := `
		SELECT id, channel_id, author_id, content, reference_id,
		       edited, edited_at, pinned, pinned_at, pinned_by, created_at
		FROM messages
		WHERE id = ?
	`
	m, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := s.loadAttachments(ctx, m); err != nil {
		return nil, err
	}
	reactions, err := s.ListReactions(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Reactions = reactions

	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		m        store.Message
		editedAt sql.NullTime
		pinnedAt sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.ReferenceID,
		&m.Edited, &editedAt, &m.Pinned, &pinnedAt, &m.PinnedBy, &m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", mapError(err))
	}
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	if pinnedAt.Valid {
		t := pinnedAt.Time
		m.PinnedAt = &t
	}
	return &m, nil
}

func (s *SQLiteStore) loadAttachments(ctx context.Context, m *store.Message) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, filename, filetype, size FROM attachments WHERE message_id = ? ORDER BY id`,
		m.ID)
	if err != nil {
		return fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a store.Attachment
		if err := rows.Scan(&a.URL, &a.Filename, &a.Filetype, &a.Size); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		m.Attachments = append(m.Attachments, a)
	}
	return rows.Err()
}

// ListMessages returns up to limit messages in chronological order, optionally
// restricted to messages created before a given time.
func (s *SQLiteStore) ListMessages(ctx context.Context, channelID string, limit int, before *time.Time) ([]*store.Message, error) {
	query := `
		SELECT id, channel_id, author_id, content, reference_id,
		       edited, edited_at, pinned, pinned_at, pinned_by, created_at
		FROM messages
		WHERE channel_id = ?
	`
	args := []any{channelID}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query was newest-first for the LIMIT; flip back to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	for _, m := range messages {
		if err := s.loadAttachments(ctx, m); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// UpdateMessageContent rewrites a message body and marks it edited.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, edited = 1, edited_at = ? WHERE id = ?`,
		content, editedAt, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteMessage removes a message and its attachments and reactions.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE message_id = ?`, id); err != nil {
		return fmt.Errorf("delete reactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE message_id = ?`, id); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// SetPinned updates the pin fields of a message.
func (s *SQLiteStore) SetPinned(ctx context.Context, id string, pinned bool, pinnedBy string, pinnedAt *time.Time) error {
	var at sql.NullTime
	if pinnedAt != nil {
		at = sql.NullTime{Time: *pinnedAt, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET pinned = ?, pinned_at = ?, pinned_by = ? WHERE id = ?`,
		pinned, at, pinnedBy, id)
	if err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListPinned returns a channel's pinned messages, most recently pinned first.
func (s *SQLiteStore) ListPinned(ctx context.Context, channelID string) ([]*store.Message, error) {
	query := `
		SELECT id, channel_id, author_id, content, reference_id,
		       edited, edited_at, pinned, pinned_at, pinned_by, created_at
		FROM messages
		WHERE channel_id = ? AND pinned = 1
		ORDER BY pinned_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("query pinned: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// LastAuthorMessageAt returns the creation time of the author's most recent
// message in the channel. This is the authoritative slowmode lookup.
func (s *SQLiteStore) LastAuthorMessageAt(ctx context.Context, channelID, authorID string) (time.Time, error) {
	query := `
		SELECT created_at
		FROM messages
		WHERE channel_id = ? AND author_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	var t time.Time
	err := s.db.QueryRowContext(ctx, query, channelID, authorID).Scan(&t)
	if err != nil {
		return time.Time{}, mapError(err)
	}
	return t, nil
}

// AddReaction records one user's reaction. The primary key makes repeat
// reactions surface as store.ErrDuplicate.
func (s *SQLiteStore) AddReaction(ctx context.Context, messageID, emoji, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, emoji, user_id, created_at) VALUES (?, ?, ?, ?)`,
		messageID, emoji, userID, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return nil
}

// RemoveReaction deletes one user's reaction.
func (s *SQLiteStore) RemoveReaction(ctx context.Context, messageID, emoji, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND emoji = ? AND user_id = ?`,
		messageID, emoji, userID)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListReactions aggregates reaction rows into per-emoji entries, ordered by
// when each emoji was first used on the message.
func (s *SQLiteStore) ListReactions(ctx context.Context, messageID string) ([]store.Reaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT emoji, user_id FROM reactions WHERE message_id = ? ORDER BY created_at, user_id`,
		messageID)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	var (
		order   []string
		byEmoji = make(map[string]*store.Reaction)
		result  []store.Reaction
	)
	for rows.Next() {
		var emoji, userID string
		if err := rows.Scan(&emoji, &userID); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		entry, ok := byEmoji[emoji]
		if !ok {
			entry = &store.Reaction{Emoji: emoji}
			byEmoji[emoji] = entry
			order = append(order, emoji)
		}
		entry.Users = append(entry.Users, userID)
		entry.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, emoji := range order {
		result = append(result, *byEmoji[emoji])
	}
	return result, nil
}
