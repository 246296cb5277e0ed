package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// CreateServer inserts a server together with its owner membership.
func (s *SQLiteStore) CreateServer(ctx context.Context, srv *store.Server, owner *store.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inviteCode := sql.NullString{String: srv.InviteCode, Valid: srv.InviteCode != ""}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO servers (id, name, owner_id, invite_code, created_at) VALUES (?, ?, ?, ?, ?)`,
		srv.ID, srv.Name, srv.OwnerID, inviteCode, srv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert server: %w", mapError(err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO server_members (server_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		srv.ID, owner.UserID, owner.Role, owner.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert owner member: %w", mapError(err))
	}

	return tx.Commit()
}

// GetServerByID retrieves a server by ID.
func (s *SQLiteStore) GetServerByID(ctx context.Context, id string) (*store.Server, error) {
	return s.getServer(ctx, "id = ?", id)
}

// GetServerByInviteCode retrieves a server by its invite code.
func (s *SQLiteStore) GetServerByInviteCode(ctx context.Context, code string) (*store.Server, error) {
	return s.getServer(ctx, "invite_code = ?", code)
}

func (s *SQLiteStore) getServer(ctx context.Context, where string, arg any) (*store.Server, error) {
	query := `
		SELECT id, name, owner_id, COALESCE(invite_code, ''), created_at
		FROM servers
		WHERE ` + where
	var srv store.Server
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&srv.ID,
		&srv.Name,
		&srv.OwnerID,
		&srv.InviteCode,
		&srv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query server: %w", mapError(err))
	}
	return &srv, nil
}

// ListServersByUser lists the servers the user belongs to, in join order.
func (s *SQLiteStore) ListServersByUser(ctx context.Context, userID string) ([]*store.Server, error) {
	query := `
		SELECT s.id, s.name, s.owner_id, COALESCE(s.invite_code, ''), s.created_at
		FROM servers s
		JOIN server_members m ON m.server_id = s.id
		WHERE m.user_id = ?
		ORDER BY m.joined_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query user servers: %w", err)
	}
	defer rows.Close()

	var servers []*store.Server
	for rows.Next() {
		var srv store.Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.OwnerID, &srv.InviteCode, &srv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, &srv)
	}
	return servers, rows.Err()
}

// UpdateServerName renames a server.
func (s *SQLiteStore) UpdateServerName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE servers SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update server name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateInviteCode replaces a server's invite code, revoking the old one.
func (s *SQLiteStore) UpdateInviteCode(ctx context.Context, id, code string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE servers SET invite_code = ? WHERE id = ?`, code, id)
	if err != nil {
		return fmt.Errorf("update invite code: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteServer removes a server, its memberships, channels, and messages.
func (s *SQLiteStore) DeleteServer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM reactions WHERE message_id IN (SELECT m.id FROM messages m JOIN channels c ON m.channel_id = c.id WHERE c.server_id = ?)`,
		`DELETE FROM attachments WHERE message_id IN (SELECT m.id FROM messages m JOIN channels c ON m.channel_id = c.id WHERE c.server_id = ?)`,
		`DELETE FROM messages WHERE channel_id IN (SELECT id FROM channels WHERE server_id = ?)`,
		`DELETE FROM channel_allowed_users WHERE channel_id IN (SELECT id FROM channels WHERE server_id = ?)`,
		`DELETE FROM channels WHERE server_id = ?`,
		`DELETE FROM server_members WHERE server_id = ?`,
		`DELETE FROM servers WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete server: %w", err)
		}
	}

	return tx.Commit()
}

// AddMember inserts a membership row.
func (s *SQLiteStore) AddMember(ctx context.Context, serverID string, m *store.Member) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO server_members (server_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		serverID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", mapError(err))
	}
	return nil
}

// RemoveMember deletes a membership row.
func (s *SQLiteStore) RemoveMember(ctx context.Context, serverID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM server_members WHERE server_id = ? AND user_id = ?`, serverID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetMember retrieves one membership fact.
func (s *SQLiteStore) GetMember(ctx context.Context, serverID, userID string) (*store.Member, error) {
	query := `
		SELECT user_id, role, joined_at
		FROM server_members
		WHERE server_id = ? AND user_id = ?
	`
	var m store.Member
	err := s.db.QueryRowContext(ctx, query, serverID, userID).Scan(&m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("query member: %w", mapError(err))
	}
	return &m, nil
}

// ListMembers lists all members of a server in join order.
func (s *SQLiteStore) ListMembers(ctx context.Context, serverID string) ([]*store.Member, error) {
	query := `
		SELECT user_id, role, joined_at
		FROM server_members
		WHERE server_id = ?
		ORDER BY joined_at
	`
	rows, err := s.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.Member
	for rows.Next() {
		var m store.Member
		if err := rows.Scan(&m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// UpdateMemberRole sets a member's role.
func (s *SQLiteStore) UpdateMemberRole(ctx context.Context, serverID, userID string, role store.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE server_members SET role = ? WHERE server_id = ? AND user_id = ?`,
		role, serverID, userID)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TransferOwnership moves the owner role to another member. The previous
// owner is demoted to admin so the one-owner invariant holds throughout.
func (s *SQLiteStore) TransferOwnership(ctx context.Context, serverID, fromUserID, toUserID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE servers SET owner_id = ? WHERE id = ? AND owner_id = ?`,
		toUserID, serverID, fromUserID)
	if err != nil {
		return fmt.Errorf("update server owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE server_members SET role = ? WHERE server_id = ? AND user_id = ?`,
		store.RoleOwner, serverID, toUserID)
	if err != nil {
		return fmt.Errorf("promote new owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE server_members SET role = ? WHERE server_id = ? AND user_id = ?`,
		store.RoleAdmin, serverID, fromUserID); err != nil {
		return fmt.Errorf("demote previous owner: %w", err)
	}

	return tx.Commit()
}
