package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/utils"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, username string) *store.User {
	t.Helper()
	u := &store.User{
		ID:           utils.NewID(),
		Username:     username,
		DisplayName:  username,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func seedServer(t *testing.T, s *SQLiteStore, ownerID string) *store.Server {
	t.Helper()
	srv := &store.Server{
		ID:         utils.NewID(),
		Name:       "test server",
		OwnerID:    ownerID,
		InviteCode: utils.NewInviteCode(),
		CreatedAt:  time.Now().UTC(),
	}
	owner := &store.Member{UserID: ownerID, Role: store.RoleOwner, JoinedAt: srv.CreatedAt}
	if err := s.CreateServer(context.Background(), srv, owner); err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func seedChannel(t *testing.T, s *SQLiteStore, serverID string) *store.Channel {
	t.Helper()
	ch := &store.Channel{
		ID:        utils.NewID(),
		ServerID:  serverID,
		Name:      "general",
		Type:      store.ChannelText,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateChannel(context.Background(), ch); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	return ch
}

func seedMessage(t *testing.T, s *SQLiteStore, channelID, authorID, content string, at time.Time) *store.Message {
	t.Helper()
	m := &store.Message{
		ID:        utils.NewID(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: at,
	}
	if err := s.SaveMessage(context.Background(), m); err != nil {
		t.Fatalf("failed to save message: %v", err)
	}
	return m
}

func TestUserStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice")

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("username = %q, want alice", got.Username)
	}

	if _, err := s.GetUserByUsername(ctx, "alice"); err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	dup := &store.User{ID: utils.NewID(), Username: "alice", PasswordHash: "x", CreatedAt: time.Now()}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for reused username, got %v", err)
	}
}

func TestServerAndInviteCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	srv := seedServer(t, s, owner.ID)

	got, err := s.GetServerByInviteCode(ctx, srv.InviteCode)
	if err != nil {
		t.Fatalf("GetServerByInviteCode failed: %v", err)
	}
	if got.ID != srv.ID {
		t.Errorf("server id = %q, want %q", got.ID, srv.ID)
	}

	if _, err := s.GetServerByInviteCode(ctx, "NOPE1234"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// CreateServer must record the owner membership in the same operation.
	member, err := s.GetMember(ctx, srv.ID, owner.ID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if member.Role != store.RoleOwner {
		t.Errorf("owner role = %q, want owner", member.Role)
	}

	if err := s.UpdateServerName(ctx, srv.ID, "renamed"); err != nil {
		t.Fatalf("UpdateServerName failed: %v", err)
	}
	got, err = s.GetServerByID(ctx, srv.ID)
	if err != nil {
		t.Fatalf("GetServerByID failed: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("name = %q, want renamed", got.Name)
	}

	// Replacing the invite code revokes the old one.
	if err := s.UpdateInviteCode(ctx, srv.ID, "FRESH123"); err != nil {
		t.Fatalf("UpdateInviteCode failed: %v", err)
	}
	if _, err := s.GetServerByInviteCode(ctx, srv.InviteCode); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old invite code still resolves: %v", err)
	}
	if _, err := s.GetServerByInviteCode(ctx, "FRESH123"); err != nil {
		t.Errorf("new invite code does not resolve: %v", err)
	}

	if err := s.UpdateServerName(ctx, "missing", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown server, got %v", err)
	}
}

func TestListServersByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	bob := seedUser(t, s, "bob")
	first := seedServer(t, s, owner.ID)
	second := seedServer(t, s, owner.ID)

	m := &store.Member{UserID: bob.ID, Role: store.RoleMember, JoinedAt: time.Now().UTC()}
	if err := s.AddMember(ctx, second.ID, m); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	servers, err := s.ListServersByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListServersByUser failed: %v", err)
	}
	if len(servers) != 2 || servers[0].ID != first.ID || servers[1].ID != second.ID {
		t.Errorf("owner servers = %v, want both in join order", servers)
	}

	servers, err = s.ListServersByUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListServersByUser failed: %v", err)
	}
	if len(servers) != 1 || servers[0].ID != second.ID {
		t.Errorf("bob servers = %v, want only the joined one", servers)
	}

	servers, err = s.ListServersByUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListServersByUser failed: %v", err)
	}
	if len(servers) != 0 {
		t.Errorf("got %d servers for a non-member, want 0", len(servers))
	}
}

func TestMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	bob := seedUser(t, s, "bob")
	srv := seedServer(t, s, owner.ID)

	m := &store.Member{UserID: bob.ID, Role: store.RoleMember, JoinedAt: time.Now().UTC()}
	if err := s.AddMember(ctx, srv.ID, m); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := s.AddMember(ctx, srv.ID, m); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate on second join, got %v", err)
	}

	members, err := s.ListMembers(ctx, srv.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("member count = %d, want 2", len(members))
	}

	if err := s.UpdateMemberRole(ctx, srv.ID, bob.ID, store.RoleModerator); err != nil {
		t.Fatalf("UpdateMemberRole failed: %v", err)
	}
	got, _ := s.GetMember(ctx, srv.ID, bob.ID)
	if got.Role != store.RoleModerator {
		t.Errorf("role = %q, want moderator", got.Role)
	}

	if err := s.RemoveMember(ctx, srv.ID, bob.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if err := s.RemoveMember(ctx, srv.ID, bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeat removal, got %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	heir := seedUser(t, s, "heir")
	srv := seedServer(t, s, owner.ID)
	if err := s.AddMember(ctx, srv.ID, &store.Member{UserID: heir.ID, Role: store.RoleMember, JoinedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	if err := s.TransferOwnership(ctx, srv.ID, owner.ID, heir.ID); err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}

	got, _ := s.GetServerByID(ctx, srv.ID)
	if got.OwnerID != heir.ID {
		t.Errorf("owner id = %q, want %q", got.OwnerID, heir.ID)
	}
	newOwner, _ := s.GetMember(ctx, srv.ID, heir.ID)
	if newOwner.Role != store.RoleOwner {
		t.Errorf("new owner role = %q, want owner", newOwner.Role)
	}
	previous, _ := s.GetMember(ctx, srv.ID, owner.ID)
	if previous.Role != store.RoleAdmin {
		t.Errorf("previous owner role = %q, want admin", previous.Role)
	}

	// A transfer not initiated by the current owner must not go through.
	if err := s.TransferOwnership(ctx, srv.ID, owner.ID, heir.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for stale owner, got %v", err)
	}
}

func TestChannelPrivacyRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	srv := seedServer(t, s, owner.ID)

	ch := &store.Channel{
		ID:           utils.NewID(),
		ServerID:     srv.ID,
		Name:         "secret",
		Type:         store.ChannelText,
		IsPrivate:    true,
		AllowedUsers: []string{owner.ID},
		Slowmode:     store.Slowmode{Enabled: true, DelaySeconds: 10},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateChannel(ctx, ch); err != nil {
		t.Fatalf("CreateChannel failed: %v", err)
	}

	got, err := s.GetChannelByID(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChannelByID failed: %v", err)
	}
	if !got.IsPrivate || len(got.AllowedUsers) != 1 || got.AllowedUsers[0] != owner.ID {
		t.Errorf("allowed users = %v, want [%s]", got.AllowedUsers, owner.ID)
	}
	if !got.Slowmode.Enabled || got.Slowmode.DelaySeconds != 10 {
		t.Errorf("slowmode = %+v, want enabled with 10s", got.Slowmode)
	}

	got.AllowedUsers = nil
	got.IsPrivate = false
	if err := s.UpdateChannel(ctx, got); err != nil {
		t.Fatalf("UpdateChannel failed: %v", err)
	}
	updated, _ := s.GetChannelByID(ctx, ch.ID)
	if updated.IsPrivate {
		t.Error("channel still private after update")
	}
}

func TestDeleteChannelCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	srv := seedServer(t, s, owner.ID)
	ch := seedChannel(t, s, srv.ID)
	msg := seedMessage(t, s, ch.ID, owner.ID, "hello", time.Now().UTC())
	if err := s.AddReaction(ctx, msg.ID, "👍", owner.ID); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}

	if err := s.DeleteChannel(ctx, ch.ID); err != nil {
		t.Fatalf("DeleteChannel failed: %v", err)
	}

	if _, err := s.GetChannelByID(ctx, ch.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected channel gone, got %v", err)
	}
	if _, err := s.GetMessageByID(ctx, msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected message gone, got %v", err)
	}
}

func TestBumpLastMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	srv := seedServer(t, s, owner.ID)
	ch := seedChannel(t, s, srv.ID)

	msg := seedMessage(t, s, ch.ID, owner.ID, "first", time.Now().UTC())
	if err := s.BumpLastMessage(ctx, ch.ID, msg.ID); err != nil {
		t.Fatalf("BumpLastMessage failed: %v", err)
	}
	if err := s.BumpLastMessage(ctx, ch.ID, msg.ID); err != nil {
		t.Fatalf("BumpLastMessage failed: %v", err)
	}

	got, _ := s.GetChannelByID(ctx, ch.ID)
	if got.LastMessageID != msg.ID {
		t.Errorf("last message id = %q, want %q", got.LastMessageID, msg.ID)
	}
	if got.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", got.MessageCount)
	}

	if err := s.BumpLastMessage(ctx, "missing", msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown channel, got %v", err)
	}
}

func TestMessageLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	srv := seedServer(t, s, owner.ID)
	ch := seedChannel(t, s, srv.ID)

	m := &store.Message{
		ID:        utils.NewID(),
		ChannelID: ch.ID,
		AuthorID:  owner.ID,
		Content:   "with file",
		Attachments: []store.Attachment{
			{URL: "https://cdn.example/doc.pdf", Filename: "doc.pdf", Filetype: "application/pdf", Size: 1024},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveMessage(ctx, m); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	got, err := s.GetMessageByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMessageByID failed: %v", err)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "doc.pdf" {
		t.Errorf("attachments = %v, want doc.pdf", got.Attachments)
	}

	editedAt := time.Now().UTC()
	if err := s.UpdateMessageContent(ctx, m.ID, "edited", editedAt); err != nil {
		t.Fatalf("UpdateMessageContent failed: %v", err)
	}
	got, _ = s.GetMessageByID(ctx, m.ID)
	if !got.Edited || got.Content != "edited" || got.EditedAt == nil {
		t.Errorf("edit not applied: %+v", got)
	}

	pinnedAt := time.Now().UTC()
	if err := s.SetPinned(ctx, m.ID, true, owner.ID, &pinnedAt); err != nil {
		t.Fatalf("SetPinned failed: %v", err)
	}
	pinned, err := s.ListPinned(ctx, ch.ID)
	if err != nil {
		t.Fatalf("ListPinned failed: %v", err)
	}
	if len(pinned) != 1 || pinned[0].ID != m.ID || pinned[0].PinnedBy != owner.ID {
		t.Errorf("pinned = %v, want message %s", pinned, m.ID)
	}

	if err := s.DeleteMessage(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if err := s.DeleteMessage(ctx, m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestListMessagesOrderAndPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	srv := seedServer(t, s, owner.ID)
	ch := seedChannel(t, s, srv.ID)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		m := seedMessage(t, s, ch.ID, owner.ID, "msg", base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, m.ID)
	}

	got, err := s.ListMessages(ctx, ch.ID, 3, nil)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	// Latest three, oldest first.
	for i, want := range ids[2:] {
		if got[i].ID != want {
			t.Errorf("message[%d] = %s, want %s", i, got[i].ID, want)
		}
	}

	before := base.Add(2 * time.Minute)
	page, err := s.ListMessages(ctx, ch.ID, 10, &before)
	if err != nil {
		t.Fatalf("ListMessages with before failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d older messages, want 2", len(page))
	}
	if page[0].ID != ids[0] || page[1].ID != ids[1] {
		t.Errorf("older page = [%s %s], want [%s %s]", page[0].ID, page[1].ID, ids[0], ids[1])
	}
}

func TestLastAuthorMessageAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	srv := seedServer(t, s, owner.ID)
	ch := seedChannel(t, s, srv.ID)

	if _, err := s.LastAuthorMessageAt(ctx, ch.ID, owner.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no messages, got %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, s, ch.ID, owner.ID, "one", base)
	seedMessage(t, s, ch.ID, owner.ID, "two", base.Add(time.Minute))

	got, err := s.LastAuthorMessageAt(ctx, ch.ID, owner.ID)
	if err != nil {
		t.Fatalf("LastAuthorMessageAt failed: %v", err)
	}
	if !got.Equal(base.Add(time.Minute)) {
		t.Errorf("last at = %v, want %v", got, base.Add(time.Minute))
	}
}

func TestReactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner")
	bob := seedUser(t, s, "bob")
	srv := seedServer(t, s, owner.ID)
	ch := seedChannel(t, s, srv.ID)
	msg := seedMessage(t, s, ch.ID, owner.ID, "react to me", time.Now().UTC())

	if err := s.AddReaction(ctx, msg.ID, "👍", owner.ID); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
	if err := s.AddReaction(ctx, msg.ID, "🔥", bob.ID); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
	if err := s.AddReaction(ctx, msg.ID, "👍", bob.ID); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
	if err := s.AddReaction(ctx, msg.ID, "👍", owner.ID); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate on repeat reaction, got %v", err)
	}

	entries, err := s.ListReactions(ctx, msg.ID)
	if err != nil {
		t.Fatalf("ListReactions failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Emoji != "👍" || entries[0].Count != 2 || len(entries[0].Users) != 2 {
		t.Errorf("first entry = %+v, want 👍 with 2 users", entries[0])
	}
	if entries[1].Emoji != "🔥" || entries[1].Count != 1 {
		t.Errorf("second entry = %+v, want 🔥 with 1 user", entries[1])
	}

	if err := s.RemoveReaction(ctx, msg.ID, "🔥", bob.ID); err != nil {
		t.Fatalf("RemoveReaction failed: %v", err)
	}
	if err := s.RemoveReaction(ctx, msg.ID, "🔥", bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeat removal, got %v", err)
	}

	entries, _ = s.ListReactions(ctx, msg.ID)
	if len(entries) != 1 {
		t.Errorf("drained emoji still listed: %v", entries)
	}
}
