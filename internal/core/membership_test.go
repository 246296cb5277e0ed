package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

func TestCreateServer(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	srv, cerr := svc.CreateServer(ctx, "  gophers  ", f.member.ID)
	if cerr != nil {
		t.Fatalf("CreateServer failed: %v", cerr)
	}
	if srv.Name != "gophers" {
		t.Errorf("name = %q, want trimmed %q", srv.Name, "gophers")
	}
	if len(srv.InviteCode) != 8 {
		t.Errorf("invite code = %q, want 8 characters", srv.InviteCode)
	}

	owner, err := f.st.GetMember(ctx, srv.ID, f.member.ID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if owner.Role != store.RoleOwner {
		t.Errorf("creator role = %s, want owner", owner.Role)
	}

	channels, err := f.st.ListChannels(ctx, srv.ID)
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != 1 || channels[0].Name != "general" || channels[0].Type != store.ChannelText {
		t.Errorf("channels = %v, want one default general text channel", channels)
	}

	_, cerr = svc.CreateServer(ctx, "", f.member.ID)
	wantCode(t, cerr, ErrCodeValidation)
	_, cerr = svc.CreateServer(ctx, strings.Repeat("x", 101), f.member.ID)
	wantCode(t, cerr, ErrCodeValidation)
}

func TestListServers(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	second, cerr := svc.CreateServer(ctx, "second", f.member.ID)
	if cerr != nil {
		t.Fatalf("CreateServer failed: %v", cerr)
	}

	servers, cerr := svc.ListServers(ctx, f.member.ID)
	if cerr != nil {
		t.Fatalf("ListServers failed: %v", cerr)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(servers))
	}
	if servers[0].ID != f.srv.ID || servers[1].ID != second.ID {
		t.Errorf("servers = [%s %s], want join order", servers[0].ID, servers[1].ID)
	}

	servers, cerr = svc.ListServers(ctx, f.outsider.ID)
	if cerr != nil {
		t.Fatalf("ListServers failed: %v", cerr)
	}
	if len(servers) != 0 {
		t.Errorf("got %d servers for an outsider, want 0", len(servers))
	}
}

func TestRenameServer(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	_, cerr := svc.RenameServer(ctx, f.srv.ID, f.mod.ID, "new name")
	wantCode(t, cerr, ErrCodeForbidden)

	_, cerr = svc.RenameServer(ctx, f.srv.ID, f.owner.ID, "  ")
	wantCode(t, cerr, ErrCodeValidation)

	srv, cerr := svc.RenameServer(ctx, f.srv.ID, f.owner.ID, "new name")
	if cerr != nil {
		t.Fatalf("RenameServer failed: %v", cerr)
	}
	if srv.Name != "new name" {
		t.Errorf("name = %q, want %q", srv.Name, "new name")
	}
}

func TestRegenerateInvite(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	_, cerr := svc.RegenerateInvite(ctx, f.srv.ID, f.member.ID)
	wantCode(t, cerr, ErrCodeForbidden)

	srv, cerr := svc.RegenerateInvite(ctx, f.srv.ID, f.owner.ID)
	if cerr != nil {
		t.Fatalf("RegenerateInvite failed: %v", cerr)
	}
	if srv.InviteCode == f.srv.InviteCode || len(srv.InviteCode) != 8 {
		t.Errorf("invite code = %q, want a fresh 8-character code", srv.InviteCode)
	}

	// The old code no longer admits anyone.
	_, cerr = svc.JoinByInvite(ctx, f.srv.InviteCode, f.outsider.ID)
	wantCode(t, cerr, ErrCodeNotFound)
	if _, cerr := svc.JoinByInvite(ctx, srv.InviteCode, f.outsider.ID); cerr != nil {
		t.Fatalf("join with new code failed: %v", cerr)
	}
}

func TestJoinByInvite(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	// Codes match case insensitively.
	srv, cerr := svc.JoinByInvite(ctx, strings.ToLower(f.srv.InviteCode), f.outsider.ID)
	if cerr != nil {
		t.Fatalf("JoinByInvite failed: %v", cerr)
	}
	if srv.ID != f.srv.ID {
		t.Errorf("joined server %s, want %s", srv.ID, f.srv.ID)
	}

	events := rec.named(EventMemberJoined)
	if len(events) != 1 {
		t.Fatalf("got %d member_joined events, want 1", len(events))
	}
	if events[0].Room != ServerRoom(f.srv.ID) {
		t.Errorf("room = %s, want %s", events[0].Room, ServerRoom(f.srv.ID))
	}
	payload := events[0].Event.Payload.(MemberJoinedPayload)
	if payload.User.Username != "stranger" {
		t.Errorf("payload user = %+v, want enriched stranger", payload.User)
	}

	_, cerr = svc.JoinByInvite(ctx, f.srv.InviteCode, f.outsider.ID)
	wantCode(t, cerr, ErrCodeConflict)

	_, cerr = svc.JoinByInvite(ctx, "NOPE1234", f.outsider.ID)
	wantCode(t, cerr, ErrCodeNotFound)
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	cerr := svc.Leave(ctx, f.srv.ID, f.owner.ID)
	wantCode(t, cerr, ErrCodeConflict)

	if cerr := svc.Leave(ctx, f.srv.ID, f.member.ID); cerr != nil {
		t.Fatalf("Leave failed: %v", cerr)
	}
	if _, err := f.st.GetMember(ctx, f.srv.ID, f.member.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("membership still present after leave: %v", err)
	}

	events := rec.named(EventMemberLeft)
	if len(events) != 1 {
		t.Fatalf("got %d member_left events, want 1", len(events))
	}
	payload := events[0].Event.Payload.(MemberLeftPayload)
	if payload.UserID != f.member.ID || payload.ServerID != f.srv.ID {
		t.Errorf("payload = %+v, want member left server", payload)
	}

	cerr = svc.Leave(ctx, f.srv.ID, f.outsider.ID)
	wantCode(t, cerr, ErrCodeForbidden)
}

func TestKick(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	// Moderators cannot kick at all.
	cerr := svc.Kick(ctx, f.srv.ID, f.mod.ID, f.member.ID)
	wantCode(t, cerr, ErrCodeForbidden)

	// The owner can never be kicked.
	cerr = svc.Kick(ctx, f.srv.ID, f.owner.ID, f.owner.ID)
	wantCode(t, cerr, ErrCodeForbidden)

	admin := f.newUser(t, "admin")
	f.addMember(t, admin.ID, store.RoleAdmin)

	// Equal rank is out of reach.
	other := f.newUser(t, "admin2")
	f.addMember(t, other.ID, store.RoleAdmin)
	cerr = svc.Kick(ctx, f.srv.ID, admin.ID, other.ID)
	wantCode(t, cerr, ErrCodeForbidden)

	if cerr := svc.Kick(ctx, f.srv.ID, admin.ID, f.member.ID); cerr != nil {
		t.Fatalf("Kick failed: %v", cerr)
	}
	if got := rec.named(EventMemberLeft); len(got) != 1 {
		t.Errorf("got %d member_left events, want 1", len(got))
	}

	cerr = svc.Kick(ctx, f.srv.ID, admin.ID, f.outsider.ID)
	wantCode(t, cerr, ErrCodeNotFound)
}

func TestChangeRole(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	cerr := svc.ChangeRole(ctx, f.srv.ID, f.mod.ID, f.member.ID, store.RoleModerator)
	wantCode(t, cerr, ErrCodeForbidden)

	cerr = svc.ChangeRole(ctx, f.srv.ID, f.owner.ID, f.member.ID, "superuser")
	wantCode(t, cerr, ErrCodeValidation)

	cerr = svc.ChangeRole(ctx, f.srv.ID, f.owner.ID, f.member.ID, store.RoleOwner)
	wantCode(t, cerr, ErrCodeForbidden)

	if cerr := svc.ChangeRole(ctx, f.srv.ID, f.owner.ID, f.member.ID, store.RoleAdmin); cerr != nil {
		t.Fatalf("ChangeRole failed: %v", cerr)
	}
	got, err := f.st.GetMember(ctx, f.srv.ID, f.member.ID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if got.Role != store.RoleAdmin {
		t.Errorf("role = %s, want admin", got.Role)
	}
}

func TestTransferOwnershipService(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	cerr := svc.TransferOwnership(ctx, f.srv.ID, f.mod.ID, f.member.ID)
	wantCode(t, cerr, ErrCodeForbidden)

	cerr = svc.TransferOwnership(ctx, f.srv.ID, f.owner.ID, f.owner.ID)
	wantCode(t, cerr, ErrCodeValidation)

	cerr = svc.TransferOwnership(ctx, f.srv.ID, f.owner.ID, f.outsider.ID)
	wantCode(t, cerr, ErrCodeNotFound)

	if cerr := svc.TransferOwnership(ctx, f.srv.ID, f.owner.ID, f.member.ID); cerr != nil {
		t.Fatalf("TransferOwnership failed: %v", cerr)
	}
	newOwner, err := f.st.GetMember(ctx, f.srv.ID, f.member.ID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if newOwner.Role != store.RoleOwner {
		t.Errorf("new owner role = %s, want owner", newOwner.Role)
	}
	previous, err := f.st.GetMember(ctx, f.srv.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if previous.Role != store.RoleAdmin {
		t.Errorf("previous owner role = %s, want admin", previous.Role)
	}
}

func TestDeleteServerOwnerOnly(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	cerr := svc.DeleteServer(ctx, f.srv.ID, f.mod.ID)
	wantCode(t, cerr, ErrCodeForbidden)

	if cerr := svc.DeleteServer(ctx, f.srv.ID, f.owner.ID); cerr != nil {
		t.Fatalf("DeleteServer failed: %v", cerr)
	}
	if _, err := f.st.GetServerByID(ctx, f.srv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("server still present after delete: %v", err)
	}
}

func TestMembersIncludePresence(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	presence := NewPresenceTracker(NewMemoryPresence(), rec, testLogger())
	svc := f.membership(rec, presence)
	ctx := context.Background()

	if err := presence.MarkOnline(ctx, f.member.ID, "c1"); err != nil {
		t.Fatalf("MarkOnline failed: %v", err)
	}

	views, cerr := svc.Members(ctx, f.srv.ID, f.member.ID)
	if cerr != nil {
		t.Fatalf("Members failed: %v", cerr)
	}
	if len(views) != 3 {
		t.Fatalf("got %d members, want 3", len(views))
	}
	byUser := make(map[string]MemberView)
	for _, v := range views {
		byUser[v.User.ID] = v
	}
	alice := byUser[f.member.ID]
	if alice.User.Username != "alice" || !alice.Online {
		t.Errorf("alice = %+v, want enriched and online", alice)
	}
	if byUser[f.mod.ID].Online {
		t.Error("mod reported online without a connection")
	}

	_, cerr = svc.Members(ctx, f.srv.ID, f.outsider.ID)
	wantCode(t, cerr, ErrCodeForbidden)
}

func TestCreateChannelRules(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	_, cerr := svc.CreateChannel(ctx, f.srv.ID, f.mod.ID, &store.Channel{Name: "nope"})
	wantCode(t, cerr, ErrCodeForbidden)

	_, cerr = svc.CreateChannel(ctx, f.srv.ID, f.owner.ID, &store.Channel{Name: "x", Type: "forum"})
	wantCode(t, cerr, ErrCodeValidation)

	_, cerr = svc.CreateChannel(ctx, f.srv.ID, f.owner.ID, &store.Channel{
		Name:     "too slow",
		Slowmode: store.Slowmode{Enabled: true, DelaySeconds: MaxSlowmodeDelay + 1},
	})
	wantCode(t, cerr, ErrCodeValidation)

	ch, cerr := svc.CreateChannel(ctx, f.srv.ID, f.owner.ID, &store.Channel{Name: "random"})
	if cerr != nil {
		t.Fatalf("CreateChannel failed: %v", cerr)
	}
	if ch.Type != store.ChannelText {
		t.Errorf("type = %s, want default text", ch.Type)
	}
	if ch.ID == "" || ch.ServerID != f.srv.ID {
		t.Errorf("channel = %+v, want assigned id and server", ch)
	}
}

func TestUpdateChannel(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	name := "renamed"
	_, cerr := svc.UpdateChannel(ctx, f.ch.ID, f.mod.ID, ChannelUpdate{Name: &name})
	wantCode(t, cerr, ErrCodeForbidden)

	bad := store.Slowmode{Enabled: true, DelaySeconds: MaxSlowmodeDelay + 1}
	_, cerr = svc.UpdateChannel(ctx, f.ch.ID, f.owner.ID, ChannelUpdate{Slowmode: &bad})
	wantCode(t, cerr, ErrCodeValidation)

	private := true
	allowed := []string{f.member.ID}
	slow := store.Slowmode{Enabled: true, DelaySeconds: 15}
	ch, cerr := svc.UpdateChannel(ctx, f.ch.ID, f.owner.ID, ChannelUpdate{
		Name:         &name,
		IsPrivate:    &private,
		AllowedUsers: &allowed,
		Slowmode:     &slow,
	})
	if cerr != nil {
		t.Fatalf("UpdateChannel failed: %v", cerr)
	}
	if ch.Name != "renamed" || !ch.IsPrivate || ch.Slowmode.DelaySeconds != 15 {
		t.Errorf("channel = %+v, want applied update", ch)
	}

	got, err := f.st.GetChannelByID(ctx, f.ch.ID)
	if err != nil {
		t.Fatalf("GetChannelByID failed: %v", err)
	}
	if !got.IsPrivate || len(got.AllowedUsers) != 1 || got.AllowedUsers[0] != f.member.ID {
		t.Errorf("persisted channel = %+v, want private with alice allowed", got)
	}

	_, cerr = svc.UpdateChannel(ctx, "missing", f.owner.ID, ChannelUpdate{Name: &name})
	wantCode(t, cerr, ErrCodeNotFound)
}

func TestChannelsFilteredByVisibility(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	hidden := f.newChannel(t, "staff", store.Slowmode{})
	hidden.IsPrivate = true
	hidden.AllowedUsers = []string{f.mod.ID}
	if err := f.st.UpdateChannel(ctx, hidden); err != nil {
		t.Fatalf("UpdateChannel failed: %v", err)
	}

	channels, cerr := svc.Channels(ctx, f.srv.ID, f.member.ID)
	if cerr != nil {
		t.Fatalf("Channels failed: %v", cerr)
	}
	if len(channels) != 1 || channels[0].ID != f.ch.ID {
		t.Errorf("member sees %d channels, want only general", len(channels))
	}

	channels, cerr = svc.Channels(ctx, f.srv.ID, f.owner.ID)
	if cerr != nil {
		t.Fatalf("Channels failed: %v", cerr)
	}
	if len(channels) != 2 {
		t.Errorf("owner sees %d channels, want 2", len(channels))
	}
}

func TestDeleteChannel(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	svc := f.membership(rec, nil)
	ctx := context.Background()

	cerr := svc.DeleteChannel(ctx, f.ch.ID, f.member.ID)
	wantCode(t, cerr, ErrCodeForbidden)

	if cerr := svc.DeleteChannel(ctx, f.ch.ID, f.owner.ID); cerr != nil {
		t.Fatalf("DeleteChannel failed: %v", cerr)
	}
	if _, err := f.st.GetChannelByID(ctx, f.ch.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("channel still present after delete: %v", err)
	}

	cerr = svc.DeleteChannel(ctx, f.ch.ID, f.owner.ID)
	wantCode(t, cerr, ErrCodeNotFound)
}
