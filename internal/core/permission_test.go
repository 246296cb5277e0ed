package core

import (
	"testing"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

func member(userID string, role store.Role) *store.Member {
	return &store.Member{UserID: userID, Role: role}
}

func TestCanView(t *testing.T) {
	public := &store.Channel{ID: "ch", IsPrivate: false}
	private := &store.Channel{ID: "ch", IsPrivate: true, AllowedUsers: []string{"u1"}}

	tests := []struct {
		name string
		ch   *store.Channel
		m    *store.Member
		want bool
	}{
		{"public visible to member", public, member("u9", store.RoleMember), true},
		{"public invisible to non-member", public, nil, false},
		{"private visible to allowed user", private, member("u1", store.RoleMember), true},
		{"private invisible to other member", private, member("u2", store.RoleMember), false},
		{"private invisible to moderator", private, member("u3", store.RoleModerator), false},
		{"private visible to admin", private, member("u4", store.RoleAdmin), true},
		{"private visible to owner", private, member("u5", store.RoleOwner), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanView(tt.ch, tt.m); got != tt.want {
				t.Errorf("CanView = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanActOnMessage(t *testing.T) {
	msg := &store.Message{ID: "m1", AuthorID: "author"}

	tests := []struct {
		name   string
		m      *store.Member
		action Action
		want   bool
	}{
		{"author edits own", member("author", store.RoleMember), ActionEdit, true},
		{"moderator cannot edit others", member("mod", store.RoleModerator), ActionEdit, false},
		{"owner cannot edit others", member("boss", store.RoleOwner), ActionEdit, false},
		{"author deletes own", member("author", store.RoleMember), ActionDelete, true},
		{"member cannot delete others", member("other", store.RoleMember), ActionDelete, false},
		{"moderator deletes others", member("mod", store.RoleModerator), ActionDelete, true},
		{"member cannot pin own", member("author", store.RoleMember), ActionPin, false},
		{"moderator pins", member("mod", store.RoleModerator), ActionPin, true},
		{"admin pins", member("adm", store.RoleAdmin), ActionPin, true},
		{"nil member denied", nil, ActionDelete, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanActOnMessage(msg, tt.m, tt.action); got != tt.want {
				t.Errorf("CanActOnMessage(%s) = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestCanChangeRole(t *testing.T) {
	tests := []struct {
		name    string
		actor   *store.Member
		target  *store.Member
		newRole store.Role
		want    bool
	}{
		{"admin promotes member", member("a", store.RoleAdmin), member("b", store.RoleMember), store.RoleModerator, true},
		{"owner demotes admin", member("a", store.RoleOwner), member("b", store.RoleAdmin), store.RoleMember, true},
		{"moderator cannot change roles", member("a", store.RoleModerator), member("b", store.RoleMember), store.RoleModerator, false},
		{"owner role never assigned", member("a", store.RoleOwner), member("b", store.RoleAdmin), store.RoleOwner, false},
		{"owner target untouchable", member("a", store.RoleAdmin), member("b", store.RoleOwner), store.RoleMember, false},
		{"no self changes", member("a", store.RoleAdmin), member("a", store.RoleAdmin), store.RoleMember, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanChangeRole(tt.actor, tt.target, tt.newRole); got != tt.want {
				t.Errorf("CanChangeRole = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanManageServer(t *testing.T) {
	if CanManageServer(member("u", store.RoleModerator)) {
		t.Error("moderator should not manage server")
	}
	if !CanManageServer(member("u", store.RoleAdmin)) {
		t.Error("admin should manage server")
	}
	if CanManageServer(nil) {
		t.Error("nil member should not manage server")
	}
}
