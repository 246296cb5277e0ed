package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// Action is a permission-gated message operation.
type Action string

const (
	ActionSend   Action = "send"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionPin    Action = "pin"
)

var roleRanks = map[store.Role]int{
	store.RoleMember:    0,
	store.RoleModerator: 1,
	store.RoleAdmin:     2,
	store.RoleOwner:     3,
}

func roleRank(r store.Role) int {
	return roleRanks[r]
}

// CanView reports whether a member may see a channel. Private channels are
// visible only to explicitly allowed users and to admins and the owner.
func CanView(ch *store.Channel, m *store.Member) bool {
	if m == nil {
		return false
	}
	if !ch.IsPrivate {
		return true
	}
	if roleRank(m.Role) >= roleRank(store.RoleAdmin) {
		return true
	}
	return slices.Contains(ch.AllowedUsers, m.UserID)
}

// CanModerate reports whether the member holds moderator rank or above.
func CanModerate(m *store.Member) bool {
	return m != nil && roleRank(m.Role) >= roleRank(store.RoleModerator)
}

// CanManageServer reports whether the member may create, edit or delete
// channels and change server settings. Requires admin rank or above.
func CanManageServer(m *store.Member) bool {
	return m != nil && roleRank(m.Role) >= roleRank(store.RoleAdmin)
}

// CanActOnMessage applies the per-action rules for an existing message.
// Editing requires authorship; deleting requires authorship or moderator
// rank; pinning requires moderator rank regardless of authorship.
func CanActOnMessage(msg *store.Message, m *store.Member, action Action) bool {
	if m == nil {
		return false
	}
	switch action {
	case ActionEdit:
		return msg.AuthorID == m.UserID
	case ActionDelete:
		return msg.AuthorID == m.UserID || CanModerate(m)
	case ActionPin:
		return CanModerate(m)
	default:
		return false
	}
}

// CanChangeRole reports whether actor may set target's role to newRole. The
// owner role is never assigned or removed here; ownership moves only through
// an explicit transfer.
func CanChangeRole(actor, target *store.Member, newRole store.Role) bool {
	if actor == nil || target == nil {
		return false
	}
	if target.Role == store.RoleOwner || newRole == store.RoleOwner {
		return false
	}
	if actor.UserID == target.UserID {
		return false
	}
	return roleRank(actor.Role) >= roleRank(store.RoleAdmin)
}

// Resolver loads the channel and acting member behind a channel-scoped
// operation and applies the visibility gate.
type Resolver struct {
	channels store.ChannelStore
	servers  store.ServerStore
}

// NewResolver creates a permission resolver over the given stores.
func NewResolver(channels store.ChannelStore, servers store.ServerStore) *Resolver {
	return &Resolver{channels: channels, servers: servers}
}

// Resolve fetches the channel and the user's membership in its server.
// Returns NotFound for an unknown channel and Forbidden when the user is not
// a member or the channel is private and the user is not allowed in.
func (r *Resolver) Resolve(ctx context.Context, channelID, userID string) (*store.Channel, *store.Member, *CoreError) {
	ch, err := r.channels.GetChannelByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, NotFound("channel not found")
		}
		return nil, nil, Infrastructure(fmt.Errorf("get channel: %w", err))
	}

	member, err := r.servers.GetMember(ctx, ch.ServerID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, Forbidden("not a member of this server")
		}
		return nil, nil, Infrastructure(fmt.Errorf("get member: %w", err))
	}

	if !CanView(ch, member) {
		return nil, nil, Forbidden("no access to this channel")
	}

	return ch, member, nil
}

// ResolveServer fetches the user's membership in a server without a channel
// gate. Returns NotFound for an unknown server, Forbidden for a non-member.
func (r *Resolver) ResolveServer(ctx context.Context, serverID, userID string) (*store.Member, *CoreError) {
	member, err := r.servers.GetMember(ctx, serverID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if _, serr := r.servers.GetServerByID(ctx, serverID); errors.Is(serr, store.ErrNotFound) {
				return nil, NotFound("server not found")
			}
			return nil, Forbidden("not a member of this server")
		}
		return nil, Infrastructure(fmt.Errorf("get member: %w", err))
	}
	return member, nil
}
