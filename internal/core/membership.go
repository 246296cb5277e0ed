package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/utils"
)

// MemberView is a membership entry enriched with account details.
type MemberView struct {
	User     UserView   `json:"user"`
	Role     store.Role `json:"role"`
	JoinedAt time.Time  `json:"joinedAt"`
	Online   bool       `json:"online"`
}

// ChannelUpdate carries the mutable channel fields. Nil fields are left
// unchanged.
type ChannelUpdate struct {
	Name         *string
	IsPrivate    *bool
	AllowedUsers *[]string
	Slowmode     *store.Slowmode
	Position     *int
}

// MaxSlowmodeDelay bounds the per-channel slowmode interval, in seconds.
const MaxSlowmodeDelay = 21600

// Membership manages servers, channels and member rosters and announces
// roster changes to the server room.
type Membership struct {
	store     store.Store
	resolver  *Resolver
	presence  *PresenceTracker
	events    Broadcaster
	log       *zerolog.Logger
	opTimeout time.Duration
}

// NewMembership wires the membership service.
func NewMembership(st store.Store, resolver *Resolver, presence *PresenceTracker, events Broadcaster, opTimeout time.Duration, logger *zerolog.Logger) *Membership {
	return &Membership{
		store:     st,
		resolver:  resolver,
		presence:  presence,
		events:    events,
		log:       logger,
		opTimeout: opTimeout,
	}
}

func (m *Membership) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.opTimeout)
}

// CreateServer creates a server with the caller as owner, an invite code and
// a default text channel.
func (m *Membership) CreateServer(ctx context.Context, name, ownerID string) (*store.Server, *CoreError) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, Validation("server name must be 1-100 characters")
	}

	octx, cancel := m.opCtx(ctx)
	defer cancel()

	srv := &store.Server{
		ID:         utils.NewID(),
		Name:       name,
		OwnerID:    ownerID,
		InviteCode: utils.NewInviteCode(),
		CreatedAt:  time.Now().UTC(),
	}
	owner := &store.Member{
		UserID:   ownerID,
		Role:     store.RoleOwner,
		JoinedAt: srv.CreatedAt,
	}
	if err := m.store.CreateServer(octx, srv, owner); err != nil {
		return nil, m.infra(err, "create server failed")
	}

	general := &store.Channel{
		ID:        utils.NewID(),
		ServerID:  srv.ID,
		Name:      "general",
		Type:      store.ChannelText,
		CreatedAt: srv.CreatedAt,
	}
	if err := m.store.CreateChannel(octx, general); err != nil {
		m.log.Warn().Err(err).Str("server_id", srv.ID).Msg("default channel creation failed")
	}

	return srv, nil
}

// GetServer returns a server the caller is a member of.
func (m *Membership) GetServer(ctx context.Context, serverID, userID string) (*store.Server, *CoreError) {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	if _, cerr := m.resolver.ResolveServer(octx, serverID, userID); cerr != nil {
		return nil, cerr
	}
	srv, err := m.store.GetServerByID(octx, serverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("server not found")
		}
		return nil, m.infra(err, "get server failed")
	}
	return srv, nil
}

// ListServers returns the servers the caller belongs to.
func (m *Membership) ListServers(ctx context.Context, userID string) ([]*store.Server, *CoreError) {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	servers, err := m.store.ListServersByUser(octx, userID)
	if err != nil {
		return nil, m.infra(err, "list user servers failed")
	}
	return servers, nil
}

// RenameServer changes a server's name. Requires admin rank.
func (m *Membership) RenameServer(ctx context.Context, serverID, actorID, name string) (*store.Server, *CoreError) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, Validation("server name must be 1-100 characters")
	}

	octx, cancel := m.opCtx(ctx)
	defer cancel()

	actor, cerr := m.resolver.ResolveServer(octx, serverID, actorID)
	if cerr != nil {
		return nil, cerr
	}
	if !CanManageServer(actor) {
		return nil, Forbidden("no permission to manage the server")
	}

	if err := m.store.UpdateServerName(octx, serverID, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("server not found")
		}
		return nil, m.infra(err, "rename server failed")
	}
	srv, err := m.store.GetServerByID(octx, serverID)
	if err != nil {
		return nil, m.infra(err, "get server failed")
	}
	return srv, nil
}

// RegenerateInvite replaces the server's invite code, revoking the old one.
// Requires admin rank.
func (m *Membership) RegenerateInvite(ctx context.Context, serverID, actorID string) (*store.Server, *CoreError) {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	actor, cerr := m.resolver.ResolveServer(octx, serverID, actorID)
	if cerr != nil {
		return nil, cerr
	}
	if !CanManageServer(actor) {
		return nil, Forbidden("no permission to manage the server")
	}

	code := utils.NewInviteCode()
	if err := m.store.UpdateInviteCode(octx, serverID, code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("server not found")
		}
		return nil, m.infra(err, "regenerate invite failed")
	}
	srv, err := m.store.GetServerByID(octx, serverID)
	if err != nil {
		return nil, m.infra(err, "get server failed")
	}
	return srv, nil
}

// JoinByInvite adds the user to the server behind an invite code and
// announces the join to the server room.
func (m *Membership) JoinByInvite(ctx context.Context, code, userID string) (*store.Server, *CoreError) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, Validation("invite code required")
	}

	octx, cancel := m.opCtx(ctx)
	defer cancel()

	srv, err := m.store.GetServerByInviteCode(octx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("invalid invite code")
		}
		return nil, m.infra(err, "invite lookup failed")
	}

	member := &store.Member{
		UserID:   userID,
		Role:     store.RoleMember,
		JoinedAt: time.Now().UTC(),
	}
	if err := m.store.AddMember(octx, srv.ID, member); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Conflict("already a member of this server")
		}
		return nil, m.infra(err, "add member failed")
	}

	user := UserView{ID: userID}
	if u, uerr := m.store.GetUserByID(octx, userID); uerr == nil {
		user = newUserView(u)
	}
	m.events.Broadcast(ServerRoom(srv.ID), &Event{
		Name:    EventMemberJoined,
		Payload: MemberJoinedPayload{ServerID: srv.ID, User: user},
	}, nil)
	return srv, nil
}

// Leave removes the caller from the server. The owner must transfer
// ownership first.
func (m *Membership) Leave(ctx context.Context, serverID, userID string) *CoreError {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	member, cerr := m.resolver.ResolveServer(octx, serverID, userID)
	if cerr != nil {
		return cerr
	}
	if member.Role == store.RoleOwner {
		return Conflict("transfer ownership before leaving")
	}

	if err := m.store.RemoveMember(octx, serverID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("membership not found")
		}
		return m.infra(err, "remove member failed")
	}

	m.broadcastLeft(serverID, userID)
	return nil
}

// Kick removes another member. Requires admin rank and a strictly lower
// ranked target; the owner can never be kicked.
func (m *Membership) Kick(ctx context.Context, serverID, actorID, targetID string) *CoreError {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	actor, cerr := m.resolver.ResolveServer(octx, serverID, actorID)
	if cerr != nil {
		return cerr
	}
	if !CanManageServer(actor) {
		return Forbidden("no permission to remove members")
	}

	target, err := m.store.GetMember(octx, serverID, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("membership not found")
		}
		return m.infra(err, "get member failed")
	}
	if target.Role == store.RoleOwner || roleRank(target.Role) >= roleRank(actor.Role) {
		return Forbidden("cannot remove this member")
	}

	if err := m.store.RemoveMember(octx, serverID, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("membership not found")
		}
		return m.infra(err, "remove member failed")
	}

	m.broadcastLeft(serverID, targetID)
	return nil
}

// ChangeRole sets a member's role. The owner role is out of reach on both
// sides; ownership moves only through TransferOwnership.
func (m *Membership) ChangeRole(ctx context.Context, serverID, actorID, targetID string, role store.Role) *CoreError {
	if _, ok := roleRanks[role]; !ok {
		return Validation("unknown role")
	}

	octx, cancel := m.opCtx(ctx)
	defer cancel()

	actor, cerr := m.resolver.ResolveServer(octx, serverID, actorID)
	if cerr != nil {
		return cerr
	}
	target, err := m.store.GetMember(octx, serverID, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("membership not found")
		}
		return m.infra(err, "get member failed")
	}
	if !CanChangeRole(actor, target, role) {
		return Forbidden("no permission to change this member's role")
	}

	if err := m.store.UpdateMemberRole(octx, serverID, targetID, role); err != nil {
		return m.infra(err, "update member role failed")
	}
	return nil
}

// TransferOwnership hands the server to another member. Owner only; the
// previous owner becomes an admin.
func (m *Membership) TransferOwnership(ctx context.Context, serverID, fromID, toID string) *CoreError {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	actor, cerr := m.resolver.ResolveServer(octx, serverID, fromID)
	if cerr != nil {
		return cerr
	}
	if actor.Role != store.RoleOwner {
		return Forbidden("only the owner can transfer ownership")
	}
	if fromID == toID {
		return Validation("cannot transfer ownership to yourself")
	}
	if _, err := m.store.GetMember(octx, serverID, toID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("membership not found")
		}
		return m.infra(err, "get member failed")
	}

	if err := m.store.TransferOwnership(octx, serverID, fromID, toID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("server not found")
		}
		return m.infra(err, "transfer ownership failed")
	}
	return nil
}

// DeleteServer removes the server and everything under it. Owner only.
func (m *Membership) DeleteServer(ctx context.Context, serverID, actorID string) *CoreError {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	actor, cerr := m.resolver.ResolveServer(octx, serverID, actorID)
	if cerr != nil {
		return cerr
	}
	if actor.Role != store.RoleOwner {
		return Forbidden("only the owner can delete the server")
	}

	if err := m.store.DeleteServer(octx, serverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("server not found")
		}
		return m.infra(err, "delete server failed")
	}
	return nil
}

// Members lists the server roster enriched with account details and live
// presence.
func (m *Membership) Members(ctx context.Context, serverID, userID string) ([]MemberView, *CoreError) {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	if _, cerr := m.resolver.ResolveServer(octx, serverID, userID); cerr != nil {
		return nil, cerr
	}
	members, err := m.store.ListMembers(octx, serverID)
	if err != nil {
		return nil, m.infra(err, "list members failed")
	}

	views := make([]MemberView, 0, len(members))
	for _, member := range members {
		view := MemberView{
			User:     UserView{ID: member.UserID},
			Role:     member.Role,
			JoinedAt: member.JoinedAt,
			Online:   m.presence.IsOnline(octx, member.UserID),
		}
		if u, uerr := m.store.GetUserByID(octx, member.UserID); uerr == nil {
			view.User = newUserView(u)
		}
		views = append(views, view)
	}
	return views, nil
}

// CreateChannel adds a channel to the server. Requires admin rank.
func (m *Membership) CreateChannel(ctx context.Context, serverID, actorID string, ch *store.Channel) (*store.Channel, *CoreError) {
	ch.Name = strings.TrimSpace(ch.Name)
	if ch.Name == "" || len(ch.Name) > 100 {
		return nil, Validation("channel name must be 1-100 characters")
	}
	switch ch.Type {
	case store.ChannelText, store.ChannelVoice, store.ChannelAnnouncement, store.ChannelCategory:
	case "":
		ch.Type = store.ChannelText
	default:
		return nil, Validation("unknown channel type")
	}
	if cerr := validateSlowmode(ch.Slowmode); cerr != nil {
		return nil, cerr
	}

	octx, cancel := m.opCtx(ctx)
	defer cancel()

	actor, cerr := m.resolver.ResolveServer(octx, serverID, actorID)
	if cerr != nil {
		return nil, cerr
	}
	if !CanManageServer(actor) {
		return nil, Forbidden("no permission to manage channels")
	}

	ch.ID = utils.NewID()
	ch.ServerID = serverID
	ch.CreatedAt = time.Now().UTC()
	if err := m.store.CreateChannel(octx, ch); err != nil {
		return nil, m.infra(err, "create channel failed")
	}
	return ch, nil
}

// UpdateChannel applies the non-nil fields of upd. Requires admin rank. The
// channel's server binding is immutable.
func (m *Membership) UpdateChannel(ctx context.Context, channelID, actorID string, upd ChannelUpdate) (*store.Channel, *CoreError) {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	ch, err := m.store.GetChannelByID(octx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("channel not found")
		}
		return nil, m.infra(err, "get channel failed")
	}
	actor, cerr := m.resolver.ResolveServer(octx, ch.ServerID, actorID)
	if cerr != nil {
		return nil, cerr
	}
	if !CanManageServer(actor) {
		return nil, Forbidden("no permission to manage channels")
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || len(name) > 100 {
			return nil, Validation("channel name must be 1-100 characters")
		}
		ch.Name = name
	}
	if upd.IsPrivate != nil {
		ch.IsPrivate = *upd.IsPrivate
	}
	if upd.AllowedUsers != nil {
		ch.AllowedUsers = *upd.AllowedUsers
	}
	if upd.Slowmode != nil {
		if cerr := validateSlowmode(*upd.Slowmode); cerr != nil {
			return nil, cerr
		}
		ch.Slowmode = *upd.Slowmode
	}
	if upd.Position != nil {
		ch.Position = *upd.Position
	}

	if err := m.store.UpdateChannel(octx, ch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("channel not found")
		}
		return nil, m.infra(err, "update channel failed")
	}
	return ch, nil
}

// DeleteChannel removes a channel and its messages. Requires admin rank.
func (m *Membership) DeleteChannel(ctx context.Context, channelID, actorID string) *CoreError {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	ch, err := m.store.GetChannelByID(octx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("channel not found")
		}
		return m.infra(err, "get channel failed")
	}
	actor, cerr := m.resolver.ResolveServer(octx, ch.ServerID, actorID)
	if cerr != nil {
		return cerr
	}
	if !CanManageServer(actor) {
		return Forbidden("no permission to manage channels")
	}

	if err := m.store.DeleteChannel(octx, channelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("channel not found")
		}
		return m.infra(err, "delete channel failed")
	}
	return nil
}

// Channels lists the server's channels the caller can view, in position
// order.
func (m *Membership) Channels(ctx context.Context, serverID, userID string) ([]*store.Channel, *CoreError) {
	octx, cancel := m.opCtx(ctx)
	defer cancel()

	member, cerr := m.resolver.ResolveServer(octx, serverID, userID)
	if cerr != nil {
		return nil, cerr
	}
	all, err := m.store.ListChannels(octx, serverID)
	if err != nil {
		return nil, m.infra(err, "list channels failed")
	}

	visible := make([]*store.Channel, 0, len(all))
	for _, ch := range all {
		if CanView(ch, member) {
			visible = append(visible, ch)
		}
	}
	return visible, nil
}

func (m *Membership) broadcastLeft(serverID, userID string) {
	m.events.Broadcast(ServerRoom(serverID), &Event{
		Name:    EventMemberLeft,
		Payload: MemberLeftPayload{ServerID: serverID, UserID: userID},
	}, nil)
}

func validateSlowmode(s store.Slowmode) *CoreError {
	if s.DelaySeconds < 0 || s.DelaySeconds > MaxSlowmodeDelay {
		return Validation(fmt.Sprintf("slowmode delay must be 0-%d seconds", MaxSlowmodeDelay))
	}
	return nil
}

func (m *Membership) infra(err error, msg string) *CoreError {
	m.log.Error().Err(err).Msg(msg)
	return Infrastructure(err)
}
