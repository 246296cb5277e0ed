package core

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/utils"
)

// MaxContentLength bounds message content in characters.
const MaxContentLength = 2000

// SendRequest carries everything needed to post a message.
type SendRequest struct {
	ChannelID   string
	AuthorID    string
	Content     string
	Attachments []store.Attachment
	ReferenceID string
}

// Pipeline runs message operations through the fixed stage order: authorize,
// rate-check, persist, enrich, broadcast. Persist and broadcast of one
// channel are serialized so events leave in commit order.
type Pipeline struct {
	store     store.Store
	resolver  *Resolver
	gate      *SlowmodeGate
	reactions *ReactionAggregator
	events    Broadcaster
	log       *zerolog.Logger
	opTimeout time.Duration
	chanLocks *keyedMutex
}

// NewPipeline wires the message pipeline. opTimeout bounds each store
// interaction; zero disables the bound.
func NewPipeline(st store.Store, resolver *Resolver, gate *SlowmodeGate, reactions *ReactionAggregator, events Broadcaster, opTimeout time.Duration, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:     st,
		resolver:  resolver,
		gate:      gate,
		reactions: reactions,
		events:    events,
		log:       logger,
		opTimeout: opTimeout,
		chanLocks: newKeyedMutex(),
	}
}

func (p *Pipeline) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.opTimeout)
}

// Send validates, authorizes, rate-checks, persists, enriches and broadcasts
// a new message. Returns the enriched view delivered to the channel room.
func (p *Pipeline) Send(ctx context.Context, req SendRequest) (*MessageView, *CoreError) {
	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Attachments) == 0 {
		return nil, Validation("message requires content or attachments")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, Validation("message content too long")
	}

	octx, cancel := p.opCtx(ctx)
	defer cancel()

	ch, member, cerr := p.resolver.Resolve(octx, req.ChannelID, req.AuthorID)
	if cerr != nil {
		return nil, cerr
	}
	if ch.Type == store.ChannelCategory {
		return nil, Validation("cannot post to a category channel")
	}
	if ch.Type == store.ChannelAnnouncement && !CanModerate(member) {
		return nil, Forbidden("only moderators can post announcements")
	}

	unlock := p.chanLocks.Lock(ch.ID)
	defer unlock()

	now := time.Now().UTC()
	decision, err := p.gate.Check(octx, ch, req.AuthorID, now)
	if err != nil {
		return nil, p.infra(err, "slowmode check failed")
	}
	if !decision.Allowed {
		return nil, RateLimited(decision.RetryAfter)
	}

	msg := &store.Message{
		ID:          utils.NewID(),
		ChannelID:   ch.ID,
		AuthorID:    req.AuthorID,
		Content:     content,
		Attachments: req.Attachments,
		ReferenceID: req.ReferenceID,
		CreatedAt:   now,
	}
	if err := p.store.SaveMessage(octx, msg); err != nil {
		return nil, p.infra(err, "save message failed")
	}
	p.gate.Record(ch, req.AuthorID, now)

	// Derived channel metadata is best effort; a failed bump never voids a
	// committed message.
	if err := p.store.BumpLastMessage(octx, ch.ID, msg.ID); err != nil {
		p.log.Warn().Err(err).
			Str("channel_id", ch.ID).
			Str("message_id", msg.ID).
			Msg("bump last message failed")
	}

	view := p.enrich(octx, msg)
	p.events.Broadcast(ChannelRoom(ch.ID), &Event{Name: EventNewMessage, Payload: view}, nil)
	return view, nil
}

// Edit replaces a message's content. Only the author may edit, any rank.
func (p *Pipeline) Edit(ctx context.Context, messageID, editorID, content string) (*MessageView, *CoreError) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Validation("message content required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, Validation("message content too long")
	}

	octx, cancel := p.opCtx(ctx)
	defer cancel()

	msg, member, cerr := p.loadForAction(octx, messageID, editorID)
	if cerr != nil {
		return nil, cerr
	}
	if !CanActOnMessage(msg, member, ActionEdit) {
		return nil, Forbidden("only the author can edit a message")
	}

	unlock := p.chanLocks.Lock(msg.ChannelID)
	defer unlock()

	editedAt := time.Now().UTC()
	if err := p.store.UpdateMessageContent(octx, msg.ID, content, editedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("message not found")
		}
		return nil, p.infra(err, "update message failed")
	}

	msg.Content = content
	msg.Edited = true
	msg.EditedAt = &editedAt
	view := p.enrich(octx, msg)
	p.events.Broadcast(ChannelRoom(msg.ChannelID), &Event{Name: EventMessageUpdated, Payload: view}, nil)
	return view, nil
}

// Delete removes a message. Allowed for the author and for moderator rank
// and above.
func (p *Pipeline) Delete(ctx context.Context, messageID, actorID string) *CoreError {
	octx, cancel := p.opCtx(ctx)
	defer cancel()

	msg, member, cerr := p.loadForAction(octx, messageID, actorID)
	if cerr != nil {
		return cerr
	}
	if !CanActOnMessage(msg, member, ActionDelete) {
		return Forbidden("no permission to delete this message")
	}

	unlock := p.chanLocks.Lock(msg.ChannelID)
	defer unlock()

	if err := p.store.DeleteMessage(octx, msg.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("message not found")
		}
		return p.infra(err, "delete message failed")
	}

	p.events.Broadcast(ChannelRoom(msg.ChannelID), &Event{
		Name:    EventMessageDeleted,
		Payload: MessageDeletedPayload{MessageID: msg.ID, ChannelID: msg.ChannelID},
	}, nil)
	return nil
}

// Pin marks a message as pinned. Requires moderator rank or above. Pinning
// an already pinned message is a no-op that emits no event.
func (p *Pipeline) Pin(ctx context.Context, messageID, actorID string) *CoreError {
	return p.setPinned(ctx, messageID, actorID, true)
}

// Unpin clears a message's pinned mark. Requires moderator rank or above.
// Unpinning a message that is not pinned is a no-op that emits no event.
func (p *Pipeline) Unpin(ctx context.Context, messageID, actorID string) *CoreError {
	return p.setPinned(ctx, messageID, actorID, false)
}

func (p *Pipeline) setPinned(ctx context.Context, messageID, actorID string, pinned bool) *CoreError {
	octx, cancel := p.opCtx(ctx)
	defer cancel()

	msg, member, cerr := p.loadForAction(octx, messageID, actorID)
	if cerr != nil {
		return cerr
	}
	if !CanActOnMessage(msg, member, ActionPin) {
		return Forbidden("no permission to pin in this channel")
	}
	if msg.Pinned == pinned {
		return nil
	}

	unlock := p.chanLocks.Lock(msg.ChannelID)
	defer unlock()

	var pinnedBy string
	var pinnedAt *time.Time
	name := EventMessageUnpinned
	if pinned {
		now := time.Now().UTC()
		pinnedBy = actorID
		pinnedAt = &now
		name = EventMessagePinned
	}
	if err := p.store.SetPinned(octx, msg.ID, pinned, pinnedBy, pinnedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("message not found")
		}
		return p.infra(err, "set pinned failed")
	}

	p.events.Broadcast(ChannelRoom(msg.ChannelID), &Event{
		Name:    name,
		Payload: MessagePinnedPayload{MessageID: msg.ID, ChannelID: msg.ChannelID, PinnedBy: pinnedBy},
	}, nil)
	return nil
}

// AddReaction records a reaction and broadcasts the aggregated entry. Any
// member who can view the channel may react.
func (p *Pipeline) AddReaction(ctx context.Context, messageID, emoji, userID string) (ReactionView, *CoreError) {
	if strings.TrimSpace(emoji) == "" {
		return ReactionView{}, Validation("emoji required")
	}

	octx, cancel := p.opCtx(ctx)
	defer cancel()

	msg, _, cerr := p.loadForAction(octx, messageID, userID)
	if cerr != nil {
		return ReactionView{}, cerr
	}

	entry, cerr := p.reactions.Add(octx, msg.ID, emoji, userID)
	if cerr != nil {
		return ReactionView{}, cerr
	}

	p.events.Broadcast(ChannelRoom(msg.ChannelID), &Event{
		Name: EventReactionAdded,
		Payload: ReactionAddedPayload{
			MessageID: msg.ID,
			Emoji:     emoji,
			UserID:    userID,
			Reaction:  entry,
		},
	}, nil)
	return entry, nil
}

// RemoveReaction deletes a user's own reaction and broadcasts the removal.
func (p *Pipeline) RemoveReaction(ctx context.Context, messageID, emoji, userID string) *CoreError {
	octx, cancel := p.opCtx(ctx)
	defer cancel()

	msg, _, cerr := p.loadForAction(octx, messageID, userID)
	if cerr != nil {
		return cerr
	}

	if cerr := p.reactions.Remove(octx, msg.ID, emoji, userID); cerr != nil {
		return cerr
	}

	p.events.Broadcast(ChannelRoom(msg.ChannelID), &Event{
		Name:    EventReactionRemoved,
		Payload: ReactionRemovedPayload{MessageID: msg.ID, Emoji: emoji, UserID: userID},
	}, nil)
	return nil
}

// History returns up to limit messages of a channel in chronological order,
// enriched with author details. before restricts to earlier messages.
func (p *Pipeline) History(ctx context.Context, channelID, userID string, limit int, before *time.Time) ([]*MessageView, *CoreError) {
	limit = clampLimit(limit)

	octx, cancel := p.opCtx(ctx)
	defer cancel()

	if _, _, cerr := p.resolver.Resolve(octx, channelID, userID); cerr != nil {
		return nil, cerr
	}

	msgs, err := p.store.ListMessages(octx, channelID, limit, before)
	if err != nil {
		return nil, p.infra(err, "list messages failed")
	}
	return p.enrichAll(octx, msgs), nil
}

// Pinned returns the pinned messages of a channel, most recently pinned
// first.
func (p *Pipeline) Pinned(ctx context.Context, channelID, userID string) ([]*MessageView, *CoreError) {
	octx, cancel := p.opCtx(ctx)
	defer cancel()

	if _, _, cerr := p.resolver.Resolve(octx, channelID, userID); cerr != nil {
		return nil, cerr
	}

	msgs, err := p.store.ListPinned(octx, channelID)
	if err != nil {
		return nil, p.infra(err, "list pinned failed")
	}
	return p.enrichAll(octx, msgs), nil
}

// clampLimit bounds a requested page size to 1..100, defaulting to 50.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 100:
		return 100
	default:
		return limit
	}
}

// loadForAction fetches the message and verifies the actor can view its
// channel.
func (p *Pipeline) loadForAction(ctx context.Context, messageID, actorID string) (*store.Message, *store.Member, *CoreError) {
	msg, err := p.store.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, NotFound("message not found")
		}
		return nil, nil, p.infra(err, "get message failed")
	}
	_, member, cerr := p.resolver.Resolve(ctx, msg.ChannelID, actorID)
	if cerr != nil {
		return nil, nil, cerr
	}
	return msg, member, nil
}

// enrich attaches author details to a message. A failed author lookup
// degrades to an ID-only view rather than failing the operation.
func (p *Pipeline) enrich(ctx context.Context, msg *store.Message) *MessageView {
	author := UserView{ID: msg.AuthorID}
	if u, err := p.store.GetUserByID(ctx, msg.AuthorID); err == nil {
		author = newUserView(u)
	} else {
		p.log.Warn().Err(err).Str("user_id", msg.AuthorID).Msg("author lookup failed")
	}
	return newMessageView(msg, author)
}

func (p *Pipeline) enrichAll(ctx context.Context, msgs []*store.Message) []*MessageView {
	authors := make(map[string]UserView)
	views := make([]*MessageView, 0, len(msgs))
	for _, msg := range msgs {
		author, ok := authors[msg.AuthorID]
		if !ok {
			author = UserView{ID: msg.AuthorID}
			if u, err := p.store.GetUserByID(ctx, msg.AuthorID); err == nil {
				author = newUserView(u)
			}
			authors[msg.AuthorID] = author
		}
		views = append(views, newMessageView(msg, author))
	}
	return views
}

func (p *Pipeline) infra(err error, msg string) *CoreError {
	p.log.Error().Err(err).Msg(msg)
	return Infrastructure(err)
}
