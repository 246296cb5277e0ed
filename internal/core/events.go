package core

import (
	"time"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// Outbound event names. These names and their payload shapes are a stable
// contract with clients.
const (
	EventNewMessage       = "new_message"
	EventMessageUpdated   = "message_updated"
	EventMessageDeleted   = "message_deleted"
	EventMessagePinned    = "message_pinned"
	EventMessageUnpinned  = "message_unpinned"
	EventReactionAdded    = "message_reaction_added"
	EventReactionRemoved  = "message_reaction_removed"
	EventUserStatusChange = "user_status_change"
	EventUserTyping       = "user_typing"
	EventMemberJoined     = "server_member_joined"
	EventMemberLeft       = "server_member_left"
	EventVoiceSignal      = "voice_signal"
)

// Event is a named payload delivered to room members.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data,omitempty"`
}

// UserView is the enriched author/member representation embedded in events.
type UserView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatar,omitempty"`
}

// AttachmentView mirrors store.Attachment on the wire.
type AttachmentView struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Filetype string `json:"filetype"`
	Size     int64  `json:"size"`
}

// ReactionView is one aggregated emoji entry on a message.
type ReactionView struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// MessageView is the enriched message payload for new_message and
// message_updated events and for REST responses.
type MessageView struct {
	ID          string           `json:"id"`
	ChannelID   string           `json:"channelId"`
	Author      UserView         `json:"author"`
	Content     string           `json:"content"`
	Attachments []AttachmentView `json:"attachments,omitempty"`
	Reactions   []ReactionView   `json:"reactions,omitempty"`
	ReferenceID string           `json:"referenceId,omitempty"`
	Edited      bool             `json:"edited"`
	EditedAt    *time.Time       `json:"editedAt,omitempty"`
	Pinned      bool             `json:"pinned"`
	PinnedAt    *time.Time       `json:"pinnedAt,omitempty"`
	PinnedBy    string           `json:"pinnedBy,omitempty"`
	CreatedAt   time.Time        `json:"timestamp"`
}

// MessageDeletedPayload is the message_deleted event body.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId"`
}

// MessagePinnedPayload is the message_pinned event body.
type MessagePinnedPayload struct {
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId"`
	PinnedBy  string `json:"pinnedBy"`
}

// ReactionAddedPayload is the message_reaction_added event body. Reaction is
// the aggregated entry after the add.
type ReactionAddedPayload struct {
	MessageID string       `json:"messageId"`
	Emoji     string       `json:"emoji"`
	UserID    string       `json:"userId"`
	Reaction  ReactionView `json:"reaction"`
}

// ReactionRemovedPayload is the message_reaction_removed event body.
type ReactionRemovedPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
}

// StatusChangePayload is the user_status_change event body.
type StatusChangePayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "online" or "offline"
}

// TypingPayload is the user_typing event body.
type TypingPayload struct {
	UserID    string `json:"userId"`
	IsTyping  bool   `json:"isTyping"`
	ChannelID string `json:"channelId"`
}

// MemberJoinedPayload is the server_member_joined event body.
type MemberJoinedPayload struct {
	ServerID string   `json:"serverId"`
	User     UserView `json:"user"`
}

// MemberLeftPayload is the server_member_left event body.
type MemberLeftPayload struct {
	ServerID string `json:"serverId"`
	UserID   string `json:"userId"`
}

// VoiceSignalPayload is an opaque peer-negotiation relay. Signal content is
// never inspected.
type VoiceSignalPayload struct {
	From   string `json:"from"`
	Signal any    `json:"signal"`
}

func newUserView(u *store.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

func newReactionView(r store.Reaction) ReactionView {
	return ReactionView{Emoji: r.Emoji, Users: r.Users, Count: r.Count}
}

func newMessageView(m *store.Message, author UserView) *MessageView {
	view := &MessageView{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		Author:      author,
		Content:     m.Content,
		ReferenceID: m.ReferenceID,
		Edited:      m.Edited,
		EditedAt:    m.EditedAt,
		Pinned:      m.Pinned,
		PinnedAt:    m.PinnedAt,
		PinnedBy:    m.PinnedBy,
		CreatedAt:   m.CreatedAt,
	}
	for _, a := range m.Attachments {
		view.Attachments = append(view.Attachments, AttachmentView{
			URL:      a.URL,
			Filename: a.Filename,
			Filetype: a.Filetype,
			Size:     a.Size,
		})
	}
	for _, r := range m.Reactions {
		view.Reactions = append(view.Reactions, newReactionView(r))
	}
	return view
}
