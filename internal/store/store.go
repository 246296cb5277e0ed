package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors implementations must return so callers can classify outcomes.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")
)

// Role is the per-server capability tier of a member.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// User represents a registered account.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
}

// Member is a user's membership fact inside a server.
type Member struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// Server groups channels and members under one owner.
type Server struct {
	ID         string
	Name       string
	OwnerID    string
	InviteCode string // empty when the server is not joinable by code
	CreatedAt  time.Time
}

// ChannelType describes what a channel carries.
type ChannelType string

const (
	ChannelText         ChannelType = "text"
	ChannelVoice        ChannelType = "voice"
	ChannelAnnouncement ChannelType = "announcement"
	ChannelCategory     ChannelType = "category"
)

// Slowmode is the per-channel minimum interval between messages from one author.
type Slowmode struct {
	Enabled      bool
	DelaySeconds int // 0..21600
}

// Channel belongs to exactly one server for its whole lifetime.
type Channel struct {
	ID            string
	ServerID      string
	Name          string
	Type          ChannelType
	IsPrivate     bool
	AllowedUsers  []string // meaningful only when IsPrivate
	Slowmode      Slowmode
	Position      int
	LastMessageID string // derived, eventually consistent
	MessageCount  int64  // derived, eventually consistent
	CreatedAt     time.Time
}

// Attachment is file metadata; the blob itself lives behind the URL.
type Attachment struct {
	URL      string
	Filename string
	Filetype string
	Size     int64
}

// Reaction aggregates one emoji on one message. Count always equals len(Users).
type Reaction struct {
	Emoji string
	Users []string
	Count int
}

// Message is a persisted chat message. A message with empty content carries
// at least one attachment.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	Content     string
	Attachments []Attachment
	Reactions   []Reaction
	ReferenceID string // optional reply target
	Edited      bool
	EditedAt    *time.Time
	Pinned      bool
	PinnedAt    *time.Time
	PinnedBy    string
	CreatedAt   time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ServerStore handles server and membership persistence.
type ServerStore interface {
	CreateServer(ctx context.Context, s *Server, owner *Member) error
	GetServerByID(ctx context.Context, id string) (*Server, error)
	GetServerByInviteCode(ctx context.Context, code string) (*Server, error)

	// ListServersByUser returns the servers the user is a member of, in
	// join order.
	ListServersByUser(ctx context.Context, userID string) ([]*Server, error)

	UpdateServerName(ctx context.Context, id, name string) error
	UpdateInviteCode(ctx context.Context, id, code string) error
	DeleteServer(ctx context.Context, id string) error

	AddMember(ctx context.Context, serverID string, m *Member) error
	RemoveMember(ctx context.Context, serverID, userID string) error
	GetMember(ctx context.Context, serverID, userID string) (*Member, error)
	ListMembers(ctx context.Context, serverID string) ([]*Member, error)
	UpdateMemberRole(ctx context.Context, serverID, userID string, role Role) error
	TransferOwnership(ctx context.Context, serverID, fromUserID, toUserID string) error
}

// ChannelStore handles channel persistence.
type ChannelStore interface {
	CreateChannel(ctx context.Context, c *Channel) error
	GetChannelByID(ctx context.Context, id string) (*Channel, error)
	ListChannels(ctx context.Context, serverID string) ([]*Channel, error)
	UpdateChannel(ctx context.Context, c *Channel) error

	// DeleteChannel removes the channel and cascades to its messages.
	DeleteChannel(ctx context.Context, id string) error

	// BumpLastMessage atomically sets the channel's last message reference and
	// increments its message counter.
	BumpLastMessage(ctx context.Context, channelID, messageID string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	SaveMessage(ctx context.Context, m *Message) error
	GetMessageByID(ctx context.Context, id string) (*Message, error)

	// ListMessages returns up to limit messages in chronological order.
	// A non-nil before restricts results to messages created earlier.
	ListMessages(ctx context.Context, channelID string, limit int, before *time.Time) ([]*Message, error)

	UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error
	DeleteMessage(ctx context.Context, id string) error
	SetPinned(ctx context.Context, id string, pinned bool, pinnedBy string, pinnedAt *time.Time) error
	ListPinned(ctx context.Context, channelID string) ([]*Message, error)

	// LastAuthorMessageAt returns the creation time of the author's most
	// recent message in the channel, or ErrNotFound if they have none.
	// This lookup is authoritative for the slowmode gate.
	LastAuthorMessageAt(ctx context.Context, channelID, authorID string) (time.Time, error)

	// AddReaction records that a user reacted with emoji. Returns ErrDuplicate
	// if the user already reacted with that emoji on that message.
	AddReaction(ctx context.Context, messageID, emoji, userID string) error

	// RemoveReaction deletes a user's reaction. Returns ErrNotFound if the
	// user had not reacted with that emoji.
	RemoveReaction(ctx context.Context, messageID, emoji, userID string) error

	// ListReactions returns the aggregated reaction entries of a message in
	// first-reacted order. Drained entries do not appear.
	ListReactions(ctx context.Context, messageID string) ([]Reaction, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ServerStore
	ChannelStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
