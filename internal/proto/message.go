package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoinServer     = "join_server"
	InboundTypeLeaveServer    = "leave_server"
	InboundTypeJoinChannel    = "join_channel"
	InboundTypeLeaveChannel   = "leave_channel"
	InboundTypeUserOnline     = "user_online"
	InboundTypeSendMessage    = "send_message"
	InboundTypeTyping         = "typing"
	InboundTypeStopTyping     = "stop_typing"
	InboundTypeAddReaction    = "add_reaction"
	InboundTypeRemoveReaction = "remove_reaction"
	InboundTypeVoiceSignal    = "voice_signal"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinServerData subscribes the connection to a server's event room.
type JoinServerData struct {
	ServerID string `json:"serverId"`
}

// JoinChannelData subscribes the connection to a channel's event room.
type JoinChannelData struct {
	ChannelID string `json:"channelId"`
}

// AttachmentData is file metadata sent alongside a message.
type AttachmentData struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Filetype string `json:"filetype"`
	Size     int64  `json:"size"`
}

// SendMessageData posts a message to a channel.
type SendMessageData struct {
	ChannelID   string           `json:"channelId"`
	Content     string           `json:"content"`
	Attachments []AttachmentData `json:"attachments,omitempty"`
	ReferenceID string           `json:"referenceId,omitempty"`
}

// TypingData marks the sender as typing (or stopped) in a channel.
type TypingData struct {
	ChannelID string `json:"channelId"`
}

// ReactionData adds or removes an emoji reaction on a message.
type ReactionData struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// VoiceSignalData relays opaque peer-negotiation payloads between two
// connections. The signal body is never inspected.
type VoiceSignalData struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response. RetryAfter carries the
// remaining slowmode cooldown in seconds for rate_limited errors.
type Error struct {
	Code       string `json:"code"`
	Msg        string `json:"msg"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
