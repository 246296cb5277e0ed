package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/core"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/voice"
)

// ChannelHandlers provides HTTP handlers for channel endpoints.
type ChannelHandlers struct {
	membership *core.Membership
	resolver   *core.Resolver
	voice      *voice.Provider
	log        *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(membership *core.Membership, resolver *core.Resolver, voiceProvider *voice.Provider, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{membership: membership, resolver: resolver, voice: voiceProvider, log: logger}
}

// SlowmodeBody represents slowmode settings in channel requests and responses.
type SlowmodeBody struct {
	Enabled      bool `json:"enabled"`
	DelaySeconds int  `json:"delaySeconds"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID           string            `json:"id"`
	ServerID     string            `json:"serverId"`
	Name         string            `json:"name"`
	Type         store.ChannelType `json:"type"`
	IsPrivate    bool              `json:"isPrivate"`
	AllowedUsers []string          `json:"allowedUsers,omitempty"`
	Slowmode     SlowmodeBody      `json:"slowmode"`
	Position     int               `json:"position"`
	MessageCount int64             `json:"messageCount"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func channelResponse(ch *store.Channel) ChannelResponse {
	return ChannelResponse{
		ID:           ch.ID,
		ServerID:     ch.ServerID,
		Name:         ch.Name,
		Type:         ch.Type,
		IsPrivate:    ch.IsPrivate,
		AllowedUsers: ch.AllowedUsers,
		Slowmode:     SlowmodeBody{Enabled: ch.Slowmode.Enabled, DelaySeconds: ch.Slowmode.DelaySeconds},
		Position:     ch.Position,
		MessageCount: ch.MessageCount,
		CreatedAt:    ch.CreatedAt,
	}
}

// CreateChannelRequest represents the channel creation request body.
type CreateChannelRequest struct {
	Name         string            `json:"name" binding:"required"`
	Type         store.ChannelType `json:"type"`
	IsPrivate    bool              `json:"isPrivate"`
	AllowedUsers []string          `json:"allowedUsers"`
	Slowmode     *SlowmodeBody     `json:"slowmode"`
	Position     int               `json:"position"`
}

// List returns the server's channels visible to the caller.
// GET /api/servers/:id/channels
func (h *ChannelHandlers) List(c *gin.Context) {
	channels, cerr := h.membership.Channels(c.Request.Context(), c.Param("id"), currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}

	resp := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		resp = append(resp, channelResponse(ch))
	}
	c.JSON(http.StatusOK, resp)
}

// Create adds a channel to a server.
// POST /api/servers/:id/channels
func (h *ChannelHandlers) Create(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ch := &store.Channel{
		Name:         req.Name,
		Type:         req.Type,
		IsPrivate:    req.IsPrivate,
		AllowedUsers: req.AllowedUsers,
		Position:     req.Position,
	}
	if req.Slowmode != nil {
		ch.Slowmode = store.Slowmode{Enabled: req.Slowmode.Enabled, DelaySeconds: req.Slowmode.DelaySeconds}
	}

	created, cerr := h.membership.CreateChannel(c.Request.Context(), c.Param("id"), currentUserID(c), ch)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusCreated, channelResponse(created))
}

// UpdateChannelRequest represents the channel update request body. Absent
// fields are left unchanged.
type UpdateChannelRequest struct {
	Name         *string       `json:"name"`
	IsPrivate    *bool         `json:"isPrivate"`
	AllowedUsers *[]string     `json:"allowedUsers"`
	Slowmode     *SlowmodeBody `json:"slowmode"`
	Position     *int          `json:"position"`
}

// Update edits a channel's settings.
// PATCH /api/channels/:id
func (h *ChannelHandlers) Update(c *gin.Context) {
	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	upd := core.ChannelUpdate{
		Name:         req.Name,
		IsPrivate:    req.IsPrivate,
		AllowedUsers: req.AllowedUsers,
		Position:     req.Position,
	}
	if req.Slowmode != nil {
		upd.Slowmode = &store.Slowmode{Enabled: req.Slowmode.Enabled, DelaySeconds: req.Slowmode.DelaySeconds}
	}

	ch, cerr := h.membership.UpdateChannel(c.Request.Context(), c.Param("id"), currentUserID(c), upd)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, channelResponse(ch))
}

// Delete removes a channel and its messages.
// DELETE /api/channels/:id
func (h *ChannelHandlers) Delete(c *gin.Context) {
	if cerr := h.membership.DeleteChannel(c.Request.Context(), c.Param("id"), currentUserID(c)); cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// VoiceToken mints join credentials for a voice channel.
// GET /api/channels/:id/voice-token
func (h *ChannelHandlers) VoiceToken(c *gin.Context) {
	if !h.voice.Enabled() {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "voice backend not configured"})
		return
	}

	ch, _, cerr := h.resolver.Resolve(c.Request.Context(), c.Param("id"), currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	if ch.Type != store.ChannelVoice {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "not a voice channel"})
		return
	}

	info, err := h.voice.JoinToken(ch.ID, currentUserID(c), c.GetString(ContextKeyUsername))
	if err != nil {
		h.log.Error().Err(err).Msg("voice token generation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, info)
}
