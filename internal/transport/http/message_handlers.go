package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/core"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// MessageHandlers provides HTTP handlers for message endpoints.
type MessageHandlers struct {
	pipeline *core.Pipeline
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(pipeline *core.Pipeline, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{pipeline: pipeline, log: logger}
}

// AttachmentRequest is file metadata in the send request body.
type AttachmentRequest struct {
	URL      string `json:"url" binding:"required"`
	Filename string `json:"filename"`
	Filetype string `json:"filetype"`
	Size     int64  `json:"size"`
}

// SendMessageRequest represents the message send request body.
type SendMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []AttachmentRequest `json:"attachments"`
	ReferenceID string              `json:"referenceId"`
}

// Send posts a message to a channel.
// POST /api/channels/:id/messages
func (h *MessageHandlers) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	attachments := make([]store.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, store.Attachment{
			URL:      a.URL,
			Filename: a.Filename,
			Filetype: a.Filetype,
			Size:     a.Size,
		})
	}

	view, cerr := h.pipeline.Send(c.Request.Context(), core.SendRequest{
		ChannelID:   c.Param("id"),
		AuthorID:    currentUserID(c),
		Content:     req.Content,
		Attachments: attachments,
		ReferenceID: req.ReferenceID,
	})
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// List returns a page of channel history in chronological order.
// GET /api/channels/:id/messages?limit=50&before=RFC3339
func (h *MessageHandlers) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		before = &t
	}

	views, cerr := h.pipeline.History(c.Request.Context(), c.Param("id"), currentUserID(c), limit, before)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Pins returns the channel's pinned messages.
// GET /api/channels/:id/pins
func (h *MessageHandlers) Pins(c *gin.Context) {
	views, cerr := h.pipeline.Pinned(c.Request.Context(), c.Param("id"), currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, views)
}

// EditMessageRequest represents the message edit request body.
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Edit replaces a message's content.
// PATCH /api/messages/:id
func (h *MessageHandlers) Edit(c *gin.Context) {
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	view, cerr := h.pipeline.Edit(c.Request.Context(), c.Param("id"), currentUserID(c), req.Content)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete removes a message.
// DELETE /api/messages/:id
func (h *MessageHandlers) Delete(c *gin.Context) {
	if cerr := h.pipeline.Delete(c.Request.Context(), c.Param("id"), currentUserID(c)); cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// Pin marks a message as pinned.
// POST /api/messages/:id/pin
func (h *MessageHandlers) Pin(c *gin.Context) {
	if cerr := h.pipeline.Pin(c.Request.Context(), c.Param("id"), currentUserID(c)); cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unpin clears a message's pinned mark.
// DELETE /api/messages/:id/pin
func (h *MessageHandlers) Unpin(c *gin.Context) {
	if cerr := h.pipeline.Unpin(c.Request.Context(), c.Param("id"), currentUserID(c)); cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReactionRequest represents the reaction request body.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// AddReaction records an emoji reaction.
// POST /api/messages/:id/reactions
func (h *MessageHandlers) AddReaction(c *gin.Context) {
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	entry, cerr := h.pipeline.AddReaction(c.Request.Context(), c.Param("id"), req.Emoji, currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// RemoveReaction deletes the caller's reaction.
// DELETE /api/messages/:id/reactions/:emoji
func (h *MessageHandlers) RemoveReaction(c *gin.Context) {
	cerr := h.pipeline.RemoveReaction(c.Request.Context(), c.Param("id"), c.Param("emoji"), currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}
