package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/core"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// ServerHandlers provides HTTP handlers for server and membership endpoints.
type ServerHandlers struct {
	membership *core.Membership
	log        *zerolog.Logger
}

// NewServerHandlers creates a new server handlers instance.
func NewServerHandlers(membership *core.Membership, logger *zerolog.Logger) *ServerHandlers {
	return &ServerHandlers{membership: membership, log: logger}
}

// ServerResponse represents a server in API responses.
type ServerResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"ownerId"`
	InviteCode string    `json:"inviteCode,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func serverResponse(s *store.Server, includeInvite bool) ServerResponse {
	resp := ServerResponse{
		ID:        s.ID,
		Name:      s.Name,
		OwnerID:   s.OwnerID,
		CreatedAt: s.CreatedAt,
	}
	if includeInvite {
		resp.InviteCode = s.InviteCode
	}
	return resp
}

// CreateServerRequest represents the server creation request body.
type CreateServerRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles server creation.
// POST /api/servers
func (h *ServerHandlers) Create(c *gin.Context) {
	var req CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	srv, cerr := h.membership.CreateServer(c.Request.Context(), req.Name, currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusCreated, serverResponse(srv, true))
}

// List returns the servers the caller belongs to.
// GET /api/servers
func (h *ServerHandlers) List(c *gin.Context) {
	userID := currentUserID(c)
	servers, cerr := h.membership.ListServers(c.Request.Context(), userID)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	resp := make([]ServerResponse, 0, len(servers))
	for _, srv := range servers {
		resp = append(resp, serverResponse(srv, srv.OwnerID == userID))
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateServerRequest represents the server update request body.
type UpdateServerRequest struct {
	Name string `json:"name" binding:"required"`
}

// Update renames a server. Requires admin rank.
// PATCH /api/servers/:id
func (h *ServerHandlers) Update(c *gin.Context) {
	var req UpdateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	srv, cerr := h.membership.RenameServer(c.Request.Context(), c.Param("id"), currentUserID(c), req.Name)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, serverResponse(srv, srv.OwnerID == currentUserID(c)))
}

// RegenerateInvite replaces the server's invite code. Requires admin rank.
// POST /api/servers/:id/invite
func (h *ServerHandlers) RegenerateInvite(c *gin.Context) {
	srv, cerr := h.membership.RegenerateInvite(c.Request.Context(), c.Param("id"), currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, serverResponse(srv, true))
}

// Get returns a server the caller belongs to.
// GET /api/servers/:id
func (h *ServerHandlers) Get(c *gin.Context) {
	srv, cerr := h.membership.GetServer(c.Request.Context(), c.Param("id"), currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, serverResponse(srv, srv.OwnerID == currentUserID(c)))
}

// Delete removes a server. Owner only.
// DELETE /api/servers/:id
func (h *ServerHandlers) Delete(c *gin.Context) {
	if cerr := h.membership.DeleteServer(c.Request.Context(), c.Param("id"), currentUserID(c)); cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// JoinRequest represents the invite join request body.
type JoinRequest struct {
	InviteCode string `json:"inviteCode" binding:"required"`
}

// Join adds the caller to a server by invite code.
// POST /api/servers/join
func (h *ServerHandlers) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	srv, cerr := h.membership.JoinByInvite(c.Request.Context(), req.InviteCode, currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, serverResponse(srv, false))
}

// Leave removes the caller from a server.
// POST /api/servers/:id/leave
func (h *ServerHandlers) Leave(c *gin.Context) {
	if cerr := h.membership.Leave(c.Request.Context(), c.Param("id"), currentUserID(c)); cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// Members lists the server roster.
// GET /api/servers/:id/members
func (h *ServerHandlers) Members(c *gin.Context) {
	members, cerr := h.membership.Members(c.Request.Context(), c.Param("id"), currentUserID(c))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, members)
}

// Kick removes another member from a server.
// DELETE /api/servers/:id/members/:userId
func (h *ServerHandlers) Kick(c *gin.Context) {
	cerr := h.membership.Kick(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId"))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeRoleRequest represents the role change request body.
type ChangeRoleRequest struct {
	Role store.Role `json:"role" binding:"required"`
}

// ChangeRole sets another member's role.
// PATCH /api/servers/:id/members/:userId/role
func (h *ServerHandlers) ChangeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	cerr := h.membership.ChangeRole(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId"), req.Role)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}

// TransferRequest represents the ownership transfer request body.
type TransferRequest struct {
	ToUserID string `json:"toUserId" binding:"required"`
}

// Transfer hands server ownership to another member.
// POST /api/servers/:id/transfer
func (h *ServerHandlers) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	cerr := h.membership.TransferOwnership(c.Request.Context(), c.Param("id"), currentUserID(c), req.ToUserID)
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.Status(http.StatusNoContent)
}
