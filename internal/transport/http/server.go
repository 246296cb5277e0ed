package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/auth"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/config"
)

// Deps bundles everything the HTTP layer serves.
type Deps struct {
	AuthService *auth.Service
	API         *APIHandlers
	Servers     *ServerHandlers
	Channels    *ChannelHandlers
	Messages    *MessageHandlers
	WS          stdhttp.Handler
}

// NewServer builds the HTTP server with all REST and WebSocket routes.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapH(deps.WS))

	api := router.Group("/api")
	api.POST("/auth/register", deps.API.Register)
	api.POST("/auth/login", deps.API.Login)

	authed := api.Group("", AuthMiddleware(deps.AuthService, logger))

	authed.GET("/servers", deps.Servers.List)
	authed.POST("/servers", deps.Servers.Create)
	authed.POST("/servers/join", deps.Servers.Join)
	authed.GET("/servers/:id", deps.Servers.Get)
	authed.PATCH("/servers/:id", deps.Servers.Update)
	authed.DELETE("/servers/:id", deps.Servers.Delete)
	authed.POST("/servers/:id/invite", deps.Servers.RegenerateInvite)
	authed.POST("/servers/:id/leave", deps.Servers.Leave)
	authed.POST("/servers/:id/transfer", deps.Servers.Transfer)
	authed.GET("/servers/:id/members", deps.Servers.Members)
	authed.DELETE("/servers/:id/members/:userId", deps.Servers.Kick)
	authed.PATCH("/servers/:id/members/:userId/role", deps.Servers.ChangeRole)

	authed.GET("/servers/:id/channels", deps.Channels.List)
	authed.POST("/servers/:id/channels", deps.Channels.Create)
	authed.PATCH("/channels/:id", deps.Channels.Update)
	authed.DELETE("/channels/:id", deps.Channels.Delete)
	authed.GET("/channels/:id/voice-token", deps.Channels.VoiceToken)

	authed.GET("/channels/:id/messages", deps.Messages.List)
	authed.POST("/channels/:id/messages", deps.Messages.Send)
	authed.GET("/channels/:id/pins", deps.Messages.Pins)
	authed.PATCH("/messages/:id", deps.Messages.Edit)
	authed.DELETE("/messages/:id", deps.Messages.Delete)
	authed.POST("/messages/:id/pin", deps.Messages.Pin)
	authed.DELETE("/messages/:id/pin", deps.Messages.Unpin)
	authed.POST("/messages/:id/reactions", deps.Messages.AddReaction)
	authed.DELETE("/messages/:id/reactions/:emoji", deps.Messages.RemoveReaction)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
