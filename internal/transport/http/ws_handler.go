package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/auth"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/core"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/proto"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to the realtime core.
type WSHandler struct {
	authService *auth.Service
	router      *core.Router
	resolver    *core.Resolver
	pipeline    *core.Pipeline
	typing      *core.TypingTracker
	presence    *core.PresenceTracker
	sendBuffer  int
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(
	authService *auth.Service,
	router *core.Router,
	resolver *core.Resolver,
	pipeline *core.Pipeline,
	typing *core.TypingTracker,
	presence *core.PresenceTracker,
	sendBuffer int,
	logger *zerolog.Logger,
) stdhttp.Handler {
	return &WSHandler{
		authService: authService,
		router:      router,
		resolver:    resolver,
		pipeline:    pipeline,
		typing:      typing,
		presence:    presence,
		sendBuffer:  sendBuffer,
		log:         logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer wsConn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := core.NewConn(utils.NewID(), claims.UserID, claims.Username, h.sendBuffer)
	h.router.Register(conn)
	if perr := h.presence.MarkOnline(ctx, conn.UserID, conn.ID); perr != nil {
		h.log.Warn().Err(perr).Str("user_id", conn.UserID).Msg("presence mark online failed")
	}
	h.log.Info().Str("conn_id", conn.ID).Str("user_id", conn.UserID).Msg("ws connected")

	defer func() {
		h.router.Unregister(conn)
		// Detach disconnect cleanup from the request context, which is
		// already cancelled at this point.
		cleanupCtx := context.Background()
		if perr := h.presence.MarkOffline(cleanupCtx, conn.ID); perr != nil {
			h.log.Warn().Err(perr).Str("conn_id", conn.ID).Msg("presence mark offline failed")
		}
		if !h.presence.IsOnline(cleanupCtx, conn.UserID) {
			h.typing.ClearUser(conn.UserID)
		}
		h.log.Info().Str("conn_id", conn.ID).Str("user_id", conn.UserID).Msg("ws disconnected")
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, wsConn, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, wsConn, conn)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	wsConn.Close(status, reason)
}

// authenticate accepts the token from the Authorization header or, for
// browser clients that cannot set headers on WebSocket upgrades, from the
// token query parameter.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = after
		}
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.authService.ValidateToken(token)
}

func (h *WSHandler) readLoop(ctx context.Context, wsConn *websocket.Conn, conn *core.Conn) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, wsConn, &inbound); err != nil {
			return err
		}

		protoErr := h.handleInbound(ctx, conn, inbound)
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, wsConn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, wsConn *websocket.Conn, conn *core.Conn) error {
	for {
		select {
		case event := <-conn.Events():
			if err := wsjson.Write(ctx, wsConn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", conn.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, conn *core.Conn, inbound proto.Inbound) *proto.Error {
	switch inbound.Type {
	case proto.InboundTypeJoinServer:
		var data proto.JoinServerData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ServerID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "serverId is required"}
		}
		if _, cerr := h.resolver.ResolveServer(ctx, data.ServerID, conn.UserID); cerr != nil {
			return protoErrorFromCore(cerr)
		}
		h.router.Join(conn, core.ServerRoom(data.ServerID))
		return nil

	case proto.InboundTypeLeaveServer:
		var data proto.JoinServerData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ServerID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "serverId is required"}
		}
		h.router.Leave(conn, core.ServerRoom(data.ServerID))
		return nil

	case proto.InboundTypeJoinChannel:
		var data proto.JoinChannelData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ChannelID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "channelId is required"}
		}
		if _, _, cerr := h.resolver.Resolve(ctx, data.ChannelID, conn.UserID); cerr != nil {
			return protoErrorFromCore(cerr)
		}
		h.router.Join(conn, core.ChannelRoom(data.ChannelID))
		return nil

	case proto.InboundTypeLeaveChannel:
		var data proto.JoinChannelData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ChannelID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "channelId is required"}
		}
		h.router.Leave(conn, core.ChannelRoom(data.ChannelID))
		h.typing.ClearTyping(data.ChannelID, conn.UserID, conn)
		return nil

	case proto.InboundTypeUserOnline:
		// Presence is already tracked from the authenticated connection;
		// this signal only re-affirms it. Client-sent user ids are ignored.
		if perr := h.presence.MarkOnline(ctx, conn.UserID, conn.ID); perr != nil {
			return protoErrorFromCore(core.Infrastructure(perr))
		}
		return nil

	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ChannelID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "channelId is required"}
		}
		attachments := make([]store.Attachment, 0, len(data.Attachments))
		for _, a := range data.Attachments {
			attachments = append(attachments, store.Attachment{
				URL:      a.URL,
				Filename: a.Filename,
				Filetype: a.Filetype,
				Size:     a.Size,
			})
		}
		if _, cerr := h.pipeline.Send(ctx, core.SendRequest{
			ChannelID:   data.ChannelID,
			AuthorID:    conn.UserID,
			Content:     data.Content,
			Attachments: attachments,
			ReferenceID: data.ReferenceID,
		}); cerr != nil {
			return protoErrorFromCore(cerr)
		}
		h.typing.ClearTyping(data.ChannelID, conn.UserID, conn)
		return nil

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ChannelID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "channelId is required"}
		}
		if !h.router.InRoom(conn, core.ChannelRoom(data.ChannelID)) {
			return &proto.Error{Code: core.ErrCodeForbidden, Msg: "join the channel first"}
		}
		h.typing.SetTyping(data.ChannelID, conn.UserID, conn)
		return nil

	case proto.InboundTypeStopTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ChannelID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "channelId is required"}
		}
		h.typing.ClearTyping(data.ChannelID, conn.UserID, conn)
		return nil

	case proto.InboundTypeAddReaction:
		var data proto.ReactionData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.MessageID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "messageId is required"}
		}
		if _, cerr := h.pipeline.AddReaction(ctx, data.MessageID, data.Emoji, conn.UserID); cerr != nil {
			return protoErrorFromCore(cerr)
		}
		return nil

	case proto.InboundTypeRemoveReaction:
		var data proto.ReactionData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.MessageID == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "messageId is required"}
		}
		if cerr := h.pipeline.RemoveReaction(ctx, data.MessageID, data.Emoji, conn.UserID); cerr != nil {
			return protoErrorFromCore(cerr)
		}
		return nil

	case proto.InboundTypeVoiceSignal:
		var data proto.VoiceSignalData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.To == "" {
			return &proto.Error{Code: core.ErrCodeValidation, Msg: "to is required"}
		}
		delivered := h.router.SendToConn(data.To, &core.Event{
			Name:    core.EventVoiceSignal,
			Payload: core.VoiceSignalPayload{From: conn.ID, Signal: data.Signal},
		})
		if !delivered {
			return &proto.Error{Code: core.ErrCodeNotFound, Msg: "peer not connected"}
		}
		return nil

	default:
		return &proto.Error{Code: core.ErrCodeValidation, Msg: "unknown message type"}
	}
}
