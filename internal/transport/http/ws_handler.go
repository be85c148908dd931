package http

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/hub"
	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

const (
	errCodeRateLimited = "rate_limited"
	frameOverhead      = 4096
)

// WSHandler upgrades HTTP connections and bridges them to hub.Client.
type WSHandler struct {
	hub *hub.Hub
	cfg *config.ServerConfig
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(h *hub.Hub, cfg *config.ServerConfig, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: h, cfg: cfg, log: logger}
}

// Handle serves GET /ws.
func (h *WSHandler) Handle(c *gin.Context) {
	var ident *identity.Identity
	if v, ok := c.Get(ContextKeyIdentity); ok {
		if id, ok := v.(identity.Identity); ok {
			ident = &id
		}
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes + frameOverhead)
	}

	client := hub.NewClient(uuid.NewString(), ident)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
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
		if s := websocket.CloseStatus(err); s != -1 {
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
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	limiter := newRateLimiter(h.cfg.MessagesPerMinute, nil)
	for {
		var inbound proto.Frame
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			return err
		}

		cmd, protoErr := frameToCommand(inbound)
		if protoErr == nil && cmd.Kind == hub.CommandSendMessage && !limiter.allow() {
			protoErr = &proto.ErrorData{Code: errCodeRateLimited, Message: "too many messages, slow down"}
		}
		if protoErr != nil {
			h.log.Debug().Str("client_id", client.ID).Str("event", inbound.Event).Str("code", protoErr.Code).Msg("inbound rejected")
			f, err := proto.NewFrame(proto.EventError, protoErr)
			if err != nil {
				return err
			}
			if err := wsjson.Write(ctx, conn, f); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			f, err := eventToFrame(event)
			if err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("encode ws event")
				continue
			}
			if err := wsjson.Write(ctx, conn, f); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
