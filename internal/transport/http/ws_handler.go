package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/callrelay/internal/config"
	"github.com/vovakirdan/callrelay/internal/core"
	"github.com/vovakirdan/callrelay/internal/proto"
	"github.com/vovakirdan/callrelay/internal/utils"
)

var (
	errSessionReplaced = errors.New("session replaced")
	errClientReleased  = errors.New("client released by hub")
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub          Hub
	log          *zerolog.Logger
	maxMessage   int64
	pingInterval time.Duration
	accept       *websocket.AcceptOptions
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:          hub,
		log:          logger,
		maxMessage:   cfg.MaxMessageBytes,
		pingInterval: cfg.PingInterval,
		accept:       acceptOptions(cfg.AllowedOrigins),
	}
}

func acceptOptions(origins []string) *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, origin := range origins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
		}
	}
	return opts
}

// Handle serves GET /ws?userId=...&userName=...
func (h *WSHandler) Handle(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "userId is required"})
		return
	}
	userName := strings.TrimSpace(c.Query("userName"))

	h.serve(c.Writer, c.Request, userID, userName)
}

func (h *WSHandler) serve(w stdhttp.ResponseWriter, r *stdhttp.Request, userID, userName string) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.maxMessage > 0 {
		conn.SetReadLimit(h.maxMessage)
	}

	client := core.NewClient(utils.NewID(), userID, userName)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	loops := 2
	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()
	if h.pingInterval > 0 {
		loops++
		go func() {
			errCh <- h.pingLoop(ctx, conn)
		}()
	}

	err = <-errCh
	status, reason := h.closeStatus(err, client)
	// Close before cancelling: a cancelled read context tears the
	// connection down without a clean close frame.
	conn.Close(status, reason)
	cancel()
	for i := 1; i < loops; i++ {
		<-errCh
	}
}

func (h *WSHandler) closeStatus(err error, client *core.Client) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errSessionReplaced):
		return websocket.StatusNormalClosure, "session replaced"
	case errors.Is(err, errClientReleased):
		return websocket.StatusGoingAway, "server closing"
	}

	switch status := websocket.CloseStatus(err); status {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return status, "closing"
	case -1:
		h.log.Warn().Err(err).Str("user_id", client.UserID).Str("conn", client.ID).Msg("ws connection closed with error")
		return websocket.StatusInternalError, "internal error"
	default:
		h.log.Debug().Err(err).Str("user_id", client.UserID).Int("status", int(status)).Msg("ws connection closed by peer")
		return websocket.StatusNormalClosure, "closing"
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			if werr := writeProtoError(ctx, conn, badRequest("malformed frame")); werr != nil {
				return werr
			}
			continue
		}

		cmd, protoErr := inboundToCommand(client, inbound)
		if protoErr != nil {
			h.log.Debug().Str("conn", client.ID).Str("type", inbound.Type).Str("code", protoErr.Code).Msg("rejected inbound frame")
			if werr := writeProtoError(ctx, conn, protoErr); werr != nil {
				return werr
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return errClientReleased
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := h.writeEvent(ctx, conn, client, event); err != nil {
				return err
			}
		case <-client.Done():
			// Flush what the hub queued before letting go of us.
			for {
				select {
				case event := <-client.Events:
					if err := h.writeEvent(ctx, conn, client, event); err != nil {
						return err
					}
				default:
					return errClientReleased
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeEvent(ctx context.Context, conn *websocket.Conn, client *core.Client, event *core.Event) error {
	if event == nil {
		return nil
	}
	if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
		h.log.Error().Err(err).Str("conn", client.ID).Msg("write ws event")
		return err
	}
	if event.Kind == core.EventSessionReplaced {
		return errSessionReplaced
	}
	return nil
}

func (h *WSHandler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.pingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeProtoError(ctx context.Context, conn *websocket.Conn, perr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: perr})
}
