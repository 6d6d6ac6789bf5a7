package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/callrelay/internal/callengine"
)

// ChannelHandlers answers media channel join checks.
type ChannelHandlers struct {
	hub    Hub
	engine callengine.Engine
	log    *zerolog.Logger
}

// NewChannelHandlers creates channel handlers. engine may be nil.
func NewChannelHandlers(hub Hub, engine callengine.Engine, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{hub: hub, engine: engine, log: logger}
}

// ValidateChannelRequest is the body of POST /validate-channel.
type ValidateChannelRequest struct {
	ChannelName string `json:"channelName" binding:"required"`
	UserID      string `json:"userId" binding:"required"`
}

// ValidateChannelResponse tells the client whether it may join.
type ValidateChannelResponse struct {
	Authorized bool                 `json:"authorized"`
	Message    string               `json:"message,omitempty"`
	Join       *callengine.JoinInfo `json:"join,omitempty"`
}

// ValidateChannel checks channel membership against live call state.
// POST /validate-channel
func (h *ChannelHandlers) ValidateChannel(c *gin.Context) {
	var req ValidateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid validate-channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "channelName and userId are required"})
		return
	}

	res, err := h.hub.Authorize(c.Request.Context(), req.ChannelName, req.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("channel authorization unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "relay unavailable"})
		return
	}
	if !res.Authorized {
		h.log.Info().Str("user_id", req.UserID).Str("channel", req.ChannelName).Msg("channel access denied")
		c.JSON(http.StatusOK, ValidateChannelResponse{Message: res.Reason})
		return
	}

	resp := ValidateChannelResponse{Authorized: true}
	if h.engine != nil {
		join, err := h.engine.JoinInfo(c.Request.Context(), req.ChannelName, req.UserID, res.DisplayName)
		if err != nil {
			h.log.Error().Err(err).Str("channel", req.ChannelName).Msg("failed to generate join info")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		resp.Join = join
	}

	h.log.Info().Str("user_id", req.UserID).Str("channel", req.ChannelName).Str("call_id", res.CallID).Msg("channel access granted")
	c.JSON(http.StatusOK, resp)
}
