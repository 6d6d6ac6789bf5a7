package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/callrelay/internal/callengine"
	"github.com/vovakirdan/callrelay/internal/config"
	"github.com/vovakirdan/callrelay/internal/core"
	"github.com/vovakirdan/callrelay/internal/store"
)

// Hub is the part of core.Hub the transport needs.
type Hub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
	Authorize(ctx context.Context, channelName, userID string) (core.AuthResult, error)
	Snapshot(ctx context.Context) ([]core.PresenceEntry, error)
}

// Options carries the optional collaborators. Nil fields disable the
// features that depend on them.
type Options struct {
	Rows    store.RowStore
	Engine  callengine.Engine
	Metrics stdhttp.Handler
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP server with all routes.
func NewServer(hub Hub, opts Options, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	router.GET("/health", healthHandler)
	router.GET("/ws", NewWSHandler(hub, cfg, logger).Handle)

	channels := NewChannelHandlers(hub, opts.Engine, logger)
	router.POST("/validate-channel", channels.ValidateChannel)

	presence := NewPresenceHandlers(hub, opts.Rows, logger)
	api := router.Group("/api")
	{
		api.GET("/presence", presence.Snapshot)
		api.GET("/presence/rows", presence.Rows)
	}

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
