package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-widget/internal/auth"
	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/hub"
	"github.com/vovakirdan/wirechat-widget/internal/telemetry"
)

// NewServer builds the HTTP server for the development backend.
func NewServer(h *hub.Hub, authService *auth.Service, cfg *config.ServerConfig, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	api := NewAPIHandlers(authService, cfg.JWTSecret, logger)
	router.POST("/api/token", api.IssueToken)
	router.POST("/api/guest", api.GuestToken)

	ws := NewWSHandler(h, cfg, logger)
	router.GET("/ws", IdentityMiddleware(authService, logger), ws.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
