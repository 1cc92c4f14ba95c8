package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/burner-signaling/config"
	"github.com/mossy-p/burner-signaling/internal/admission"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/middleware"
	"github.com/mossy-p/burner-signaling/internal/rooms"
)

// RouterDeps are everything the HTTP surface is wired to.
type RouterDeps struct {
	Config        *config.Config
	Authority     *identity.Authority
	Hub           *rooms.Coordinator
	Limiter       *admission.Limiter
	Fingerprinter *admission.Fingerprinter
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(middleware.OriginFilter(d.Config.AllowedOrigins))
	router.Use(middleware.Fingerprint(d.Fingerprinter))

	router.GET("/health", Health)
	router.GET("/metrics", gin.WrapH(metrics.PrometheusHandler(d.Metrics)))

	apiGroup := router.Group("/api")
	{
		// Disposable identities (public issue and verify)
		apiGroup.POST("/identity", middleware.Admit(d.Limiter, admission.ClassIdentity), IssueIdentity(d.Authority, d.Metrics, d.Logger))
		apiGroup.POST("/identity/verify", VerifyCredential(d.Authority))

		// Credential lifecycle (requires JWT)
		apiGroup.POST("/identity/refresh", middleware.JWTAuth(d.Authority, d.Metrics), RefreshCredential(d.Authority))
		apiGroup.POST("/identity/burn", middleware.JWTAuth(d.Authority, d.Metrics), BurnCredential(d.Authority, d.Logger))

		// Get room info (public)
		apiGroup.GET("/rooms/:roomId", middleware.Admit(d.Limiter, admission.ClassInfo), GetRoom(d.Hub))

		apiGroup.GET("/ice-servers", ICEServers(d.Config.ICE))
	}

	// WebSocket endpoint; rooms are created and joined over the socket
	router.GET("/ws",
		middleware.Admit(d.Limiter, admission.ClassConnect),
		middleware.WebSocketAuth(d.Authority, d.Metrics),
		HandleSignaling(SignalingDeps{
			Hub:                d.Hub,
			Authority:          d.Authority,
			Limiter:            d.Limiter,
			Logger:             d.Logger,
			MaxFramesPerSecond: d.Config.MaxSignalingMessagesPerSecond,
		}),
	)

	return router
}
