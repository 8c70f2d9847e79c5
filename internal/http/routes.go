package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardroom/internal/config"
	"cardroom/internal/http/handlers"
	"cardroom/internal/http/middleware"
	"cardroom/internal/registry"
	"cardroom/internal/ws"
)

// RegisterRoutes wires the REST surface, the websocket endpoint and the
// operational endpoints. db may be nil when running on the in-memory gateway.
func RegisterRoutes(r *gin.Engine, reg *registry.Registry, broker *ws.Broker, db *pgxpool.Pool, version string, cfg *config.Config) {
	h := handlers.NewHandler(reg)
	healthHandler := handlers.NewHealthHandler(db, version)

	// Health checks and metrics (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiLimit := middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow)
	if cfg.RedisAddr == "" {
		apiLimit = middleware.SimpleRateLimit(cfg.APIRateLimit, cfg.APIRateWindow)
	}

	v1 := r.Group("/api/v1")
	v1.Use(apiLimit)

	// Auth
	v1.POST("/auth/guest", middleware.RedisRateLimit(cfg.AuthRateLimit, cfg.AuthRateWindow), h.GuestAuth)

	// Rooms
	playerRL := middleware.PlayerRateLimit(cfg.PlayerRateLimit, cfg.PlayerRateWindow)
	v1.GET("/rooms", h.ListRooms)
	v1.POST("/rooms", middleware.JWT(), playerRL, h.CreateRoom)
	v1.GET("/rooms/:id", h.GetRoom)
	v1.GET("/rooms/:id/state", middleware.JWT(), h.GetRoomState)
	v1.POST("/rooms/:id/leave", middleware.JWT(), playerRL, h.LeaveRoom)

	// WebSocket game channel; authenticates via token query param because
	// browsers cannot set headers on socket upgrades.
	r.GET("/ws", ws.HandleWS(reg, broker))
}
