package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cardroom/internal/config"
	"cardroom/internal/db"
	httpServer "cardroom/internal/http"
	"cardroom/internal/http/middleware"
	"cardroom/internal/logger"
	"cardroom/internal/registry"
	"cardroom/internal/repository"
	"cardroom/internal/room"
	"cardroom/internal/service"
	"cardroom/internal/ws"

	"github.com/jackc/pgx/v5/pgxpool"
)

var version = "dev"

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_JSON") == "true")

	cfg := config.Load()
	service.InitJWT(cfg.JWTSecret)

	var gw repository.Gateway
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool = db.Connect(cfg.DatabaseURL)
		defer pool.Close()
		gw = repository.NewRoomRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory persistence")
		gw = repository.NewMemoryGateway()
	}

	reg := registry.New(gw, nil, registry.Config{
		GracePeriod:   cfg.GracePeriod,
		IdleTimeout:   cfg.IdleTimeout,
		SweepInterval: cfg.SweepInterval,
		Actor:         room.Options{QueueSize: cfg.ActionQueueSize},
	})
	broker := ws.NewBroker(reg, ws.Options{Retention: cfg.EventRetention})
	reg.SetBroadcaster(broker)
	reg.StartSweeper()

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	r := gin.Default()

	// CORS for browser clients served from another origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, reg, broker, pool, version, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Close sockets first so no new actions arrive, then let every room make
	// its final save.
	broker.CloseAll()
	reg.Shutdown()

	logger.Info("server exited")
}
