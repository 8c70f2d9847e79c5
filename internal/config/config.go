package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"cardroom/internal/logger"
)

type Config struct {
	AppPort     string
	DatabaseURL string // empty -> in-memory gateway
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Room lifecycle
	GracePeriod   time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	// Actor and broker sizing
	ActionQueueSize int
	EventRetention  int

	// HTTP rate limits
	APIRateLimit     int
	APIRateWindow    time.Duration
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	PlayerRateLimit  int
	PlayerRateWindow time.Duration
}

// Load reads configuration from the environment, with .env support for local
// runs. Only JWT_SECRET is mandatory: without a database the server falls
// back to in-memory persistence.
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   jwtSecret,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		GracePeriod:   envSeconds("GRACE_PERIOD_SECONDS", 30*time.Second),
		IdleTimeout:   envMinutes("IDLE_TIMEOUT_MINUTES", time.Hour),
		SweepInterval: envSeconds("SWEEP_INTERVAL_SECONDS", time.Minute),

		ActionQueueSize: envInt("ACTION_QUEUE_SIZE", 64),
		EventRetention:  envInt("EVENT_RETENTION", 256),

		APIRateLimit:     envInt("API_RATE_LIMIT", 60),
		APIRateWindow:    envSeconds("API_RATE_WINDOW_SECONDS", time.Minute),
		AuthRateLimit:    envInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow:   envSeconds("AUTH_RATE_WINDOW_SECONDS", time.Minute),
		PlayerRateLimit:  envInt("PLAYER_RATE_LIMIT", 30),
		PlayerRateWindow: envSeconds("PLAYER_RATE_WINDOW_SECONDS", time.Minute),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func envMinutes(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return def
}
