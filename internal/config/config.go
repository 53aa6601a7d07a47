package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	NatsURL     string

	// Fast-path caps and TTLs
	ChatHistoryCap  int64
	NotificationCap int64
	PresenceTTL     time.Duration
	SignalTTL       time.Duration
	StatusTTL       time.Duration

	// Push stream
	KeepAliveInterval time.Duration

	// Durable mirror
	MirrorQueueSize int
	MirrorWorkers   int
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		NatsURL:     getEnv("NATS_URL", "nats://localhost:4222"),

		ChatHistoryCap:  getEnvInt64("CHAT_HISTORY_CAP", 1000),
		NotificationCap: getEnvInt64("NOTIFICATION_CAP", 100),
		PresenceTTL:     getEnvDuration("PRESENCE_TTL", 300*time.Second),
		SignalTTL:       getEnvDuration("SIGNAL_TTL", 5*time.Minute),
		StatusTTL:       getEnvDuration("SESSION_STATUS_TTL", 24*time.Hour),

		KeepAliveInterval: getEnvDuration("KEEPALIVE_INTERVAL", 30*time.Second),

		MirrorQueueSize: getEnvInt("MIRROR_QUEUE_SIZE", 4096),
		MirrorWorkers:   getEnvInt("MIRROR_WORKERS", 4),
	}

	// In production, require all backing services
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if os.Getenv("REDIS_URL") == "" {
			panic("REDIS_URL is required in production")
		}
		if os.Getenv("NATS_URL") == "" {
			panic("NATS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
