package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/api/middleware"
	"github.com/consultly/realtime/internal/gateway"
	"github.com/consultly/realtime/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, g *gateway.Gateway, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // 64KB max body (SDP payloads included)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	// Identity before the logger so completion entries carry the caller
	r.Use(middleware.CallerIdentity)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting on producer endpoints
	limiter := middleware.NewRateLimiter(redisClient, logger)
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-User-Role"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat/messages", h.SendMessage)
		r.Get("/chat/messages", h.GetMessages)

		r.Post("/notifications", h.SendNotification)
		r.Get("/notifications", h.GetNotifications)
		r.Patch("/notifications/read", h.MarkNotificationRead)
		r.Post("/notifications/read-all", h.MarkAllNotificationsRead)

		r.Post("/sessions/status", h.UpdateSessionStatus)
		r.Get("/sessions/{sessionId}/status", h.GetSessionStatus)

		r.Get("/presence/{userId}", h.GetPresence)

		r.Post("/signal", h.SendSignal)
		r.Get("/signal", h.GetSignal)

		r.Get("/events", g.Stream)
	})

	return r
}
