package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/chatrooms/internal/middleware"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
)

// RouterConfig holds what NewRouter wires together.
type RouterConfig struct {
	Rooms  *RoomHandler
	Events *EventHandler
	Health *HealthHandler
	Logger *logger.Logger

	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP routes of the API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", cfg.Rooms.List)
			r.With(middleware.RequireScope(middleware.ScopeChatWrite)).Post("/", cfg.Rooms.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", cfg.Rooms.Messages)
				r.Get("/events", cfg.Events.List)
				r.With(middleware.RequireScope(middleware.ScopeChatWrite)).Post("/chat", cfg.Rooms.Chat)
			})
		})
	})

	return r
}
