package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/support-desk/internal/middleware"
	"github.com/capitalize-ai/support-desk/internal/service"
	"github.com/capitalize-ai/support-desk/pkg/logger"
)

// RouterConfig carries the HTTP-level settings of the API.
type RouterConfig struct {
	JWTSecret         string
	TokenMaxAge       time.Duration
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Heartbeat         time.Duration
}

// NewRouter wires every route of the support desk API.
func NewRouter(cfg RouterConfig, support *service.SupportService, drafter *service.Drafter, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(support)
	threadHandler := NewThreadHandler(support, log)
	messageHandler := NewMessageHandler(support, drafter, log)
	streamHandler := NewStreamHandler(support, cfg.Heartbeat, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, cfg.TokenMaxAge))
		r.Use(middleware.RequireScope(middleware.ScopeOperator))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/threads", threadHandler.List)
		r.Route("/threads/{key}", func(r chi.Router) {
			r.Get("/", threadHandler.Get)
			r.Post("/messages", messageHandler.Send)
			r.Post("/draft", messageHandler.Draft)
		})
		r.Get("/unread", threadHandler.Unread)
		r.Delete("/history", threadHandler.ClearHistory)
		r.Get("/stream", streamHandler.Stream)
	})

	return r
}
