// Package api assembles the HTTP surface of the chat server.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/support-chat/internal/handler"
	"github.com/capitalize-ai/support-chat/internal/middleware"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

// Options controls the cross-cutting middleware.
type Options struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxBodyBytes      int64
}

// Handlers groups every endpoint implementation.
type Handlers struct {
	Health        *handler.HealthHandler
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Parties       *handler.PartyHandler
	Stream        *handler.StreamHandler
	WebSocket     http.Handler
}

// NewRouter creates and configures the HTTP router.
func NewRouter(h Handlers, opts Options, log *logger.Logger) *chi.Mux {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 * 1024
	}
	if opts.RateLimitRequests <= 0 {
		opts.RateLimitRequests = 120
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Realtime channel
	r.Handle("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitRequests, opts.RateLimitWindow))
		r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

		r.Get("/agents", h.Parties.Agents)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.Conversations.List)
			r.Post("/", h.Conversations.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.ObjectIDParam("id", "conversation"))

				r.Get("/", h.Conversations.Get)
				r.Put("/status", h.Conversations.UpdateStatus)
				r.Get("/messages", h.Messages.List)
				r.Get("/events", h.Stream.Stream)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.With(middleware.EndpointRateLimit(opts.RateLimitRequests/2+1, opts.RateLimitWindow)).
				Post("/", h.Messages.Send)
			r.Put("/read", h.Messages.MarkRead)
		})
	})

	return r
}
