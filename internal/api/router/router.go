package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/meaze0507/itchysats/internal/api/handlers"
	"github.com/meaze0507/itchysats/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Config holds router configuration
type Config struct {
	FeedHandler    *handlers.FeedStreamHandler
	CommandHandler *handlers.CommandHandler
	HealthHandler  *handlers.HealthHandler

	AccessLogger   *zerolog.Logger // default: global logger
	AllowedOrigins []string        // default: any
	CommandTimeout time.Duration   // default: 30s
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *Config) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(middleware.LoggingConfig{
		AccessLogger: cfg.AccessLogger,
		SkipPaths:    []string{"/health"},
	}))
	r.Use(chimw.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", cfg.HealthHandler.Health)

	// Push feed (long lived, no timeout)
	r.Get("/feed", cfg.FeedHandler.StreamSSE)
	r.Get("/feed/ws", cfg.FeedHandler.StreamWS)

	// Commands
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.CommandTimeout))

		r.Post("/cfd", cfg.CommandHandler.TakeOffer)

		r.Route("/api", func(r chi.Router) {
			r.Get("/offer", cfg.CommandHandler.GetOffer)
			r.Put("/offer", cfg.CommandHandler.PublishOffer)
		})
	})

	return r
}
