// Package web wires the Product Hub routes and middleware
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/producthub/producthub/internal/auth"
	"github.com/producthub/producthub/internal/config"
	"github.com/producthub/producthub/internal/web/handlers"
	webmiddleware "github.com/producthub/producthub/internal/web/middleware"
)

// NewRouter builds the HTTP handler for the page
func NewRouter(cfg *config.Config, h *handlers.Handlers, sessionManager *auth.SessionManager, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(webmiddleware.LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(webmiddleware.SecurityHeaders(cfg))

	// Machine endpoints skip sessions and CSRF
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/static/*", h.ServeStatic)

	limiter := webmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration, cfg.RateLimit.Burst)

	r.Group(func(r chi.Router) {
		// Ahead of CSRF, which parses the multipart body to find its token.
		// An oversized body therefore fails there, and h.CSRFFailure reports it.
		r.Use(webmiddleware.MaxBytesMiddleware(cfg.Server.Security.MaxRequestBytes))
		if cfg.Server.Security.CSRFEnabled {
			r.Use(webmiddleware.CSRFProtection([]byte(cfg.Session.Secret), cfg.CookieSecure(), cfg.Server.Security.CSRFFieldName, http.HandlerFunc(h.CSRFFailure)))
		}
		r.Use(webmiddleware.WithSession(sessionManager))

		r.Get("/", h.Home)
		r.Get("/about", h.About)

		r.With(limiter.Middleware).Post("/auth/login", h.Login)

		r.With(limiter.Middleware).Post("/upload", h.Upload)

		r.NotFound(h.NotFound)
	})

	return r
}

// NewServer wraps the router in an http.Server configured from cfg
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}
