// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/herald/internal/middleware"
)

// Routes builds the full route table.
//
// The websocket endpoint deliberately skips the Prometheus wrapper: the
// instrumented ResponseWriter does not implement http.Hijacker, which the
// upgrade handshake requires. Socket metrics are recorded by the hub.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(h.rateLimit(1000, time.Minute))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		// Strict limit on login attempts, brute-force prevention.
		r.With(h.rateLimit(5, 5*time.Minute)).Post("/login", h.Login)
	})

	r.Route("/api/v1/messages", func(r chi.Router) {
		r.Use(h.rateLimit(h.config.Security.RateLimitReqs, h.config.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.Authenticate)

		r.Post("/", h.PublishMessage)
		r.Get("/", h.ListMessages)
		r.Get("/unread", h.UnreadCount)
		r.Put("/{id}/read", h.MarkRead)
	})

	r.Get("/ws/{token}", h.WebSocket)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// rateLimit returns an IP-keyed limiter, or a no-op when disabled by config.
func (h *Handler) rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if h.config.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}
