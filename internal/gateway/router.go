// ABOUTME: HTTP routing for the gateway built on chi
// ABOUTME: Registers webhook, health, metrics and admin routes plus request logging

package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/assistant-relay/internal/auth"
	"github.com/2389/assistant-relay/internal/telemetry"
)

func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(g.logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return telemetry.Handler(next, g.config.Telemetry.ServiceName)
	})

	r.Get("/", g.handleRoot)
	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	if g.metrics != nil {
		r.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}

	r.Post("/slack", g.handleEvents)
	r.Post("/slack/handle_action", g.handleAction)

	if g.verifier != nil {
		r.Route("/api", func(r chi.Router) {
			r.Use(auth.HTTPAuthMiddleware(g.verifier, g.logger))
			r.Use(auth.RequireAdminHTTP())

			r.Get("/sessions", g.handleListSessions)
			r.Delete("/sessions/{user}", g.handleDeleteSession)
			r.Get("/sessions/{user}/turns", g.handleListTurns)
		})
	} else {
		g.logger.Warn("admin API disabled - no jwt_secret configured")
	}

	return r
}

// requestLogger logs one record per request with its status and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.LogAttrs(r.Context(), slog.LevelDebug, "request completed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
