package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	// API endpoints — auth required when configured. Running without auth
	// is supported for loopback-only setups.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth))
		}
		r.Get("/status", g.handleStatus())
		r.Route("/api", func(r chi.Router) {
			r.Post("/generate", g.handleGenerate())
			r.Post("/cancel", g.handleCancel())
			r.Post("/retry/summary", g.handleRetrySummary())
			r.Post("/retry/truncate", g.handleRetryTruncate())
			r.Get("/draft", g.handleGetDraft())
			r.Put("/draft", g.handlePutDraft())
			r.Get("/stream", g.handleStream())
		})
	})

	return r
}
