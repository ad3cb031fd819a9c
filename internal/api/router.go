package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-compat/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Monitoring (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/catalog", func(r chi.Router) {
			r.With(s.requirePermission(auth.PermCatalogRead)).Get("/", s.handleStats)
			r.With(s.requirePermission(auth.PermCatalogRead)).Get("/columns", s.handleColumns)
			r.With(s.requirePermission(auth.PermCatalogRead)).Post("/query", s.handleQuery)
			r.With(s.requirePermission(auth.PermCatalogRead)).Post("/distinct", s.handleDistinct)
			r.With(s.requirePermission(auth.PermCatalogExport)).Post("/export", s.handleExport)
			r.With(s.requirePermission(auth.PermCatalogLoad)).Post("/load", s.handleLoad)
			r.With(s.requirePermission(auth.PermCatalogConfigure)).Put("/search-fields", s.handleSetSearchFields)
			r.With(s.requirePermission(auth.PermHistoryRead)).Get("/loads", s.handleListLoads)
		})

		// WebSocket: permissions are checked per request message.
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports liveness and whether a catalogue is loaded.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.catalog.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"loaded":  stats.Loaded,
	})
}
