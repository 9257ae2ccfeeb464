package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.instrument("health", s.handleHealth))
		r.Get("/metrics", s.instrument("metrics", s.handleMetrics))
		r.Get("/status", s.instrument("status", s.handleStatus))

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.instrument("zones", s.handleListZones))
			r.Get("/{location}", s.instrument("zone", s.handleGetZone))
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/events", s.instrument("history_events", s.handleListEvents))
			r.Get("/events/{id}", s.instrument("history_event", s.handleGetEvent))
			r.Get("/claims", s.instrument("history_claims", s.handleListClaims))
		})

		r.Post("/evaluate", s.instrument("evaluate", s.handleEvaluate))

		// Not instrumented: the recorder would hide http.Hijacker.
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// instrument wraps h with request metrics when a collector is configured.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	return s.metrics.Middleware(route, h).ServeHTTP
}
