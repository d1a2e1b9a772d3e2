/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/ingest/*          Daily ingestion
  /api/evaluate/*        Weekly and monthly evaluations
  /api/rankings/*        Leaderboards
  /api/notifications/*   Send decisions
  /api/holidays/*        Holiday calendar
  /metrics               Prometheus metrics
  /health                Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/engine/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/ingest", func(r chi.Router) {
			r.Post("/daily", h.IngestDaily)
		})

		r.Route("/evaluate", func(r chi.Router) {
			r.Post("/weekly", h.EvaluateWeekly)
			r.Post("/monthly", h.EvaluateMonthly)
		})

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/points", h.RankingPoints)
			r.Get("/weekly", h.RankingWeekly)
			r.Get("/monthly", h.RankingMonthly)
		})

		r.Get("/summary/daily", h.DailySummary)
		r.Get("/sellers/{name}/state", h.SellerState)

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/daily", h.DispatchDaily)
			r.Post("/specials", h.DispatchSpecials)
			r.Post("/individual", h.DispatchIndividual)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/import", h.ImportHolidays)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	return r
}
