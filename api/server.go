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
  /api/partners/*     Partner accounts, earnings, claims
  /api/rewards/*      Catalog management
  /api/claims/*       Claim lifecycle (admin)
  /api/commissions/*  Distribution
  /api/platform/*     Platform fee account

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Admin routes need auth before any real deployment.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
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
		// Partner routes
		r.Route("/partners", func(r chi.Router) {
			r.Get("/", h.ListPartners)
			r.Post("/", h.CreatePartner)
			r.Get("/{id}", h.GetPartner)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Post("/{id}/earnings", h.RecordEarning)
			r.Get("/{id}/claims", h.ListClaims)
			r.Post("/{id}/claims", h.ClaimReward)
			r.Get("/{id}/payouts", h.GetPayouts)
		})

		// Reward catalog routes
		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", h.ListRewards)
			r.Post("/", h.CreateReward)
			r.Put("/{id}", h.UpdateReward)
		})

		// Claim lifecycle routes (admin)
		r.Route("/claims", func(r chi.Router) {
			r.Post("/{id}/status", h.SetClaimStatus)
		})

		// Commission routes
		r.Route("/commissions", func(r chi.Router) {
			r.Post("/distribute", h.BatchDistribute)
			r.Get("/{id}", h.GetCommission)
			r.Post("/{id}/distribute", h.Distribute)
		})

		// Platform fee account routes
		r.Route("/platform", func(r chi.Router) {
			r.Get("/", h.GetPlatform)
			r.Post("/withdraw", h.WithdrawPlatformFee)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
