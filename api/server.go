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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/contracts/*   Contract management and compensation audits
  /api/rates/*       Exchange-rate history
  /api/payslips/*    Compute, confirm, project, export

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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

	r.Route("/api", func(r chi.Router) {
		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Put("/{id}/compensation", h.UpdateCompensation)
			r.Get("/{id}/payslips", h.ListContractPayslips)
		})

		// Rate routes
		r.Route("/rates", func(r chi.Router) {
			r.Post("/", h.PutRate)
			r.Get("/{currency}", h.ListRates)
		})

		// Payslip routes
		r.Route("/payslips", func(r chi.Router) {
			r.Post("/compute", h.ComputePayslip)
			r.Post("/aguinaldos", h.ComputeAguinaldos)
			r.Post("/liquidation", h.ComputeLiquidation)
			r.Post("/batch", h.ComputeBatch)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetPayslip)
				r.Post("/confirm", h.ConfirmPayslip)
				r.Post("/flags", h.UpdateFlags)
				r.Get("/view", h.ProjectPayslip)
				r.Get("/interest-schedule", h.InterestSchedule)
				r.Get("/breakdown.xlsx", h.BreakdownXLSX)
			})
		})
	})

	return r
}
