/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /healthz              Liveness check
  /metrics              Prometheus scrape endpoint
  /api/employees/*      Roster, attendance, payroll, severance
  /api/rates/*          Rate timeline and legacy table
  /api/workplaces/*     Ledger imports, slips, liability
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Roster and per-employee computation
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/attendance", h.AddAttendance)
			r.Post("/{id}/past-payroll", h.AddPastPayroll)
			r.Get("/{id}/payroll", h.GetPayroll)
			r.Get("/{id}/severance", h.GetSeverance)
		})

		// Rate routes
		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Get("/resolve", h.ResolveRates)
			r.Get("/legacy", h.ListLegacyRates)
			r.Post("/legacy", h.CreateLegacyRate)
			r.Post("/legacy/migrate", h.MigrateLegacyRates)
			r.Delete("/legacy/{id}", h.DeleteLegacyRate)
			r.Put("/{yearMonth}", h.PutMonthlyRates)
		})

		// Workplace routes
		r.Route("/workplaces/{wid}", func(r chi.Router) {
			r.Post("/ledger-imports", h.ImportLedger)
			r.Get("/ledger-imports", h.ListImportRuns)
			r.Get("/slips", h.ListSlips)
			r.Get("/slips/{employeeID}/{period}/pdf", h.GetSlipPDF)
			r.Get("/liability", h.GetLiability)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
