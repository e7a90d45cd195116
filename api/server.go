/*
server.go - HTTP server setup and routing

PURPOSE:
  Configures the chi router with middleware and routes for the REST
  API. Every route under /api requires a session; the automation
  routes additionally accept the scheduler secret.

MIDDLEWARE STACK:
  1. Logger: Request logging
  2. Recoverer: Panic recovery
  3. RequestID: Request tracing
  4. CORS: Cross-origin support for web frontends

SEE ALSO:
  - handlers.go: The handler implementations
  - auth.go: The session and scheduler gates
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the chi router with all routes configured.
func NewRouter(h *Handler, auth *Auth) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS for web frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check, unauthenticated
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Session-authenticated resources
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession)

			r.Route("/shifts", func(r chi.Router) {
				r.Get("/", h.ListShifts)
				r.Post("/", h.CreateShift)
				r.Get("/{id}", h.GetShift)
				r.Put("/{id}", h.UpdateShift)
				r.Delete("/{id}", h.DeleteShift)
				r.Post("/{id}/claim", h.ClaimShift)
			})

			r.Route("/absences", func(r chi.Router) {
				r.Get("/", h.ListAbsences)
				r.Post("/", h.CreateAbsence)
				r.Get("/{id}", h.GetAbsence)
				r.Patch("/{id}", h.DecideAbsence)
			})

			r.Route("/shift-swaps", func(r chi.Router) {
				r.Get("/", h.ListSwaps)
				r.Post("/", h.CreateSwap)
				r.Post("/{id}/accept", h.AcceptSwap)
				r.Post("/{id}/approve", h.ApproveSwap)
				r.Post("/{id}/reject", h.RejectSwap)
				r.Post("/{id}/cancel", h.CancelSwap)
			})

			r.Route("/shift-change-requests", func(r chi.Router) {
				r.Get("/", h.ListChanges)
				r.Post("/", h.CreateChange)
				r.Post("/{id}/approve", h.ApproveChange)
				r.Post("/{id}/reject", h.RejectChange)
				r.Post("/{id}/cancel", h.CancelChange)
			})

			r.Route("/time-entries", func(r chi.Router) {
				r.Get("/", h.ListEntries)
				r.Post("/", h.CreateEntry)
				r.Post("/clock", h.Clock)
				r.Get("/clock", h.ClockStatus)
				r.Get("/{id}", h.GetEntry)
				r.Put("/{id}", h.UpdateEntry)
				r.Delete("/{id}", h.DeleteEntry)
				r.Post("/{id}/status", h.EntryStatus)
				r.Get("/{id}/audit", h.EntryAudit)
			})

			r.Route("/month-close", func(r chi.Router) {
				r.Get("/", h.ListMonthCloses)
				r.Post("/", h.MonthCloseAction)
			})

			r.Get("/holidays", h.ListHolidays)
		})

		// Automation routes: manager session or scheduler secret
		r.Route("/automations", func(r chi.Router) {
			r.Use(auth.RequireSessionOrScheduler)

			r.Post("/generate-time-entries", h.GenerateTimeEntries)
			r.Post("/overtime-check", h.OvertimeCheck)
			r.Post("/payroll-lock", h.PayrollLock)
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSetting)
		})
	})

	return r
}
