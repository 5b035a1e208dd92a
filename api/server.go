/*
server.go - HTTP router and middleware configuration (spec.md §6).

Grounded on the teacher's api/server.go route-group/middleware layout
(chi router, Logger/Recoverer/RequestID middleware, cors.Handler).
Static-file serving is dropped since this engine has no bundled
frontend (spec.md Non-goals); the identity middleware is added in its
place (C9) per SPEC_FULL.md's HTTP surface addition. cors.Handler is
kept for the admin dashboard this engine is meant to be consumed by; it
allows GET and POST from any origin, which covers every route,
certify and debit included.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cocrecords/coc-engine/identity"
)

// NewRouter wires every COC endpoint (spec.md §6).
func NewRouter(h *Handler, idp *identity.Provider) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(idp.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Post("/overtime-logs", h.SubmitBatch)
			r.Post("/certificates", h.Certify)
			r.Post("/debits", h.Debit)
			r.Get("/balance", h.Balance)
			r.Get("/ledger", h.EmployeeLedger)
			r.Get("/certified-months", h.CertifiedMonths)
			r.Get("/progress", h.Progress)
		})

		r.Route("/uncertified", func(r chi.Router) {
			r.Get("/stats", h.UncertifiedStats)
			r.Get("/logs", h.UncertifiedLogs)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/expire-sweep", h.ExpireSweep)
			r.Get("/incomplete-certifications", h.IncompleteCertifications)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
