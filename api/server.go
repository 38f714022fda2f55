/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This
  is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for a frontend
  6. RequireAuth on everything under /api except /api/auth/*

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		// Everything below requires a token.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Route("/me/profile", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Put("/", h.PutProfile)
			})

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", h.ListCompanies)
				r.Post("/", h.CreateCompany)

				r.Route("/{companyID}", func(r chi.Router) {
					r.Get("/", h.GetCompany)
					r.Put("/", h.UpdateCompany)
					r.Delete("/", h.DeleteCompany)

					r.Route("/projects", func(r chi.Router) {
						r.Get("/", h.ListProjects)
						r.Post("/", h.CreateProject)
						r.Delete("/{projectID}", h.DeleteProject)
					})

					r.Route("/entries", func(r chi.Router) {
						r.Get("/", h.ListEntries)
						r.Put("/", h.ReconcileEntry)
						r.Delete("/", h.DeleteEntry)
						r.Post("/bulk", h.BulkReconcile)
					})

					r.Route("/averages", func(r chi.Router) {
						r.Get("/", h.GetAverages)
						r.Post("/fill", h.FillAverages)
					})

					r.Get("/trends", h.GetTrends)
				})
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", h.ListInvoices)
				r.Post("/", h.CreateInvoice)
				r.Get("/{invoiceID}", h.GetInvoice)
				r.Post("/{invoiceID}/status", h.TransitionInvoice)
				r.Delete("/{invoiceID}", h.DeleteInvoice)
			})
		})
	})

	return r
}
