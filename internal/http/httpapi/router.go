// Package httpapi assembles the chi router and middleware chain.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/http/handlers"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra/geoip"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/middleware"
)

// NewRouter builds the full HTTP surface. Signed media links and the health
// probe skip auth; everything else requires a bearer token.
func NewRouter(app *handlers.App, countries geoip.CountryResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Log),
	)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   app.Cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	r.Use(middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute))

	r.Get("/v1/healthz", app.Health)
	r.Get("/media/*", app.ServeMedia)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Cfg.JWTSecret))
		r.Use(middleware.Country(countries))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.CreateJob)
			r.Get("/{job_id}", app.JobStatus)
			r.Get("/{job_id}/bundle", app.JobBundle)
		})

		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/balance", app.CreditsBalance)
			r.Get("/transactions", app.CreditsTransactions)
		})

		r.Get("/v1/admin/jobs/stuck", app.AdminStuckJobs)
	})

	return r
}
