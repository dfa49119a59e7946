package httpapi

import (
	"net/http"
	"time"

	"adforge/internal/http/handlers"
	"adforge/internal/infra"
	"adforge/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Logger          *infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/formats", app.Formats)
	r.Post("/v1/winners", app.Winners)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/", app.ListJobs)
		r.Get("/events", app.StreamJobs)
		r.Get("/{jobID}", app.GetJob)
	})

	// Batches fan out to paid providers.
	r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/v1/batches", app.SubmitBatch)
	r.Get("/v1/batches/{batchID}/archive", app.BatchArchive)

	return r
}
