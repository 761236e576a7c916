package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"albumpress/internal/http/handlers"
	"albumpress/internal/middleware"
)

type Options struct {
	// RunRatePerMinute limits POST /v1/album-jobs/run per client IP.
	RunRatePerMinute int
	// TrustProxy rewrites RemoteAddr from X-Forwarded-For and friends. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

func NewRouter(app *handlers.App, logger zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/album-jobs", func(r chi.Router) {
		r.Post("/", app.EnqueueAlbumJob)
		r.Get("/", app.ListAlbumJobs)
		r.With(middleware.RateLimit(opts.RunRatePerMinute, time.Minute)).Post("/run", app.RunAlbumJob)
		r.Get("/{id}", app.GetAlbumJob)
	})

	return r
}
