package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"mediagrab/internal/http/handlers"
	"mediagrab/internal/infra/geoip"
	"mediagrab/internal/middleware"
	"mediagrab/internal/ratelimit"
)

// NewRouter wires the orchestration API. The rate limiter only guards the
// endpoints that reach out to the extractor; reads stay cheap and unmetered.
func NewRouter(app *handlers.App, limiter *ratelimit.Limiter, logger zerolog.Logger, countries geoip.CountryResolver, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger, countries),
		middleware.CORS(corsOrigins),
	)

	r.Get("/", app.Root)
	r.Get("/api/v1/health", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Post("/api/v1/analyze", app.Analyze)
		r.Post("/api/v1/download", app.Download)
	})

	r.Get("/api/v1/videos/{session_id}", app.Videos)
	r.Get("/api/v1/progress/{job_id}", app.Progress)
	r.Get("/ws/{session_id}", app.Subscribe)
	r.Get("/downloads/{name}", app.ServeArtifact)

	return r
}
