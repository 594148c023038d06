package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"reelgen/internal/http/handlers"
	"reelgen/internal/middleware"
)

// Options tune the router's middleware stack.
type Options struct {
	Logger          zerolog.Logger
	CreatePerMinute int
	AllowedOrigins  []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.CORS(opts.AllowedOrigins),
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/config", app.VideoConfig)
		r.Get("/stats", app.VideoStats)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Route("/videos", func(r chi.Router) {
			r.With(middleware.RateLimit(opts.CreatePerMinute, time.Minute)).Post("/", app.VideosCreate)
			r.Get("/", app.VideosList)
			r.Get("/{key}", app.VideoGet)
			r.Post("/{key}/refresh", app.VideoRefresh)
		})
	})

	return r
}
