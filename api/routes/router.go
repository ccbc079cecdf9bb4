package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/studyabroad-backend/api/controllers"
	"github.com/angelmondragon/studyabroad-backend/api/middleware"
	"github.com/angelmondragon/studyabroad-backend/api/validators"
	"github.com/angelmondragon/studyabroad-backend/pkg/config"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/studyabroad-backend/pkg/redis"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage/local"
)

// Deps are the collaborators the HTTP surface is built from. Optional
// entries may be nil: Idempotency disables replay, LocalMedia disables the
// signed media route and Gatherer disables /metrics.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Resources   controllers.Resources
	Idempotency pkgredis.IdempotencyStore
	LocalMedia  *local.Store
	Health      map[string]controllers.Pinger
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg, res := d.Config, d.Logger, d.Resources

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		d.HTTPMetrics.Middleware,
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Health))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.LocalMedia != nil {
		r.Get(local.RoutePrefix+"/{bucket}/{assetID}", controllers.MediaServe(d.LocalMedia, logg))
	}

	bodyLimit := middleware.BodyLimit(validators.RequestLimit(cfg.Media.MaxUploadBytes()))
	idempotent := middleware.Idempotency(d.Idempotency, logg)
	submissionLimit := middleware.SubmissionRateLimit(cfg.RateLimit.SubmissionLimit, cfg.RateLimit.SubmissionWindow, logg)

	r.Route("/api", func(r chi.Router) {
		r.Route("/public", func(r chi.Router) {
			r.With(submissionLimit, bodyLimit, idempotent).Post("/submissions", res.PublicSubmission())
			r.Get("/{entity}", res.PublicList())
			r.Get("/{entity}/{id}", res.PublicGet())
		})

		r.Get("/{entity}", res.List())
		r.With(bodyLimit, idempotent).Post("/{entity}", res.Create())
		r.Get("/{entity}/{id}", res.Get())
		r.With(bodyLimit).Put("/{entity}/{id}", res.Update())
		r.Delete("/{entity}/{id}", res.Delete())
	})

	return r
}
