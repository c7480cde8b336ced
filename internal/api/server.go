// Package api serves scores over HTTP and accepts dataset uploads.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/dataset"
	"github.com/sells-group/habitat-api/internal/ingest"
	"github.com/sells-group/habitat-api/internal/score"
)

// Scorer answers score queries.
type Scorer interface {
	Country(ctx context.Context, metric score.Metric, country string, year int) (*float64, error)
	Catalog(ctx context.Context, metric score.Metric, year int) (map[string]*float64, error)
	Countries(ctx context.Context, query string) ([]string, error)
}

// Ingester processes an uploaded dataset file.
type Ingester interface {
	Ingest(ctx context.Context, path string, p *dataset.Profile) (ingest.Outcome, error)
}

// Pinger reports datastore health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Scores   Scorer
	Ingester Ingester
	Profiles *dataset.Registry
	Health   Pinger
}

// Options tune the HTTP surface.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
	opts Options
	now  func() time.Time
	log  *zap.Logger
}

// NewServer creates a Server.
func NewServer(deps Deps, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 256 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if deps.Profiles == nil {
		deps.Profiles = dataset.DefaultRegistry()
	}
	return &Server{
		deps: deps,
		opts: opts,
		now:  time.Now,
		log:  zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Get("/score", s.handlePrediction(score.MetricOverall))
		r.Get("/air_pollution_prediction", s.handlePrediction(score.MetricAir))
		r.Get("/heat_prediction", s.handlePrediction(score.MetricHeat))
		r.Get("/countries", s.handleCountries)
	})

	r.Post("/upload/{profile}", s.handleUpload)

	return r
}
