package score

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/habitat-api/internal/metrics"
	"github.com/sells-group/habitat-api/internal/model"
	"github.com/sells-group/habitat-api/internal/store"
)

// Metric selects which score a query returns.
type Metric string

// Metrics served by the API.
const (
	MetricOverall Metric = "overall"
	MetricAir     Metric = "air"
	MetricHeat    Metric = "heat"
)

// Cache stores catalog score maps. Implementations treat failures as misses.
// Lookups are skipped when Available reports false.
type Cache interface {
	Available() bool
	GetScores(ctx context.Context, key string) (map[string]*float64, bool)
	SetScores(ctx context.Context, key string, scores map[string]*float64)
}

// Service computes scores from stored coefficient records.
type Service struct {
	store store.Reader
	cache Cache
	log   *zap.Logger
}

// NewService creates a Service. cache may be nil.
func NewService(r store.Reader, cache Cache) *Service {
	return &Service{
		store: r,
		cache: cache,
		log:   zap.L().With(zap.String("component", "score")),
	}
}

// Country returns metric for one country at year. A nil score means the
// country is stored but no sub-score could be computed. The error wraps
// store.ErrNotFound when the country is absent from every table the metric
// reads.
func (s *Service) Country(ctx context.Context, metric Metric, country string, year int) (*float64, error) {
	metrics.ScoreRequests.WithLabelValues(string(metric), "country").Inc()
	x := float64(year)

	switch metric {
	case MetricAir:
		rec, err := s.store.GetAir(ctx, country)
		if err != nil {
			return nil, eris.Wrap(err, "score: air")
		}
		return optional(AirScore(rec, x)), nil

	case MetricHeat:
		rec, err := s.store.GetHeat(ctx, country)
		if err != nil {
			return nil, eris.Wrap(err, "score: heat")
		}
		return optional(HeatScore(rec, x)), nil

	case MetricOverall:
		var heat *model.HeatRecord
		var air *model.AirRecord
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rec, err := s.store.GetHeat(gctx, country)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			heat = rec
			return err
		})
		g.Go(func() error {
			rec, err := s.store.GetAir(gctx, country)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			air = rec
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "score: overall")
		}
		if heat == nil && air == nil {
			return nil, eris.Wrapf(store.ErrNotFound, "score: %s not in any dataset", country)
		}
		return Overall(optional(HeatScore(heat, x)), optional(AirScore(air, x))), nil

	default:
		return nil, eris.Errorf("score: unknown metric %q", metric)
	}
}

// Catalog returns metric at year for every stored country. Overall covers
// the union of the heat and air tables; a country missing from one table
// contributes only the other sub-score. Countries whose score cannot be
// computed map to nil.
func (s *Service) Catalog(ctx context.Context, metric Metric, year int) (map[string]*float64, error) {
	metrics.ScoreRequests.WithLabelValues(string(metric), "catalog").Inc()

	key := fmt.Sprintf("%s:%d", metric, year)
	cached := s.cache != nil && s.cache.Available()
	if cached {
		if scores, ok := s.cache.GetScores(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return scores, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	heat, air, err := s.load(ctx, metric)
	if err != nil {
		return nil, err
	}

	x := float64(year)
	heatScores := make(map[string]*float64, len(heat))
	for i := range heat {
		heatScores[heat[i].Country] = optional(HeatScore(&heat[i], x))
	}
	airScores := make(map[string]*float64, len(air))
	for i := range air {
		airScores[air[i].Country] = optional(AirScore(&air[i], x))
	}

	var scores map[string]*float64
	switch metric {
	case MetricHeat:
		scores = heatScores
	case MetricAir:
		scores = airScores
	default:
		scores = make(map[string]*float64, len(heatScores)+len(airScores))
		for c, h := range heatScores {
			scores[c] = Overall(h, airScores[c])
		}
		for c, a := range airScores {
			if _, seen := heatScores[c]; !seen {
				scores[c] = Overall(nil, a)
			}
		}
	}

	s.log.Debug("score: catalog computed",
		zap.String("metric", string(metric)),
		zap.Int("year", year),
		zap.Int("countries", len(scores)),
	)

	if cached {
		s.cache.SetScores(ctx, key, scores)
	}
	return scores, nil
}

// load fetches the tables metric needs, concurrently when it needs both.
func (s *Service) load(ctx context.Context, metric Metric) ([]model.HeatRecord, []model.AirRecord, error) {
	var heat []model.HeatRecord
	var air []model.AirRecord

	switch metric {
	case MetricOverall, MetricHeat, MetricAir:
	default:
		return nil, nil, eris.Errorf("score: unknown metric %q", metric)
	}

	g, gctx := errgroup.WithContext(ctx)
	if metric != MetricAir {
		g.Go(func() error {
			var err error
			heat, err = s.store.ListHeat(gctx)
			return eris.Wrap(err, "score: list heat")
		})
	}
	if metric != MetricHeat {
		g.Go(func() error {
			var err error
			air, err = s.store.ListAir(gctx)
			return eris.Wrap(err, "score: list air")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return heat, air, nil
}

// Countries returns the stored country identifiers containing query
// (case-insensitive), sorted. An empty query lists every country.
func (s *Service) Countries(ctx context.Context, query string) ([]string, error) {
	heat, air, err := s.load(ctx, MetricOverall)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]bool, len(heat)+len(air))
	var out []string
	add := func(c string) {
		if seen[c] || !strings.Contains(strings.ToLower(c), q) {
			return
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, h := range heat {
		add(h.Country)
	}
	for _, a := range air {
		add(a.Country)
	}
	sort.Strings(out)
	return out, nil
}
