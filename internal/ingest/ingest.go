// Package ingest runs a dataset file through hashing, fitting and storage,
// at most once per distinct file content.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/dataset"
	"github.com/sells-group/habitat-api/internal/ledger"
	"github.com/sells-group/habitat-api/internal/metrics"
	"github.com/sells-group/habitat-api/internal/store"
)

// Invalidator drops cached scores after new coefficients are written.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Outcome summarises one ingestion.
type Outcome struct {
	RunID           string   `json:"run_id"`
	Profile         string   `json:"profile"`
	Hash            string   `json:"hash"`
	RecordsWritten  int64    `json:"records_written"`
	Countries       []string `json:"countries,omitempty"`
	SkippedRows     int      `json:"skipped_rows"`
	SkippedCurves   int      `json:"skipped_curves"`
	AlreadyIngested bool     `json:"already_ingested"`
}

// Ingester writes fitted coefficients for new dataset files.
type Ingester struct {
	store  store.Writer
	ledger *ledger.Ledger
	algo   ledger.Algorithm
	cache  Invalidator
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithHashAlgorithm selects the content hash recorded in the ledger.
func WithHashAlgorithm(algo ledger.Algorithm) Option {
	return func(i *Ingester) { i.algo = algo }
}

// WithCache invalidates c after every ingestion that writes records.
func WithCache(c Invalidator) Option {
	return func(i *Ingester) { i.cache = c }
}

// New creates an Ingester.
func New(w store.Writer, l *ledger.Ledger, opts ...Option) *Ingester {
	i := &Ingester{store: w, ledger: l, algo: ledger.SHA1}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Ingest hashes the file at path and, unless the ledger already holds the
// hash, fits it with profile p and upserts the records. The hash is recorded
// only when at least one record was written. A file already in the ledger
// returns an Outcome with AlreadyIngested set and no error.
func (i *Ingester) Ingest(ctx context.Context, path string, p *dataset.Profile) (Outcome, error) {
	start := time.Now()
	out := Outcome{RunID: uuid.New().String(), Profile: p.Name}
	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("run_id", out.RunID),
		zap.String("profile", p.Name),
		zap.String("path", path),
	)
	defer func() {
		metrics.IngestDuration.WithLabelValues(p.Name).Observe(time.Since(start).Seconds())
	}()

	hash, err := ledger.HashFile(path, i.algo)
	if err != nil {
		metrics.IngestRuns.WithLabelValues(p.Name, metrics.OutcomeFailed).Inc()
		return out, eris.Wrap(err, "ingest: hash")
	}
	out.Hash = hash
	log = log.With(zap.String("hash", hash))

	seen, err := i.ledger.Guard(hash, func() (bool, error) {
		res, err := dataset.Process(ctx, path, p)
		if err != nil {
			return false, err
		}
		out.SkippedRows = res.RowsSkipped
		out.SkippedCurves = res.CurvesSkipped
		metrics.CurvesSkipped.WithLabelValues(p.Name).Add(float64(res.CurvesSkipped))

		n, err := i.write(ctx, res)
		if err != nil {
			return false, err
		}
		out.RecordsWritten = n
		if n > 0 {
			out.Countries = res.Countries()
		}
		return n > 0, nil
	})
	if err != nil {
		metrics.IngestRuns.WithLabelValues(p.Name, metrics.OutcomeFailed).Inc()
		log.Error("ingest: failed", zap.Error(err))
		return out, eris.Wrap(err, "ingest")
	}

	if seen {
		out.AlreadyIngested = true
		metrics.IngestRuns.WithLabelValues(p.Name, metrics.OutcomeDuplicate).Inc()
		log.Warn("ingest: dataset already processed")
		return out, nil
	}

	if out.RecordsWritten == 0 {
		metrics.IngestRuns.WithLabelValues(p.Name, metrics.OutcomeEmpty).Inc()
		log.Warn("ingest: no records produced, ledger unchanged")
		return out, nil
	}

	metrics.IngestRuns.WithLabelValues(p.Name, metrics.OutcomeIngested).Inc()
	metrics.RecordsWritten.WithLabelValues(p.Name).Add(float64(out.RecordsWritten))

	if i.cache != nil {
		if err := i.cache.Invalidate(ctx); err != nil {
			log.Warn("ingest: cache invalidation failed", zap.Error(err))
		}
	}

	log.Info("ingest: complete",
		zap.Int64("records", out.RecordsWritten),
		zap.Int("skipped_rows", out.SkippedRows),
		zap.Int("skipped_curves", out.SkippedCurves),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (i *Ingester) write(ctx context.Context, res *dataset.Result) (int64, error) {
	switch res.Kind {
	case dataset.KindTemperature:
		n, err := i.store.UpsertHeat(ctx, res.Heat)
		return n, eris.Wrap(err, "ingest: upsert heat")
	case dataset.KindPollutant:
		n, err := i.store.UpsertAir(ctx, res.Air)
		return n, eris.Wrap(err, "ingest: upsert air")
	default:
		return 0, eris.Errorf("ingest: unknown dataset kind %q", res.Kind)
	}
}
