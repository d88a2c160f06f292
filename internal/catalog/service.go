// Package catalog implements the instrument catalog: stable identity for
// tradable instruments across repeated imports, bulk CSV ingestion with
// row-level failure tracking, an import job ledger, and hybrid exact/fuzzy
// search with cursor pagination.
package catalog

import (
	"log/slog"

	"instrument-catalogv1/internal/fuzzy"
	"instrument-catalogv1/internal/metrics"
	"instrument-catalogv1/internal/notification"
	rediscache "instrument-catalogv1/internal/store/redis"
	"instrument-catalogv1/internal/store/sqlite"
)

const (
	defaultBatchSize     = 2000
	defaultMaxCandidates = 2000
)

// Service is the catalog facade. One instance is constructed at startup
// and shared by all callers; the SQLite store is the only shared mutable
// state underneath it.
type Service struct {
	store    *sqlite.Store
	cache    *rediscache.Cache     // nil when redis is not configured
	prom     *metrics.Metrics      // nil in tests
	notifier notification.Notifier // nil disables feed alerts
	scorer   fuzzy.Scorer
	log      *slog.Logger

	batchSize     int
	maxCandidates int
}

// Options tune the service. Zero values fall back to defaults.
type Options struct {
	BatchSize     int // import flush size
	MaxCandidates int // fuzzy ranking candidate window ceiling
	Cache         *rediscache.Cache
	Metrics       *metrics.Metrics
	Notifier      notification.Notifier
	Scorer        fuzzy.Scorer
	Logger        *slog.Logger
}

// New builds a Service on top of an opened store.
func New(store *sqlite.Store, opts Options) *Service {
	s := &Service{
		store:         store,
		cache:         opts.Cache,
		prom:          opts.Metrics,
		notifier:      opts.Notifier,
		scorer:        opts.Scorer,
		log:           opts.Logger,
		batchSize:     opts.BatchSize,
		maxCandidates: opts.MaxCandidates,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxCandidates <= 0 {
		s.maxCandidates = defaultMaxCandidates
	}
	if s.scorer == nil {
		s.scorer = fuzzy.WeightedRatio{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// storagef wraps a store failure into the StorageError taxonomy.
func storagef(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
