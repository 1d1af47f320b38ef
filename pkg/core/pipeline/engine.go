// Package pipeline is the entry point of the normalization engine. It fans documents out
// to a bounded worker pool for extraction, mapping, unit normalization and period
// resolution, then merges every result sequentially into the consolidator.
//
// Error policy:
//   - Per-record problems (oracle failure or timeout, unmapped labels, unparsable values,
//     unconfirmed units, unreadable periods) become audit entries; the batch continues.
//   - Ambiguous data (two records of the same variant for one key) is an audit error; the
//     first record in catalog order is kept.
//   - Only configuration problems (no dictionary, no oracle, invalid catalog) are returned
//     as errors, before any document is processed.
package pipeline

import (
	"context"
	"fmt"
	"quarterly_metrics/pkg/core/catalog"
	"quarterly_metrics/pkg/core/config"
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/core/period"
	"quarterly_metrics/pkg/core/synthesis"
	"quarterly_metrics/pkg/core/units"
	"quarterly_metrics/pkg/core/validate"
	"quarterly_metrics/pkg/models"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoDictionary  = eris.New("metric dictionary is required")
	ErrNoOracle      = eris.New("extraction oracle is required")
	ErrOracleTimeout = eris.New("oracle call timed out")
)

// Oracle turns one source document into raw extraction records, one per statement
// variant it found. It is untrusted: any field may be missing or mislabeled.
type Oracle interface {
	Extract(ctx context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error)

func (f OracleFunc) Extract(ctx context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error) {
	return f(ctx, doc)
}

// Result is the output of one batch. Records and Audit are read-only once returned.
type Result struct {
	BatchID string
	Records []models.CanonicalMetricRecord
	Audit   []models.AuditEntry
	Metrics []string // Canonical metric IDs in dataset column order
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics records run counters on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithBatchID fixes the batch ID instead of generating one.
func WithBatchID(id string) Option {
	return func(e *Engine) { e.batchID = id }
}

// WithResolver replaces the label resolver. The default is the dictionary behind a cache.
func WithResolver(r dictionary.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// Engine runs batches. It holds no per-batch state and may run several batches in turn.
type Engine struct {
	cfg        config.Config
	dict       *dictionary.Dictionary
	oracle     Oracle
	resolver   dictionary.Resolver
	normalizer *units.Normalizer
	periods    *period.Resolver
	keys       *validate.KeyValidator
	log        zerolog.Logger
	metrics    *Metrics
	batchID    string
}

// New validates the configuration and builds an engine. oracle may be nil when only
// Process is used.
func New(cfg config.Config, dict *dictionary.Dictionary, oracle Oracle, opts ...Option) (*Engine, error) {
	if dict == nil {
		return nil, ErrNoDictionary
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		dict:       dict,
		oracle:     oracle,
		normalizer: units.NewNormalizer(dict.Definitions(), cfg.DefaultUnit),
		periods:    period.NewResolver(),
		keys:       validate.NewKeyValidator(cfg.Retention, cfg.Symbols()),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = dictionary.NewCachedResolver(dict)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e, nil
}

// docResult is everything one worker produced for one document.
type docResult struct {
	resolved []models.ResolvedRecord
	audit    []models.AuditEntry
}

// Run extracts every document through the oracle and builds the canonical dataset.
// A failed or timed-out oracle call is audited and the batch continues; the returned
// error is non-nil only for an invalid catalog or a missing oracle.
func (e *Engine) Run(ctx context.Context, docs []models.SourceDocument) (*Result, error) {
	if e.oracle == nil {
		return nil, ErrNoOracle
	}
	if err := catalog.Validate(docs); err != nil {
		return nil, eris.Wrap(err, "invalid source catalog")
	}

	batchID := e.newBatchID()
	log := e.log.With().Str("batch_id", batchID).Logger()
	log.Info().Int("documents", len(docs)).Int("workers", e.cfg.Workers).Msg("batch started")
	start := time.Now()

	results := make([]docResult, len(docs))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i := range docs {
		g.Go(func() error {
			results[i] = e.processDocument(ctx, batchID, docs[i], log)
			return nil
		})
	}
	_ = g.Wait()

	res := e.merge(batchID, results, log)
	log.Info().
		Int("records", len(res.Records)).
		Int("audit_entries", len(res.Audit)).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return res, nil
}

// Process runs already-extracted records through the engine without the oracle.
// docs supplies period hints and is optional.
func (e *Engine) Process(records []models.RawExtractionRecord, docs ...models.SourceDocument) *Result {
	batchID := e.newBatchID()
	log := e.log.With().Str("batch_id", batchID).Logger()

	byID := make(map[string]models.SourceDocument, len(docs))
	for _, d := range docs {
		byID[d.DocumentID] = d
	}

	results := make([]docResult, 0, len(records))
	for i, rec := range records {
		doc, ok := byID[rec.DocumentID]
		if !ok {
			doc = models.SourceDocument{DocumentID: rec.DocumentID, CompanySymbol: rec.CompanySymbol}
		}
		if rec.SourceID == "" {
			rec.SourceID = fmt.Sprintf("%s#%d", rec.DocumentID, i+1)
		}
		var r docResult
		e.resolveInto(&r, batchID, doc, rec, log)
		results = append(results, r)
	}
	return e.merge(batchID, results, log)
}

// merge is the single writer: results are applied in catalog order so "first seen"
// does not depend on worker scheduling.
func (e *Engine) merge(batchID string, results []docResult, log zerolog.Logger) *Result {
	profiles := make(map[string]synthesis.Profile, len(e.cfg.Companies))
	for _, c := range e.cfg.Companies {
		profiles[catalog.NormalizeSymbol(c.Symbol)] = synthesis.Profile{Name: c.Name, Sector: c.Sector}
	}
	cons := synthesis.NewConsolidator(synthesis.Config{
		BatchID:                 batchID,
		Metrics:                 e.dict.IDs(),
		Keys:                    e.keys,
		GapTolerance:            e.cfg.GapTolerance,
		RestatementTolerancePct: e.cfg.RestatementTolerancePct,
		Profiles:                profiles,
	}, log)

	var audit []models.AuditEntry
	for _, r := range results {
		audit = append(audit, r.audit...)
		for _, rec := range r.resolved {
			cons.Add(rec)
		}
	}
	records, consAudit := cons.Finalize()
	audit = append(audit, consAudit...)
	sortAudit(audit)

	for _, a := range audit {
		e.metrics.AuditEntries.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	}
	e.metrics.Canonical.Set(float64(len(records)))

	return &Result{BatchID: batchID, Records: records, Audit: audit, Metrics: e.dict.IDs()}
}

// sortAudit groups entries by document while keeping their relative order.
func sortAudit(audit []models.AuditEntry) {
	sort.SliceStable(audit, func(i, j int) bool {
		if audit[i].CompanySymbol != audit[j].CompanySymbol {
			return audit[i].CompanySymbol < audit[j].CompanySymbol
		}
		return audit[i].DocumentID < audit[j].DocumentID
	})
}

func (e *Engine) newBatchID() string {
	if e.batchID != "" {
		return e.batchID
	}
	return uuid.NewString()
}
