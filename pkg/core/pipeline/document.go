package pipeline

import (
	"context"
	"fmt"
	"quarterly_metrics/pkg/core/catalog"
	"quarterly_metrics/pkg/core/mapping"
	"quarterly_metrics/pkg/core/period"
	"quarterly_metrics/pkg/models"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// processDocument runs one document end to end. It never fails: every problem is
// turned into audit entries on the returned result.
func (e *Engine) processDocument(ctx context.Context, batchID string, doc models.SourceDocument, log zerolog.Logger) docResult {
	var out docResult
	dlog := log.With().Str("document_id", doc.DocumentID).Str("symbol", doc.CompanySymbol).Logger()

	records, err := e.extract(ctx, doc)
	if err != nil {
		dlog.Warn().Err(err).Msg("extraction failed")
		e.metrics.Documents.WithLabelValues("failed").Inc()
		out.audit = append(out.audit, models.AuditEntry{
			BatchID:       batchID,
			Kind:          models.AuditExtractionFailure,
			Severity:      models.SeverityError,
			DocumentID:    doc.DocumentID,
			CompanySymbol: catalog.NormalizeSymbol(doc.CompanySymbol),
			Detail:        err.Error(),
		})
		return out
	}
	if len(records) == 0 {
		e.metrics.Documents.WithLabelValues("empty").Inc()
		out.audit = append(out.audit, models.AuditEntry{
			BatchID:       batchID,
			Kind:          models.AuditExtractionFailure,
			Severity:      models.SeverityError,
			DocumentID:    doc.DocumentID,
			CompanySymbol: catalog.NormalizeSymbol(doc.CompanySymbol),
			Detail:        "oracle returned no records",
		})
		return out
	}
	e.metrics.Documents.WithLabelValues("extracted").Inc()

	filled := make([]models.RawExtractionRecord, len(records))
	for i, rec := range records {
		if rec.DocumentID == "" {
			rec.DocumentID = doc.DocumentID
		}
		if rec.CompanySymbol == "" {
			rec.CompanySymbol = doc.CompanySymbol
		}
		if rec.SourceID == "" {
			rec.SourceID = fmt.Sprintf("%s#%d", doc.DocumentID, i+1)
		}
		filled[i] = rec
	}

	kept, skipped := preferQuarterly(filled)
	for _, rec := range skipped {
		out.audit = append(out.audit, models.AuditEntry{
			BatchID:       batchID,
			Kind:          models.AuditDurationMismatch,
			Severity:      models.SeverityInfo,
			DocumentID:    rec.DocumentID,
			SourceID:      rec.SourceID,
			CompanySymbol: catalog.NormalizeSymbol(rec.CompanySymbol),
			Detail: fmt.Sprintf("%s %s statement skipped; the document also reports %s",
				period.DetectVariant(rec), rec.Duration, quarterlyDuration),
		})
		e.metrics.Records.WithLabelValues("dropped").Inc()
	}
	for _, rec := range kept {
		e.resolveInto(&out, batchID, doc, rec, dlog)
	}
	dlog.Debug().Int("records", len(records)).Int("resolved", len(out.resolved)).Msg("document processed")
	return out
}

const quarterlyDuration = "3 months"

// preferQuarterly drops cumulative statements (6, 9 or 12 months) of a variant when the
// same document also carries that variant's 3-month statement. Order is preserved.
func preferQuarterly(records []models.RawExtractionRecord) (kept, skipped []models.RawExtractionRecord) {
	quarterly := make(map[models.Variant]bool)
	for _, rec := range records {
		if isQuarterly(rec.Duration) {
			quarterly[period.DetectVariant(rec)] = true
		}
	}
	for _, rec := range records {
		if quarterly[period.DetectVariant(rec)] && !isQuarterly(rec.Duration) && strings.TrimSpace(rec.Duration) != "" {
			skipped = append(skipped, rec)
			continue
		}
		kept = append(kept, rec)
	}
	return kept, skipped
}

func isQuarterly(duration string) bool {
	d := strings.ToLower(strings.Join(strings.Fields(duration), " "))
	return d == quarterlyDuration || d == "three months" || d == "3 month"
}

// extract calls the oracle under a per-call timeout. The call runs in its own goroutine
// so an oracle that ignores cancellation cannot hold a worker past the deadline.
func (e *Engine) extract(ctx context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error) {
	timeout := e.cfg.OracleTimeout.Std()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		records []models.RawExtractionRecord
		err     error
	}
	ch := make(chan reply, 1)
	start := time.Now()
	go func() {
		records, err := e.oracle.Extract(callCtx, doc)
		ch <- reply{records, err}
	}()

	select {
	case r := <-ch:
		e.metrics.OracleLatency.Observe(time.Since(start).Seconds())
		if r.err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return nil, eris.Wrapf(ErrOracleTimeout, "after %s", timeout)
			}
			return nil, eris.Wrap(r.err, "oracle")
		}
		return r.records, nil
	case <-callCtx.Done():
		e.metrics.OracleLatency.Observe(time.Since(start).Seconds())
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "batch cancelled")
		}
		return nil, eris.Wrapf(ErrOracleTimeout, "after %s", timeout)
	}
}

// resolveInto maps, normalizes and keys one raw record. A record whose period cannot be
// resolved is audited and dropped; every other problem is audited and the record kept.
func (e *Engine) resolveInto(out *docResult, batchID string, doc models.SourceDocument, rec models.RawExtractionRecord, log zerolog.Logger) {
	symbol := catalog.NormalizeSymbol(rec.CompanySymbol)
	if symbol == "" {
		symbol = catalog.NormalizeSymbol(doc.CompanySymbol)
	}
	base := models.AuditEntry{
		BatchID:       batchID,
		DocumentID:    rec.DocumentID,
		SourceID:      rec.SourceID,
		CompanySymbol: symbol,
	}
	audit := func(kind models.AuditKind, sev models.Severity, metric, detail string) {
		a := base
		a.Kind, a.Severity, a.Metric, a.Detail = kind, sev, metric, detail
		out.audit = append(out.audit, a)
	}

	startMonth := 1
	if c, ok := e.cfg.Company(symbol); ok && c.FiscalYearStartMonth != 0 {
		startMonth = c.FiscalYearStartMonth
	}
	res, err := e.periods.Resolve(rec.PeriodDescription, period.Meta{
		PeriodHint:           doc.PeriodHint,
		FiscalYearStartMonth: startMonth,
	})
	if err != nil {
		audit(models.AuditPeriodParseFailure, models.SeverityError, "", err.Error())
		e.metrics.Records.WithLabelValues("dropped").Inc()
		log.Warn().Str("source_id", rec.SourceID).Str("period", rec.PeriodDescription).Msg("period not resolved")
		return
	}
	key := models.CanonicalKey{CompanySymbol: symbol, FiscalYear: res.FiscalYear, Quarter: res.Quarter}
	base = base.ForKey(key)

	mapped := mapping.NewMapper(e.resolver, log).Map(rec)
	for _, u := range mapped.Unmapped {
		audit(models.AuditUnmappedLabel, models.SeverityWarning, "",
			fmt.Sprintf("%s label %q matched no canonical metric", u.Period, u.Label))
	}
	for _, d := range mapped.Duplicates {
		audit(models.AuditDuplicateLabel, models.SeverityWarning, d.Metric,
			fmt.Sprintf("%s label %q also resolved to %s; kept %q", d.Period, d.Label, d.Metric, d.Kept))
	}

	norm := e.normalizer.Normalize(mapped)
	for _, is := range norm.Issues {
		audit(models.AuditUnparsableValue, models.SeverityWarning, is.Metric,
			fmt.Sprintf("%s value %q for label %q: %v", is.Period, is.Raw, is.Label, is.Err))
	}
	if !norm.Confirmed {
		audit(models.AuditUnitUnconfirmed, models.SeverityWarning, "",
			fmt.Sprintf("no scale in unit hint; assumed %s", e.cfg.DefaultUnit))
	}

	r := models.ResolvedRecord{
		Key:           key,
		Variant:       period.DetectVariant(rec),
		CompanyName:   strings.TrimSpace(rec.CompanyName),
		PeriodEnd:     res.PeriodEnd,
		Duration:      rec.Duration,
		AuditStatus:   rec.AuditStatus,
		Currency:      norm.Unit.Currency,
		UnitConfirmed: norm.Confirmed,
		Current:       norm.Current,
		Comparative:   norm.Comparative,
		Provenance: models.Provenance{
			BatchID:       batchID,
			SourceID:      rec.SourceID,
			DocumentID:    rec.DocumentID,
			StatementUsed: rec.StatementUsed,
			PageNumbers:   rec.PageNumbers,
		},
	}
	if d, ok := e.periods.Date(rec.ComparativePeriodDescription, startMonth); ok {
		r.ComparativePeriodEnd = d
	}
	if res.FromHint {
		r.Provenance.Filled = append(r.Provenance.Filled, "period_from_catalog")
	}
	out.resolved = append(out.resolved, r)
	e.metrics.Records.WithLabelValues("resolved").Inc()
}
