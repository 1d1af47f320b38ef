// Package synthesis merges resolved period records into the canonical dataset.
//
// The Consolidator is a single-writer merge: callers feed it resolved records one at a
// time (order not significant) and call Finalize once the batch is complete.
//
// Precedence rules:
//  1. Group dominance: a Group record always supersedes a Company record for the same
//     key, whichever arrives first.
//  2. Field-level fallback: a metric the Group record lacks is taken from the Company
//     record of the same key, provided both report in the same currency.
//  3. First seen wins: a second record of the same variant for a key is rejected and
//     reported as a conflict.
package synthesis

import (
	"fmt"
	"quarterly_metrics/pkg/core/period"
	"quarterly_metrics/pkg/core/validate"
	"quarterly_metrics/pkg/models"
	"sort"

	"github.com/rs/zerolog"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Profile is static company metadata carried onto every row.
type Profile struct {
	Name   string
	Sector string
}

// Config is fixed for the lifetime of a Consolidator.
type Config struct {
	BatchID                 string
	Metrics                 []string // Canonical metric IDs in output order
	Keys                    *validate.KeyValidator
	GapTolerance            int     // Missing quarters tolerated between consecutive periods
	RestatementTolerancePct float64 // Allowed drift between a comparative and the prior-year current value
	Profiles                map[string]Profile
}

// =============================================================================
// CONSOLIDATOR
// =============================================================================

type entry struct {
	group   *models.ResolvedRecord
	company *models.ResolvedRecord
}

// Consolidator is not safe for concurrent use; the engine merges sequentially.
type Consolidator struct {
	cfg     Config
	log     zerolog.Logger
	entries map[models.CanonicalKey]*entry
	audit   []models.AuditEntry
}

// NewConsolidator creates an empty consolidator.
func NewConsolidator(cfg Config, log zerolog.Logger) *Consolidator {
	if cfg.Keys == nil {
		cfg.Keys = validate.NewKeyValidator(validate.Window{FromYear: 2000, ToYear: 2099}, nil)
	}
	return &Consolidator{
		cfg:     cfg,
		log:     log,
		entries: make(map[models.CanonicalKey]*entry),
	}
}

// Add merges one resolved record. Invalid keys and unknown companies are audited and dropped.
func (c *Consolidator) Add(rec models.ResolvedRecord) {
	if err := c.cfg.Keys.Key(rec.Key); err != nil {
		c.report(rec, models.AuditInvalidKey, models.SeverityError, "", err.Error())
		return
	}
	if err := c.cfg.Keys.Company(rec.Key.CompanySymbol); err != nil {
		c.report(rec, models.AuditUnknownCompany, models.SeverityError, "", err.Error())
		return
	}

	e, ok := c.entries[rec.Key]
	if !ok {
		e = &entry{}
		c.entries[rec.Key] = e
	}

	slot := &e.group
	if rec.Variant == models.VariantCompany {
		slot = &e.company
	}
	if *slot != nil {
		kept := *slot
		c.report(rec, models.AuditDuplicateVariant, models.SeverityError, "",
			fmt.Sprintf("second %s record for %s; kept %s from document %s",
				rec.Variant, rec.Key, kept.Provenance.SourceID, kept.Provenance.DocumentID))
		return
	}
	r := rec
	*slot = &r
}

// Len is the number of distinct keys merged so far.
func (c *Consolidator) Len() int { return len(c.entries) }

// Finalize builds the canonical dataset sorted by company, fiscal year and quarter, and
// the full audit trail. It does not modify the merged records, so it may be called again.
func (c *Consolidator) Finalize() ([]models.CanonicalMetricRecord, []models.AuditEntry) {
	audit := append([]models.AuditEntry(nil), c.audit...)

	keys := make([]models.CanonicalKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	records := make([]models.CanonicalMetricRecord, 0, len(keys))
	for _, k := range keys {
		rec, entries := c.resolve(k, c.entries[k])
		records = append(records, rec)
		audit = append(audit, entries...)
	}

	records, stitched := c.stitch(records)
	audit = append(audit, stitched...)
	return records, audit
}

// resolve applies Group precedence and field-level fallback for one key.
func (c *Consolidator) resolve(k models.CanonicalKey, e *entry) (models.CanonicalMetricRecord, []models.AuditEntry) {
	primary, secondary := e.group, e.company
	if primary == nil {
		primary, secondary = e.company, nil
	}

	rec := c.canonical(*primary)
	if secondary == nil || !period.Outranks(primary.Variant, secondary.Variant) {
		return rec, nil
	}

	audit := []models.AuditEntry{c.entryFor(*secondary, models.AuditDiscardedCompany, models.SeverityInfo, "",
		fmt.Sprintf("superseded by GROUP record %s from document %s",
			primary.Provenance.SourceID, primary.Provenance.DocumentID))}

	if primary.Currency != secondary.Currency {
		audit = append(audit, c.entryFor(*secondary, models.AuditCurrencyMismatch, models.SeverityWarning, "",
			fmt.Sprintf("GROUP record reports %s but COMPANY record reports %s; no fields taken",
				primary.Currency, secondary.Currency)))
		return rec, audit
	}

	fallback := func(prefix string, dst, src models.MetricValues) {
		for _, id := range c.cfg.Metrics {
			if dst.Get(id) != nil || src.Get(id) == nil {
				continue
			}
			v := *src[id]
			dst[id] = &v
			rec.Provenance.Filled = append(rec.Provenance.Filled, prefix+id)
			audit = append(audit, c.entryFor(*secondary, models.AuditVariantFallback, models.SeverityInfo, id,
				fmt.Sprintf("%s%s missing from GROUP record; COMPANY value used", prefix, id)))
		}
	}
	fallback("current_", rec.Current, secondary.Current)
	fallback("comparative_", rec.Comparative, secondary.Comparative)

	c.log.Debug().
		Str("key", k.String()).
		Str("discarded", secondary.Provenance.DocumentID).
		Msg("group variant supersedes company variant")
	return rec, audit
}

func (c *Consolidator) canonical(r models.ResolvedRecord) models.CanonicalMetricRecord {
	profile := c.cfg.Profiles[r.Key.CompanySymbol]
	name := r.CompanyName
	if profile.Name != "" {
		name = profile.Name
	}
	prov := r.Provenance
	prov.BatchID = c.cfg.BatchID
	prov.Filled = append([]string(nil), r.Provenance.Filled...)
	prov.PageNumbers = append([]int(nil), r.Provenance.PageNumbers...)

	return models.CanonicalMetricRecord{
		Key:                  r.Key,
		CompanyName:          name,
		Sector:               profile.Sector,
		Variant:              r.Variant,
		PeriodEnd:            r.PeriodEnd,
		ComparativePeriodEnd: r.ComparativePeriodEnd,
		Duration:             r.Duration,
		AuditStatus:          r.AuditStatus,
		Currency:             r.Currency,
		UnitConfirmed:        r.UnitConfirmed,
		Current:              r.Current.Clone(),
		Comparative:          r.Comparative.Clone(),
		Provenance:           prov,
	}
}

func (c *Consolidator) report(r models.ResolvedRecord, kind models.AuditKind, sev models.Severity, metric, detail string) {
	e := c.entryFor(r, kind, sev, metric, detail)
	c.audit = append(c.audit, e)
	ev := c.log.Warn()
	if sev == models.SeverityError {
		ev = c.log.Error()
	}
	ev.Str("kind", string(kind)).Str("document_id", e.DocumentID).Str("key", r.Key.String()).Msg(detail)
}

func (c *Consolidator) entryFor(r models.ResolvedRecord, kind models.AuditKind, sev models.Severity, metric, detail string) models.AuditEntry {
	return models.AuditEntry{
		BatchID:    c.cfg.BatchID,
		Kind:       kind,
		Severity:   sev,
		DocumentID: r.Provenance.DocumentID,
		SourceID:   r.Provenance.SourceID,
		Metric:     metric,
		Detail:     detail,
	}.ForKey(r.Key)
}
