package synthesis

import (
	"fmt"
	"math"
	"quarterly_metrics/pkg/core/calc"
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/core/validate"
	"quarterly_metrics/pkg/models"
	"strings"
)

// =============================================================================
// TIMELINE STITCHING
// =============================================================================
//
// Once every key is resolved, each company's quarters are zipped together:
//  1. Gross profit fill: gross_profit = revenue - cost_of_sales where it was not reported.
//  2. Comparative back-fill: a missing comparative value is taken from the current value
//     of the same quarter one fiscal year earlier, when both cover the same duration.
//  3. Restatement detection: where both exist and drift apart beyond tolerance, the
//     difference is audited.
//  4. Derived metrics and period gap checks.

// stitch expects records sorted by key.
func (c *Consolidator) stitch(records []models.CanonicalMetricRecord) ([]models.CanonicalMetricRecord, []models.AuditEntry) {
	var audit []models.AuditEntry

	index := make(map[models.CanonicalKey]int, len(records))
	for i := range records {
		index[records[i].Key] = i
		if calc.FillGrossProfit(records[i].Current) {
			records[i].Provenance.Filled = append(records[i].Provenance.Filled, "current_"+dictionary.MetricGrossProfit)
		}
	}

	for i := range records {
		rec := &records[i]
		if j, ok := index[rec.Key.PriorYear()]; ok {
			audit = append(audit, c.zipPriorYear(rec, &records[j])...)
		}
		if calc.FillGrossProfit(rec.Comparative) {
			rec.Provenance.Filled = append(rec.Provenance.Filled, "comparative_"+dictionary.MetricGrossProfit)
		}
		rec.Derived = calc.Derive(*rec, c.cfg.Metrics)
	}

	audit = append(audit, c.checkGaps(records)...)
	return records, audit
}

// zipPriorYear compares rec's comparative column with the prior-year record's current column.
// Records covering different lengths of time are never paired.
func (c *Consolidator) zipPriorYear(rec, prior *models.CanonicalMetricRecord) []models.AuditEntry {
	if !sameDuration(rec.Duration, prior.Duration) {
		return []models.AuditEntry{c.stitchEntry(rec, models.AuditDurationMismatch, models.SeverityWarning, "",
			fmt.Sprintf("%s covers %s but %s (%s) covers %s; comparative not paired",
				rec.Key, rec.Duration, prior.Key, prior.Provenance.DocumentID, prior.Duration))}
	}

	var audit []models.AuditEntry
	if rec.ComparativePeriodEnd.IsZero() {
		rec.ComparativePeriodEnd = prior.PeriodEnd
	}

	for _, id := range c.cfg.Metrics {
		reported := prior.Current.Get(id)
		if reported == nil {
			continue
		}
		comparative := rec.Comparative.Get(id)
		if comparative == nil {
			v := *reported
			rec.Comparative[id] = &v
			rec.Provenance.Filled = append(rec.Provenance.Filled, "comparative_"+id)
			audit = append(audit, c.stitchEntry(rec, models.AuditComparativeBackfill, models.SeverityInfo, id,
				fmt.Sprintf("comparative %s taken from %s (%s)", id, prior.Key, prior.Provenance.DocumentID)))
			continue
		}
		if delta, restated := drift(*comparative, *reported, c.cfg.RestatementTolerancePct); restated {
			audit = append(audit, c.stitchEntry(rec, models.AuditRestatement, models.SeverityWarning, id,
				fmt.Sprintf("comparative %s %.2f differs from %s reported %.2f (%.2f%%)",
					id, *comparative, prior.Key, *reported, delta)))
		}
	}
	return audit
}

// sameDuration treats an unknown duration as matching anything.
func sameDuration(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	return a == "" || b == "" || a == b
}

// drift returns the percentage difference of restated from original and whether it
// exceeds tolerancePct.
func drift(restated, original, tolerancePct float64) (float64, bool) {
	if restated == original {
		return 0, false
	}
	if original == 0 {
		return math.Inf(1), true
	}
	delta := (restated - original) / math.Abs(original) * 100
	return delta, math.Abs(delta) > tolerancePct
}

func (c *Consolidator) checkGaps(records []models.CanonicalMetricRecord) []models.AuditEntry {
	var audit []models.AuditEntry
	for start := 0; start < len(records); {
		end := start
		for end < len(records) && records[end].Key.CompanySymbol == records[start].Key.CompanySymbol {
			end++
		}
		keys := make([]models.CanonicalKey, 0, end-start)
		for _, r := range records[start:end] {
			keys = append(keys, r.Key)
		}
		for _, g := range validate.Gaps(keys, c.cfg.GapTolerance) {
			audit = append(audit, c.stitchEntry(&records[start+indexOf(keys, g.Before)], models.AuditPeriodGap,
				models.SeverityWarning, "", g.String()))
		}
		start = end
	}
	return audit
}

func indexOf(keys []models.CanonicalKey, k models.CanonicalKey) int {
	for i := range keys {
		if keys[i] == k {
			return i
		}
	}
	return 0
}

func (c *Consolidator) stitchEntry(rec *models.CanonicalMetricRecord, kind models.AuditKind, sev models.Severity, metric, detail string) models.AuditEntry {
	return models.AuditEntry{
		BatchID:    c.cfg.BatchID,
		Kind:       kind,
		Severity:   sev,
		DocumentID: rec.Provenance.DocumentID,
		SourceID:   rec.Provenance.SourceID,
		Metric:     metric,
		Detail:     detail,
	}.ForKey(rec.Key)
}
