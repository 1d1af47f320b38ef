// Package calc computes derived metrics from canonical records. Every function is pure:
// missing inputs and zero denominators yield nil, never zero or infinity.
package calc

import (
	"math"
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/models"
)

// =============================================================================
// PRIMITIVES
// =============================================================================

// safeDiv returns nil when either side is missing, the denominator is zero, or the
// result is not finite.
func safeDiv(numerator, denominator *float64) *float64 {
	if numerator == nil || denominator == nil || *denominator == 0 {
		return nil
	}
	r := *numerator / *denominator
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}

// Margin is numerator as a percentage of revenue.
func Margin(numerator, revenue *float64) *float64 {
	r := safeDiv(numerator, revenue)
	if r == nil {
		return nil
	}
	pct := *r * 100
	return &pct
}

// YoY is the percentage change (current - comparative) / |comparative|.
func YoY(current, comparative *float64) *float64 {
	if current == nil || comparative == nil {
		return nil
	}
	delta := *current - *comparative
	return Margin(&delta, models.Float(math.Abs(*comparative)))
}

// =============================================================================
// RECORD LEVEL
// =============================================================================

// Margins computes gross, operating and net margins for one period's values.
func Margins(values models.MetricValues) models.Margins {
	revenue := values.Get(dictionary.MetricRevenue)
	return models.Margins{
		Gross:     Margin(values.Get(dictionary.MetricGrossProfit), revenue),
		Operating: Margin(values.Get(dictionary.MetricOperatingProfit), revenue),
		Net:       Margin(values.Get(dictionary.MetricNetProfit), revenue),
	}
}

// Derive computes margins for both periods and a YoY change for every metric in ids.
// It reads the record only, so repeated calls return the same values.
func Derive(rec models.CanonicalMetricRecord, ids []string) models.DerivedMetrics {
	yoy := make(models.MetricValues, len(ids))
	for _, id := range ids {
		yoy[id] = YoY(rec.Current.Get(id), rec.Comparative.Get(id))
	}
	return models.DerivedMetrics{
		CurrentMargins:     Margins(rec.Current),
		ComparativeMargins: Margins(rec.Comparative),
		YoY:                yoy,
	}
}

// FillGrossProfit sets gross_profit = revenue - cost_of_sales when gross profit is missing
// and both inputs are present. Cost of sales is held as a positive magnitude.
// It reports whether a value was filled.
func FillGrossProfit(values models.MetricValues) bool {
	if values == nil || values.Get(dictionary.MetricGrossProfit) != nil {
		return false
	}
	revenue := values.Get(dictionary.MetricRevenue)
	cost := values.Get(dictionary.MetricCostOfSales)
	if revenue == nil || cost == nil {
		return false
	}
	values[dictionary.MetricGrossProfit] = models.Float(*revenue - *cost)
	return true
}
