package models

import (
	"fmt"
	"time"
)

// Quarter is a fiscal quarter label.
type Quarter string

const (
	Q1 Quarter = "Q1"
	Q2 Quarter = "Q2"
	Q3 Quarter = "Q3"
	Q4 Quarter = "Q4"
)

// QuarterFromIndex returns Q1..Q4 for 1..4 and "" otherwise.
func QuarterFromIndex(i int) Quarter {
	if i < 1 || i > 4 {
		return ""
	}
	return Quarter(fmt.Sprintf("Q%d", i))
}

// Index returns 1..4, or 0 for a malformed quarter.
func (q Quarter) Index() int {
	switch q {
	case Q1:
		return 1
	case Q2:
		return 2
	case Q3:
		return 3
	case Q4:
		return 4
	}
	return 0
}

// CanonicalKey identifies one row of the canonical dataset.
type CanonicalKey struct {
	CompanySymbol string  `json:"company_symbol" validate:"required"`
	FiscalYear    int     `json:"fiscal_year" validate:"min=1000,max=9999"`
	Quarter       Quarter `json:"quarter" validate:"oneof=Q1 Q2 Q3 Q4"`
}

func (k CanonicalKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.CompanySymbol, k.FiscalYear, k.Quarter)
}

// Ordinal is a monotonically increasing quarter counter used for ordering and gap checks.
func (k CanonicalKey) Ordinal() int {
	return k.FiscalYear*4 + k.Quarter.Index() - 1
}

// PriorYear returns the same quarter one fiscal year earlier.
func (k CanonicalKey) PriorYear() CanonicalKey {
	k.FiscalYear--
	return k
}

// Less orders keys by company, fiscal year and quarter.
func (k CanonicalKey) Less(o CanonicalKey) bool {
	if k.CompanySymbol != o.CompanySymbol {
		return k.CompanySymbol < o.CompanySymbol
	}
	return k.Ordinal() < o.Ordinal()
}

// MetricValues maps canonical metric IDs to values in the dataset base unit.
// A missing key and a nil value both mean "not reported"; zero is never used as a stand-in.
type MetricValues map[string]*float64

// Get returns the value for id, or nil.
func (m MetricValues) Get(id string) *float64 {
	if m == nil {
		return nil
	}
	return m[id]
}

// Clone returns a deep copy so callers can fill fields without aliasing the source.
func (m MetricValues) Clone() MetricValues {
	out := make(MetricValues, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = nil
			continue
		}
		val := *v
		out[k] = &val
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// DerivedMetrics are computed from a canonical record and never stored independently.
type DerivedMetrics struct {
	CurrentMargins     Margins      `json:"current_margins"`
	ComparativeMargins Margins      `json:"comparative_margins"`
	YoY                MetricValues `json:"yoy_pct"` // Percentage change per base metric
}

// Margins are percentages of revenue.
type Margins struct {
	Gross     *float64 `json:"gross_margin_pct"`
	Operating *float64 `json:"operating_margin_pct"`
	Net       *float64 `json:"net_margin_pct"`
}

// CanonicalMetricRecord is one row of the final dataset. The set is read-only once returned.
type CanonicalMetricRecord struct {
	Key                  CanonicalKey   `json:"key"`
	CompanyName          string         `json:"company_name,omitempty"`
	Sector               string         `json:"sector,omitempty"`
	Variant              Variant        `json:"variant"`
	PeriodEnd            time.Time      `json:"period_end"`
	ComparativePeriodEnd time.Time      `json:"comparative_period_end"`
	Duration             string         `json:"duration,omitempty"`
	AuditStatus          string         `json:"audit_status,omitempty"`
	Currency             string         `json:"currency"`
	UnitConfirmed        bool           `json:"unit_confirmed"`
	Current              MetricValues   `json:"current"`
	Comparative          MetricValues   `json:"comparative"`
	Derived              DerivedMetrics `json:"derived"`
	Provenance           Provenance     `json:"provenance"`
}
