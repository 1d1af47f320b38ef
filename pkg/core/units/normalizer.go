package units

import (
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/core/mapping"
	"quarterly_metrics/pkg/models"
	"sort"

	"github.com/shopspring/decimal"
)

// Issue is a value that was present in the source but could not be read.
type Issue struct {
	Metric string
	Period mapping.Period
	Label  string
	Raw    string
	Err    error
}

// Normalized is a mapped record with every value expressed in the base unit.
type Normalized struct {
	Current     models.MetricValues
	Comparative models.MetricValues
	Unit        Unit    // Always the base unit of the resolved currency
	SourceScale float64 // Scale the record was quoted in
	Confirmed   bool    // False when the dataset default had to be assumed
	Issues      []Issue
}

// Normalizer applies scale factors to flow metrics only.
type Normalizer struct {
	defs        map[string]dictionary.MetricDefinition
	defaultUnit Unit
}

// NewNormalizer builds a normalizer for the given metric definitions.
// defaultUnit is assumed for records that carry no usable hint.
func NewNormalizer(defs []dictionary.MetricDefinition, defaultUnit Unit) *Normalizer {
	n := &Normalizer{
		defs:        make(map[string]dictionary.MetricDefinition, len(defs)),
		defaultUnit: defaultUnit,
	}
	for _, d := range defs {
		n.defs[d.ID] = d
	}
	if n.defaultUnit.Scale == 0 {
		n.defaultUnit.Scale = ScaleUnits
	}
	return n
}

// Resolve picks the record-level unit. The statement-level hint wins; otherwise the first
// item hint that names a magnitude; otherwise the default, unconfirmed. A currency-only
// hint sets the currency but keeps the default scale unconfirmed.
func (n *Normalizer) Resolve(m mapping.MappedRecord) (Unit, bool) {
	unit := n.defaultUnit
	h := ParseHint(m.Source.UnitHint)
	if !h.HasScale {
		if item := n.firstItemHint(m); item.HasScale {
			if !item.HasCurrency && h.HasCurrency {
				item.Currency, item.HasCurrency = h.Currency, true
			}
			h = item
		}
	}
	if !h.Found() {
		return unit, false
	}
	if h.HasCurrency {
		unit.Currency = h.Currency
	}
	if h.HasScale {
		unit.Scale = h.Scale
	}
	return unit, h.HasScale
}

func (n *Normalizer) firstItemHint(m mapping.MappedRecord) Hint {
	for _, values := range []map[string]mapping.Value{m.Current, m.Comparative} {
		ids := make([]string, 0, len(values))
		for id := range values {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if !n.isFlow(id) {
				continue
			}
			if h := ParseHint(values[id].UnitHint); h.HasScale && h.Scale != ScaleUnits {
				return h
			}
		}
	}
	return Hint{}
}

// Normalize parses and rescales every mapped value.
func (n *Normalizer) Normalize(m mapping.MappedRecord) Normalized {
	unit, confirmed := n.Resolve(m)
	out := Normalized{
		Unit:        unit.Base(),
		SourceScale: unit.Scale,
		Confirmed:   confirmed,
	}
	out.Current = n.convert(m.Current, mapping.PeriodCurrent, unit, &out.Issues)
	out.Comparative = n.convert(m.Comparative, mapping.PeriodComparative, unit, &out.Issues)
	return out
}

func (n *Normalizer) convert(values map[string]mapping.Value, period mapping.Period, unit Unit, issues *[]Issue) models.MetricValues {
	out := make(models.MetricValues, len(values))
	for id, v := range values {
		amount, ok, err := ParseAmount(v.Raw)
		if err != nil {
			*issues = append(*issues, Issue{Metric: id, Period: period, Label: v.Label, Raw: v.Raw, Err: err})
			out[id] = nil
			continue
		}
		if !ok {
			out[id] = nil
			continue
		}

		scale := unit.Scale
		if h := ParseHint(v.UnitHint); h.HasScale {
			scale = h.Scale
		}
		out[id] = n.apply(id, amount, scale)
	}
	return out
}

func (n *Normalizer) apply(id string, amount decimal.Decimal, scale float64) *float64 {
	def := n.defs[id]
	if def.Expense {
		amount = amount.Abs()
	}
	if def.Kind == dictionary.KindFlow {
		amount = amount.Mul(decimal.NewFromFloat(scale))
	}
	f := amount.InexactFloat64()
	return &f
}

// Rescale converts already-parsed values from one unit into the base unit. Ratio metrics
// pass through; applying it to base-unit values is a no-op.
func (n *Normalizer) Rescale(values models.MetricValues, from Unit) models.MetricValues {
	out := make(models.MetricValues, len(values))
	for id, v := range values {
		if v == nil {
			out[id] = nil
			continue
		}
		scale := from.Scale
		if scale == 0 {
			scale = ScaleUnits
		}
		out[id] = n.apply(id, decimal.NewFromFloat(*v), scale)
	}
	return out
}

func (n *Normalizer) isFlow(id string) bool {
	return n.defs[id].Kind == dictionary.KindFlow
}
