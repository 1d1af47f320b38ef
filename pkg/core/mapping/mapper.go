// Package mapping turns raw oracle line items into canonical-metric keyed values.
// Unmapped labels are a data-quality signal, not an error.
package mapping

import (
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/models"
	"strings"

	"github.com/rs/zerolog"
)

// Period identifies which column of the statement a line item came from.
type Period string

const (
	PeriodCurrent     Period = "current"
	PeriodComparative Period = "comparative"
)

// Value is a raw value that has been assigned to a canonical metric.
type Value struct {
	Label    string
	Raw      string
	UnitHint string
}

// Unmapped is a label the dictionary could not resolve.
type Unmapped struct {
	Label  string
	Period Period
}

// Duplicate records a second label resolving to a metric that already had a value.
type Duplicate struct {
	Label  string
	Kept   string
	Metric string
	Period Period
}

// MappedRecord is the partially populated intermediate produced for one raw record.
type MappedRecord struct {
	Source      models.RawExtractionRecord
	Current     map[string]Value
	Comparative map[string]Value
	Unmapped    []Unmapped
	Duplicates  []Duplicate
}

// Mapper resolves labels through a dictionary.Resolver.
type Mapper struct {
	resolver dictionary.Resolver
	log      zerolog.Logger
}

// NewMapper creates a Mapper. Pass zerolog.Nop() to silence it.
func NewMapper(resolver dictionary.Resolver, log zerolog.Logger) *Mapper {
	return &Mapper{resolver: resolver, log: log}
}

// Map never fails. Every label ends up either mapped, unmapped or reported as a duplicate.
func (m *Mapper) Map(rec models.RawExtractionRecord) MappedRecord {
	out := MappedRecord{
		Source:      rec,
		Current:     make(map[string]Value),
		Comparative: make(map[string]Value),
	}
	m.mapItems(&out, rec.Current, PeriodCurrent, out.Current)
	m.mapItems(&out, rec.Comparative, PeriodComparative, out.Comparative)

	if len(out.Unmapped) > 0 {
		labels := make([]string, len(out.Unmapped))
		for i, u := range out.Unmapped {
			labels[i] = u.Label
		}
		m.log.Debug().
			Str("source_id", rec.SourceID).
			Strs("labels", labels).
			Msg("unmapped line items")
	}
	return out
}

func (m *Mapper) mapItems(out *MappedRecord, items []models.LineItem, period Period, dst map[string]Value) {
	for _, item := range items {
		label := strings.TrimSpace(item.Label)
		if label == "" {
			continue
		}
		id, ok := m.resolver.Resolve(label)
		if !ok {
			out.Unmapped = append(out.Unmapped, Unmapped{Label: label, Period: period})
			continue
		}

		v := Value{Label: label, Raw: strings.TrimSpace(item.Value), UnitHint: item.UnitHint}
		existing, seen := dst[id]
		switch {
		case !seen:
			dst[id] = v
		case existing.Raw == "" && v.Raw != "":
			// An earlier label carried no value; the later one is the real figure.
			dst[id] = v
		default:
			out.Duplicates = append(out.Duplicates, Duplicate{
				Label: label, Kept: existing.Label, Metric: id, Period: period,
			})
		}
	}
}
