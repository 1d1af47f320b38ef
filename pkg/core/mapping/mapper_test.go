package mapping

import (
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/models"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMapper() *Mapper {
	return NewMapper(dictionary.Default(dictionary.DefaultThreshold), zerolog.Nop())
}

func TestMap_ResolvesBothPeriods(t *testing.T) {
	rec := models.RawExtractionRecord{
		SourceID: "DIPD-2023-Q2",
		Current: []models.LineItem{
			{Label: "Turnover", Value: "10,500"},
			{Label: "Cost of sales", Value: "(7,200)"},
			{Label: "Distribution costs", Value: "(300)"},
		},
		Comparative: []models.LineItem{
			{Label: "Revenue", Value: "9,800"},
			{Label: "Basic earnings per share", Value: "1.25", UnitHint: "Rs."},
		},
	}

	mapped := newMapper().Map(rec)

	require.Contains(t, mapped.Current, "revenue")
	assert.Equal(t, "10,500", mapped.Current["revenue"].Raw)
	assert.Equal(t, "Turnover", mapped.Current["revenue"].Label)
	assert.Equal(t, "(7,200)", mapped.Current["cost_of_sales"].Raw)

	assert.Equal(t, "9,800", mapped.Comparative["revenue"].Raw)
	assert.Equal(t, "Rs.", mapped.Comparative["eps"].UnitHint)

	assert.Equal(t, []Unmapped{{Label: "Distribution costs", Period: PeriodCurrent}}, mapped.Unmapped)
	assert.Empty(t, mapped.Duplicates)
	assert.Equal(t, rec.SourceID, mapped.Source.SourceID)
}

func TestMap_DuplicateLabelsKeepFirst(t *testing.T) {
	rec := models.RawExtractionRecord{
		Current: []models.LineItem{
			{Label: "Revenue", Value: "100"},
			{Label: "Turnover", Value: "120"},
		},
	}

	mapped := newMapper().Map(rec)

	assert.Equal(t, "100", mapped.Current["revenue"].Raw)
	require.Len(t, mapped.Duplicates, 1)
	assert.Equal(t, Duplicate{Label: "Turnover", Kept: "Revenue", Metric: "revenue", Period: PeriodCurrent}, mapped.Duplicates[0])
}

func TestMap_BlankValueIsSupersededByLaterLabel(t *testing.T) {
	rec := models.RawExtractionRecord{
		Current: []models.LineItem{
			{Label: "Revenue", Value: ""},
			{Label: "Turnover", Value: "120"},
		},
	}

	mapped := newMapper().Map(rec)

	assert.Equal(t, "120", mapped.Current["revenue"].Raw)
	assert.Empty(t, mapped.Duplicates)
}

func TestMap_EmptyRecordNeverFails(t *testing.T) {
	mapped := newMapper().Map(models.RawExtractionRecord{
		Current: []models.LineItem{{Label: "   ", Value: "1"}},
	})
	assert.Empty(t, mapped.Current)
	assert.Empty(t, mapped.Comparative)
	assert.Empty(t, mapped.Unmapped)
}
