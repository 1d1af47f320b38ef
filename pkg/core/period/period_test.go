package period

import (
	"quarterly_metrics/pkg/models"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_Formats(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		year    int
		quarter models.Quarter
		end     time.Time
		rule    string
	}{
		{"ordinal day", "31st March 2023", 2023, models.Q1, date(2023, 3, 31), "day_month_year"},
		{"iso", "2023-03-31", 2023, models.Q1, date(2023, 3, 31), "iso"},
		{"quarter label", "Q1 FY23", 2023, models.Q1, date(2023, 3, 31), "quarter_label"},
		{"sentence", "Interim Financial Statements for the period ended 30th June 2023", 2023, models.Q2, date(2023, 6, 30), "day_month_year"},
		{"abbreviated month", "30 Sept. 2022", 2022, models.Q3, date(2022, 9, 30), "day_month_year"},
		{"month first", "December 31, 2022", 2022, models.Q4, date(2022, 12, 31), "month_day_year"},
		{"numeric", "30/06/2023", 2023, models.Q2, date(2023, 6, 30), "numeric_dmy"},
		{"dotted", "30.09.2023", 2023, models.Q3, date(2023, 9, 30), "numeric_dmy"},
		{"month year", "June 2023", 2023, models.Q2, date(2023, 6, 30), "month_year"},
		{"fiscal first", "FY2023 Q3", 2023, models.Q3, date(2023, 9, 30), "quarter_label"},
		{"spelled quarter", "Second quarter 2024", 2024, models.Q2, date(2024, 6, 30), "quarter_label"},
		{"range in words", "For the period from 1st April 2023 to 31st December 2023", 2023, models.Q4, date(2023, 12, 31), "day_month_year"},
		{"numeric range", "01.04.2023 - 31.12.2023", 2023, models.Q4, date(2023, 12, 31), "numeric_dmy"},
		{"iso range", "2023-04-01 to 2023-09-30", 2023, models.Q3, date(2023, 9, 30), "iso"},
		{"month first range", "April 1, 2023 through June 30, 2023", 2023, models.Q2, date(2023, 6, 30), "month_day_year"},
		{"current and comparative", "Quarter ended 30 June 2023 and 30 June 2022", 2023, models.Q2, date(2023, 6, 30), "day_month_year"},
		{"hyphenated", "31-Mar-2023", 2023, models.Q1, date(2023, 3, 31), "day_month_year"},
		{"slashed", "30/Sep/2023", 2023, models.Q3, date(2023, 9, 30), "day_month_year"},
		{"hyphenated month year", "Mar-2023", 2023, models.Q1, date(2023, 3, 31), "month_year"},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.text, Meta{})
			require.NoError(t, err)
			assert.Equal(t, tt.year, res.FiscalYear)
			assert.Equal(t, tt.quarter, res.Quarter)
			assert.Equal(t, tt.end, res.PeriodEnd)
			assert.Equal(t, tt.rule, res.Rule)
			assert.False(t, res.FromHint)
		})
	}
}

func TestResolve_InvalidDateFallsThrough(t *testing.T) {
	// 31/02 is not a date; the month-year rule still reads "March 2023".
	res, err := NewResolver().Resolve("31/02/2023 restated as March 2023", Meta{})
	require.NoError(t, err)
	assert.Equal(t, "month_year", res.Rule)
	assert.Equal(t, date(2023, 3, 31), res.PeriodEnd)
}

func TestResolve_FallsBackToHint(t *testing.T) {
	res, err := NewResolver().Resolve("for the period ended", Meta{PeriodHint: "Interim Report - 30th September 2023"})
	require.NoError(t, err)
	assert.True(t, res.FromHint)
	assert.Equal(t, 2023, res.FiscalYear)
	assert.Equal(t, models.Q3, res.Quarter)
}

func TestResolve_NoRuleMatched(t *testing.T) {
	_, err := NewResolver().Resolve("unaudited", Meta{PeriodHint: "Quarterly report"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoRuleMatched))
}

func TestResolve_CustomRules(t *testing.T) {
	r := NewResolver(Rule{Name: "fixed", Parse: func(string) (Match, bool) {
		return Match{FiscalYear: 2020, Quarter: models.Q4}, true
	}})
	res, err := r.Resolve("anything", Meta{})
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.Rule)
	assert.Equal(t, date(2020, 12, 31), res.PeriodEnd)
}

func TestFiscalQuarter(t *testing.T) {
	tests := []struct {
		date    time.Time
		start   int
		year    int
		quarter models.Quarter
	}{
		{date(2023, 3, 31), 1, 2023, models.Q1},
		{date(2023, 12, 31), 1, 2023, models.Q4},
		{date(2023, 3, 31), 0, 2023, models.Q1},
		// April-March fiscal year, named by the year it ends in.
		{date(2023, 6, 30), 4, 2024, models.Q1},
		{date(2023, 9, 30), 4, 2024, models.Q2},
		{date(2023, 12, 31), 4, 2024, models.Q3},
		{date(2024, 3, 31), 4, 2024, models.Q4},
		{date(2023, 9, 30), 7, 2024, models.Q1},
	}
	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			year, q := FiscalQuarter(tt.date, tt.start)
			assert.Equal(t, tt.year, year)
			assert.Equal(t, tt.quarter, q)
		})
	}
}

func TestQuarterLabel_NonCalendarFiscalYear(t *testing.T) {
	r := NewResolver()

	res, err := r.Resolve("Q1 2023/24", Meta{FiscalYearStartMonth: 4})
	require.NoError(t, err)
	assert.Equal(t, 2024, res.FiscalYear)
	assert.Equal(t, models.Q1, res.Quarter)
	assert.Equal(t, date(2023, 6, 30), res.PeriodEnd)

	res, err = r.Resolve("31st March 2024", Meta{FiscalYearStartMonth: 4})
	require.NoError(t, err)
	assert.Equal(t, 2024, res.FiscalYear)
	assert.Equal(t, models.Q4, res.Quarter)
}

func TestDate(t *testing.T) {
	r := NewResolver()

	d, ok := r.Date("31st March 2022", 1)
	require.True(t, ok)
	assert.Equal(t, date(2022, 3, 31), d)

	d, ok = r.Date("Q2 FY22", 1)
	require.True(t, ok)
	assert.Equal(t, date(2022, 6, 30), d)

	_, ok = r.Date("", 1)
	assert.False(t, ok)
}

func TestDetectVariant(t *testing.T) {
	tests := []struct {
		name string
		rec  models.RawExtractionRecord
		want models.Variant
	}{
		{"oracle tag wins", models.RawExtractionRecord{Variant: "Company", StatementUsed: "Consolidated Income Statement"}, models.VariantCompany},
		{"consolidated title", models.RawExtractionRecord{StatementUsed: "Consolidated Statement of Profit or Loss"}, models.VariantGroup},
		{"group title", models.RawExtractionRecord{StatementUsed: "Group Income Statement"}, models.VariantGroup},
		{"company title", models.RawExtractionRecord{StatementUsed: "Company Income Statement"}, models.VariantCompany},
		{"no title", models.RawExtractionRecord{}, models.VariantGroup},
		{"unknown tag", models.RawExtractionRecord{Variant: "both", StatementUsed: "Standalone statement"}, models.VariantCompany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectVariant(tt.rec))
		})
	}
}

func TestOutranks(t *testing.T) {
	assert.True(t, Outranks(models.VariantGroup, models.VariantCompany))
	assert.False(t, Outranks(models.VariantCompany, models.VariantGroup))
	assert.False(t, Outranks(models.VariantGroup, models.VariantGroup))
	assert.False(t, Outranks(models.VariantCompany, models.VariantCompany))
}
