package pipeline

import (
	"context"
	"quarterly_metrics/pkg/core/config"
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/models"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	cfg.OracleTimeout = config.Duration(2 * time.Second)
	cfg.Companies = []config.Company{
		{Symbol: "DIPD", Name: "Dipped Products PLC", Sector: "Manufacturing"},
		{Symbol: "REXP", Name: "Richard Pieris Exports PLC"},
	}
	return cfg
}

func newEngine(t *testing.T, cfg config.Config, oracle Oracle) (*Engine, *Metrics) {
	t.Helper()
	m := NewMetrics(nil)
	e, err := New(cfg, dictionary.Default(dictionary.DefaultThreshold), oracle,
		WithMetrics(m), WithBatchID("batch-test"))
	require.NoError(t, err)
	return e, m
}

func statement(variant models.Variant, revenue, cost, net string) models.RawExtractionRecord {
	return models.RawExtractionRecord{
		CompanyName:       "Dipped Products PLC",
		PeriodDescription: "30th June 2023",
		UnitHint:          "Rs. '000",
		Variant:           variant,
		Current: []models.LineItem{
			{Label: "Revenue", Value: revenue},
			{Label: "Cost of Sales", Value: cost},
			{Label: "Profit for the period", Value: net},
		},
	}
}

// fixedOracle returns canned records per document ID.
func fixedOracle(byDoc map[string][]models.RawExtractionRecord) OracleFunc {
	return func(_ context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error) {
		recs, ok := byDoc[doc.DocumentID]
		if !ok {
			return nil, eris.Errorf("no fixture for %s", doc.DocumentID)
		}
		return recs, nil
	}
}

func countKind(audit []models.AuditEntry, kind models.AuditKind) int {
	n := 0
	for _, a := range audit {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// =============================================================================
// TEST CASE 1: GROUP WINS OVER COMPANY FOR THE SAME QUARTER
// =============================================================================
// Input:  one DIPD report with Company and Group statements for June 2023
// Expect: a single 2023/Q2 row with the Group figures rescaled from thousands

func TestRun_GroupStatementWins(t *testing.T) {
	oracle := fixedOracle(map[string][]models.RawExtractionRecord{
		"DIPD_2023_06": {
			statement(models.VariantCompany, "8,000", "(6,000)", "500"),
			statement(models.VariantGroup, "10,500", "(7,200)", "620"),
		},
	})
	e, m := newEngine(t, testConfig(), oracle)

	res, err := e.Run(context.Background(), []models.SourceDocument{
		{DocumentID: "DIPD_2023_06", CompanySymbol: "DIPD.N0000", Handle: "dipd.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "batch-test", res.BatchID)
	assert.Equal(t, models.CanonicalKey{CompanySymbol: "DIPD", FiscalYear: 2023, Quarter: models.Q2}, rec.Key)
	assert.Equal(t, models.VariantGroup, rec.Variant)
	assert.Equal(t, "Manufacturing", rec.Sector)
	assert.Equal(t, "LKR", rec.Currency)
	assert.True(t, rec.UnitConfirmed)
	assert.InDelta(t, 10_500_000, *rec.Current.Get(dictionary.MetricRevenue), 1e-6)
	assert.InDelta(t, 7_200_000, *rec.Current.Get(dictionary.MetricCostOfSales), 1e-6)
	assert.InDelta(t, 620_000, *rec.Current.Get(dictionary.MetricNetProfit), 1e-6)
	assert.InDelta(t, 3_300_000, *rec.Current.Get(dictionary.MetricGrossProfit), 1e-6)
	assert.Equal(t, "DIPD_2023_06#2", rec.Provenance.SourceID)

	assert.Equal(t, 1, countKind(res.Audit, models.AuditDiscardedCompany))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues("extracted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Canonical))
}

func TestRun_PrefersQuarterlyStatement(t *testing.T) {
	cumulative := statement(models.VariantGroup, "31,000", "(21,000)", "1,800")
	cumulative.Duration = "9 months"
	quarter := statement(models.VariantGroup, "10,500", "(7,200)", "620")
	quarter.Duration = "3 Months"
	oracle := fixedOracle(map[string][]models.RawExtractionRecord{
		"DIPD_2023_06": {cumulative, quarter},
	})
	e, _ := newEngine(t, testConfig(), oracle)

	res, err := e.Run(context.Background(), []models.SourceDocument{
		{DocumentID: "DIPD_2023_06", CompanySymbol: "DIPD"},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.InDelta(t, 10_500_000, *res.Records[0].Current.Get(dictionary.MetricRevenue), 1e-6)
	assert.Equal(t, "DIPD_2023_06#2", res.Records[0].Provenance.SourceID)

	assert.Equal(t, 0, countKind(res.Audit, models.AuditDuplicateVariant))
	require.Equal(t, 1, countKind(res.Audit, models.AuditDurationMismatch))
	for _, a := range res.Audit {
		if a.Kind == models.AuditDurationMismatch {
			assert.Equal(t, "DIPD_2023_06#1", a.SourceID)
			assert.Equal(t, models.SeverityInfo, a.Severity)
		}
	}
}

func TestPreferQuarterly(t *testing.T) {
	rec := func(v models.Variant, duration string) models.RawExtractionRecord {
		return models.RawExtractionRecord{Variant: v, Duration: duration}
	}
	tests := []struct {
		name    string
		in      []models.RawExtractionRecord
		kept    int
		skipped int
	}{
		{"single cumulative kept", []models.RawExtractionRecord{rec(models.VariantGroup, "9 months")}, 1, 0},
		{"cumulative beside quarter", []models.RawExtractionRecord{rec(models.VariantGroup, "9 months"), rec(models.VariantGroup, "3 months")}, 1, 1},
		{"other variant untouched", []models.RawExtractionRecord{rec(models.VariantCompany, "9 months"), rec(models.VariantGroup, "3 months")}, 2, 0},
		{"unknown duration kept", []models.RawExtractionRecord{rec(models.VariantGroup, ""), rec(models.VariantGroup, "three months")}, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, skipped := preferQuarterly(tt.in)
			assert.Len(t, kept, tt.kept)
			assert.Len(t, skipped, tt.skipped)
		})
	}
}

// =============================================================================
// TEST CASE 2: ORACLE FAILURES ARE AUDITED, THE BATCH CONTINUES
// =============================================================================

func TestRun_OracleFailureIsAudited(t *testing.T) {
	oracle := fixedOracle(map[string][]models.RawExtractionRecord{
		"DIPD_2023_06": {statement(models.VariantGroup, "10,500", "(7,200)", "620")},
	})
	e, m := newEngine(t, testConfig(), oracle)

	res, err := e.Run(context.Background(), []models.SourceDocument{
		{DocumentID: "DIPD_2023_06", CompanySymbol: "DIPD"},
		{DocumentID: "REXP_2023_06", CompanySymbol: "REXP"},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	require.Equal(t, 1, countKind(res.Audit, models.AuditExtractionFailure))
	for _, a := range res.Audit {
		if a.Kind == models.AuditExtractionFailure {
			assert.Equal(t, "REXP_2023_06", a.DocumentID)
			assert.Equal(t, models.SeverityError, a.Severity)
			assert.Contains(t, a.Detail, "no fixture")
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues("failed")))
}

// =============================================================================
// TEST CASE 3: A HUNG ORACLE CALL TIMES OUT
// =============================================================================
// The oracle ignores its context; the engine must still return.

func TestRun_OracleTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	hung := OracleFunc(func(context.Context, models.SourceDocument) ([]models.RawExtractionRecord, error) {
		<-release
		return nil, nil
	})

	cfg := testConfig()
	cfg.OracleTimeout = config.Duration(50 * time.Millisecond)
	e, _ := newEngine(t, cfg, hung)

	res, err := e.Run(context.Background(), []models.SourceDocument{{DocumentID: "DIPD_2023_06", CompanySymbol: "DIPD"}})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, models.AuditExtractionFailure, res.Audit[0].Kind)
	assert.Contains(t, res.Audit[0].Detail, "timed out")
}

// =============================================================================
// TEST CASE 4: WORKER POOL IS BOUNDED
// =============================================================================

func TestRun_RespectsWorkerLimit(t *testing.T) {
	var inFlight, peak int32
	oracle := OracleFunc(func(context.Context, models.SourceDocument) ([]models.RawExtractionRecord, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil, nil
	})
	e, _ := newEngine(t, testConfig(), oracle)

	docs := make([]models.SourceDocument, 6)
	for i := range docs {
		docs[i] = models.SourceDocument{DocumentID: string(rune('a' + i)), CompanySymbol: "DIPD"}
	}
	res, err := e.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 6, countKind(res.Audit, models.AuditExtractionFailure))
}

// =============================================================================
// TEST CASE 5: RECORD-LEVEL PROBLEMS
// =============================================================================

func TestProcess_RecordLevelAudit(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)

	noPeriod := statement(models.VariantGroup, "1", "1", "1")
	noPeriod.DocumentID = "DIPD_X"
	noPeriod.CompanySymbol = "DIPD"
	noPeriod.PeriodDescription = "for the period"

	messy := models.RawExtractionRecord{
		DocumentID:        "DIPD_2023_09",
		CompanySymbol:     "DIPD",
		PeriodDescription: "30.09.2023",
		Current: []models.LineItem{
			{Label: "Revenue", Value: "12,000"},
			{Label: "Turnover", Value: "12,100"},
			{Label: "Distribution costs", Value: "(300)"},
			{Label: "Profit for the period", Value: "see note 7"},
		},
	}

	res := e.Process([]models.RawExtractionRecord{noPeriod, messy})
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.Q3, res.Records[0].Key.Quarter)
	assert.False(t, res.Records[0].UnitConfirmed)
	assert.InDelta(t, 12_000_000, *res.Records[0].Current.Get(dictionary.MetricRevenue), 1e-6)
	assert.Nil(t, res.Records[0].Current.Get(dictionary.MetricNetProfit))

	assert.Equal(t, 1, countKind(res.Audit, models.AuditPeriodParseFailure))
	assert.Equal(t, 1, countKind(res.Audit, models.AuditUnmappedLabel))
	assert.Equal(t, 1, countKind(res.Audit, models.AuditDuplicateLabel))
	assert.Equal(t, 1, countKind(res.Audit, models.AuditUnparsableValue))
	assert.Equal(t, 1, countKind(res.Audit, models.AuditUnitUnconfirmed))
	for _, a := range res.Audit {
		assert.NotEmpty(t, a.DocumentID)
		assert.Equal(t, "DIPD", a.CompanySymbol)
	}
}

func TestProcess_PeriodFromCatalogHint(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	rec := statement(models.VariantGroup, "1", "1", "1")
	rec.DocumentID = "DIPD_2023_06"
	rec.CompanySymbol = "DIPD"
	rec.PeriodDescription = ""

	res := e.Process([]models.RawExtractionRecord{rec}, models.SourceDocument{
		DocumentID:    "DIPD_2023_06",
		CompanySymbol: "DIPD",
		PeriodHint:    "Interim Financial Statements - 30th June 2023",
	})
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.Q2, res.Records[0].Key.Quarter)
	assert.Contains(t, res.Records[0].Provenance.Filled, "period_from_catalog")
}

func TestProcess_FiscalYearStartMonth(t *testing.T) {
	cfg := testConfig()
	cfg.Companies[0].FiscalYearStartMonth = 4
	e, _ := newEngine(t, cfg, nil)

	rec := statement(models.VariantGroup, "1", "1", "1")
	rec.DocumentID = "DIPD_2023_06"
	rec.CompanySymbol = "DIPD"

	res := e.Process([]models.RawExtractionRecord{rec})
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.CanonicalKey{CompanySymbol: "DIPD", FiscalYear: 2024, Quarter: models.Q1}, res.Records[0].Key)
}

// =============================================================================
// TEST CASE 6: CONFIGURATION ERRORS ARE FATAL
// =============================================================================

func TestNew_Errors(t *testing.T) {
	_, err := New(testConfig(), nil, nil)
	assert.True(t, eris.Is(err, ErrNoDictionary))

	cfg := testConfig()
	cfg.Workers = 0
	_, err = New(cfg, dictionary.Default(dictionary.DefaultThreshold), nil)
	assert.Error(t, err)
}

func TestRun_Errors(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	_, err := e.Run(context.Background(), nil)
	assert.True(t, eris.Is(err, ErrNoOracle))

	e, _ = newEngine(t, testConfig(), fixedOracle(nil))
	_, err = e.Run(context.Background(), []models.SourceDocument{
		{DocumentID: "A", CompanySymbol: "DIPD"},
		{DocumentID: "A", CompanySymbol: "DIPD"},
	})
	assert.Error(t, err)
}
