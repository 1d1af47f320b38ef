package calc

import (
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var f = models.Float

func TestMargin(t *testing.T) {
	tests := []struct {
		name     string
		num, den *float64
		want     *float64
	}{
		{"normal", f(3_300_000), f(10_500_000), f(31.428571428571427)},
		{"nil numerator", nil, f(100), nil},
		{"nil revenue", f(10), nil, nil},
		{"zero revenue", f(10), f(0), nil},
		{"negative", f(-20), f(200), f(-10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Margin(tt.num, tt.den)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestYoY(t *testing.T) {
	tests := []struct {
		name     string
		cur, cmp *float64
		want     *float64
	}{
		{"growth", f(620_000), f(500_000), f(24)},
		{"decline", f(80), f(100), f(-20)},
		{"from loss", f(50), f(-100), f(150)},
		{"deeper loss", f(-150), f(-100), f(-50)},
		{"nil current", nil, f(100), nil},
		{"nil comparative", f(100), nil, nil},
		{"zero comparative", f(100), f(0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := YoY(tt.cur, tt.cmp)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestFillGrossProfit(t *testing.T) {
	values := models.MetricValues{
		dictionary.MetricRevenue:     f(10_500_000),
		dictionary.MetricCostOfSales: f(7_200_000),
	}
	require.True(t, FillGrossProfit(values))
	assert.InDelta(t, 3_300_000, *values[dictionary.MetricGrossProfit], 1e-6)

	// Already present: untouched.
	assert.False(t, FillGrossProfit(values))

	reported := models.MetricValues{
		dictionary.MetricRevenue:     f(100),
		dictionary.MetricCostOfSales: f(60),
		dictionary.MetricGrossProfit: f(45),
	}
	assert.False(t, FillGrossProfit(reported))
	assert.Equal(t, 45.0, *reported[dictionary.MetricGrossProfit])

	missing := models.MetricValues{dictionary.MetricRevenue: f(100), dictionary.MetricCostOfSales: nil}
	assert.False(t, FillGrossProfit(missing))
	assert.Nil(t, missing[dictionary.MetricGrossProfit])

	assert.False(t, FillGrossProfit(nil))
}

func TestDerive(t *testing.T) {
	rec := models.CanonicalMetricRecord{
		Current: models.MetricValues{
			dictionary.MetricRevenue:         f(10_500_000),
			dictionary.MetricGrossProfit:     f(3_300_000),
			dictionary.MetricOperatingProfit: f(1_050_000),
			dictionary.MetricNetProfit:       nil,
			dictionary.MetricEPS:             f(1.5),
		},
		Comparative: models.MetricValues{
			dictionary.MetricRevenue:     f(0),
			dictionary.MetricGrossProfit: f(3_000_000),
			dictionary.MetricEPS:         f(1.2),
		},
	}
	ids := []string{dictionary.MetricRevenue, dictionary.MetricGrossProfit, dictionary.MetricNetProfit, dictionary.MetricEPS}

	got := Derive(rec, ids)

	require.NotNil(t, got.CurrentMargins.Gross)
	assert.InDelta(t, 31.43, *got.CurrentMargins.Gross, 0.005)
	assert.InDelta(t, 10.0, *got.CurrentMargins.Operating, 1e-9)
	assert.Nil(t, got.CurrentMargins.Net)

	assert.Nil(t, got.ComparativeMargins.Gross, "zero revenue gives no margin")

	assert.Len(t, got.YoY, len(ids))
	assert.Nil(t, got.YoY[dictionary.MetricRevenue])
	assert.InDelta(t, 10.0, *got.YoY[dictionary.MetricGrossProfit], 1e-9)
	assert.Nil(t, got.YoY[dictionary.MetricNetProfit])
	assert.InDelta(t, 25.0, *got.YoY[dictionary.MetricEPS], 1e-9)

	assert.Equal(t, got, Derive(rec, ids), "derivation is idempotent")
}
