package dictionary

// Canonical metric IDs referenced by the calculator and the consolidator.
const (
	MetricRevenue         = "revenue"
	MetricCostOfSales     = "cost_of_sales"
	MetricGrossProfit     = "gross_profit"
	MetricOperatingProfit = "operating_profit"
	MetricProfitBeforeTax = "profit_before_tax"
	MetricTaxExpense      = "tax_expense"
	MetricNetProfit       = "net_profit"
	MetricEPS             = "eps"
)

var ratioWords = []string{"margin", "%", "ratio", "growth", "change"}

func withRatioWords(words ...string) []string {
	return append(append([]string{}, ratioWords...), words...)
}

// DefaultDefinitions is the built-in metric set used for Sri Lankan interim reports.
func DefaultDefinitions() []MetricDefinition {
	return []MetricDefinition{
		{
			ID: MetricRevenue, Label: "Revenue", Kind: KindFlow,
			Aliases: []string{
				"revenue", "turnover", "sales", "net sales", "total revenue", "gross revenue",
				"revenue from contracts with customers", "net revenue",
			},
			Excludes: withRatioWords("cost"),
		},
		{
			ID: MetricCostOfSales, Label: "Cost of Sales", Kind: KindFlow, Expense: true,
			Aliases: []string{
				"cost of sales", "cost of sale", "cost of revenue", "cost of goods sold",
				"direct costs", "cost of turnover",
			},
			Excludes: withRatioWords(),
		},
		{
			ID: MetricGrossProfit, Label: "Gross Profit", Kind: KindFlow,
			Aliases:  []string{"gross profit", "gross income", "gross profit/(loss)"},
			Excludes: withRatioWords(),
		},
		{
			ID: MetricOperatingProfit, Label: "Operating Profit", Kind: KindFlow,
			Aliases: []string{
				"operating profit", "results from operating activities", "profit from operations",
				"operating income", "profit from operating activities", "ebit",
				"earnings before interest and tax",
			},
			Excludes: withRatioWords(),
		},
		{
			ID: MetricProfitBeforeTax, Label: "Profit Before Tax", Kind: KindFlow,
			Aliases: []string{
				"profit before tax", "profit before taxation", "profit before income tax",
				"pbt", "income before tax", "earnings before tax",
			},
			Excludes: withRatioWords("after"),
		},
		{
			ID: MetricTaxExpense, Label: "Tax Expense", Kind: KindFlow,
			Aliases: []string{
				"tax expense", "income tax expense", "taxation", "income tax", "tax",
			},
			Excludes: withRatioWords("before", "after", "deferred", "payable"),
		},
		{
			ID: MetricNetProfit, Label: "Net Profit", Kind: KindFlow,
			Aliases: []string{
				"profit for the period", "net profit", "profit after tax", "profit for the year",
				"profit for the quarter", "net income", "profit attributable to equity holders of the parent",
			},
			Excludes: withRatioWords("before", "comprehensive"),
		},
		{
			ID: MetricEPS, Label: "Basic Earnings Per Share", Kind: KindRatio,
			Aliases: []string{
				"earnings per share", "basic earnings per share", "basic eps",
				"earnings per ordinary share",
			},
			Excludes: []string{"diluted", "growth", "change"},
		},
	}
}

// Default builds the built-in dictionary.
func Default(threshold float64) *Dictionary {
	d, err := New(DefaultDefinitions(), threshold)
	if err != nil {
		panic(err) // built-in table is covered by tests
	}
	return d
}
