package period

import (
	"quarterly_metrics/pkg/models"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNoRuleMatched is returned when neither the description nor the document metadata
// could be read by any rule.
var ErrNoRuleMatched = eris.New("no period rule matched")

// Meta is the document-level context a description is resolved against.
type Meta struct {
	PeriodHint           string // Catalog text such as the report link title
	FiscalYearStartMonth int    // 1..12, 1 means calendar-year alignment
}

// Resolution is a fiscal key plus the dates it came from.
type Resolution struct {
	FiscalYear int
	Quarter    models.Quarter
	PeriodEnd  time.Time // Zero when the description was a bare quarter label
	Rule       string
	FromHint   bool // The document metadata was used instead of the description
}

// Resolver tries an ordered rule set until one succeeds.
type Resolver struct {
	rules []Rule
}

// NewResolver uses DefaultRules when no rules are given.
func NewResolver(rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Resolver{rules: rules}
}

// Resolve maps a description onto a fiscal year and quarter. The description is tried
// first, then meta.PeriodHint.
func (r *Resolver) Resolve(text string, meta Meta) (Resolution, error) {
	for i, candidate := range []string{text, meta.PeriodHint} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		match, rule, ok := r.match(candidate)
		if !ok {
			continue
		}
		res := Resolution{Rule: rule, FromHint: i == 1}
		if match.HasDate() {
			res.PeriodEnd = match.Date
			res.FiscalYear, res.Quarter = FiscalQuarter(match.Date, meta.FiscalYearStartMonth)
		} else {
			res.FiscalYear, res.Quarter = match.FiscalYear, match.Quarter
			res.PeriodEnd = QuarterEnd(match.FiscalYear, match.Quarter, meta.FiscalYearStartMonth)
		}
		return res, nil
	}
	return Resolution{}, eris.Wrapf(ErrNoRuleMatched, "%q", text)
}

// Date resolves a description to a calendar date only. Used for comparative periods.
func (r *Resolver) Date(text string, startMonth int) (time.Time, bool) {
	match, _, ok := r.match(text)
	if !ok {
		return time.Time{}, false
	}
	if match.HasDate() {
		return match.Date, true
	}
	return QuarterEnd(match.FiscalYear, match.Quarter, startMonth), true
}

func (r *Resolver) match(text string) (Match, string, bool) {
	for _, rule := range r.rules {
		if m, ok := rule.Parse(text); ok {
			return m, rule.Name, true
		}
	}
	return Match{}, "", false
}

// FiscalQuarter assigns a period-end date to a fiscal year and quarter. Fiscal years are
// named by the calendar year they end in.
func FiscalQuarter(date time.Time, startMonth int) (int, models.Quarter) {
	start := normalizeStart(startMonth)
	month := int(date.Month())
	year := date.Year()
	if start != 1 && month >= start {
		year++
	}
	q := ((month-start+12)%12)/3 + 1
	return year, models.QuarterFromIndex(q)
}

// QuarterEnd is the last calendar day of a fiscal quarter.
func QuarterEnd(fiscalYear int, q models.Quarter, startMonth int) time.Time {
	start := normalizeStart(startMonth)
	firstYear := fiscalYear
	if start != 1 {
		firstYear--
	}
	first := time.Date(firstYear, time.Month(start), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 3*q.Index(), 0).AddDate(0, 0, -1)
}

func normalizeStart(m int) int {
	if m < 1 || m > 12 {
		return 1
	}
	return m
}
