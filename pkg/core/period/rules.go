// Package period turns free-text period descriptions into canonical fiscal keys and
// decides which statement variant a record carries.
package period

import (
	"quarterly_metrics/pkg/models"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Match is what a rule read out of a description. Quarter labels ("Q1 FY23") yield a fiscal
// key without a calendar date; every other rule yields a period-end date.
type Match struct {
	Date       time.Time
	FiscalYear int
	Quarter    models.Quarter
}

// HasDate reports whether the rule produced a calendar date.
func (m Match) HasDate() bool { return !m.Date.IsZero() }

// Rule is one parser in the ordered rule set.
type Rule struct {
	Name  string
	Parse func(text string) (Match, bool)
}

const monthNames = `(january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)`

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	isoPattern         = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	dayMonthYear       = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?[\s\-/]+(?:of\s+)?` + monthNames + `\.?,?[\s\-/]+(\d{4})\b`)
	monthDayYear       = regexp.MustCompile(`\b` + monthNames + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	numericPattern     = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})[/.](\d{4})\b`)
	monthYear          = regexp.MustCompile(`\b` + monthNames + `\.?,?[\s\-/]+(\d{4})\b`)
	quarterFirst       = regexp.MustCompile(`\bq([1-4])\s*[-,]?\s*(?:fy\s*)?(\d{4}|\d{2})(?:\s*/\s*(\d{4}|\d{2}))?\b`)
	fiscalFirst        = regexp.MustCompile(`\bfy\s*(\d{4}|\d{2})(?:\s*/\s*(\d{4}|\d{2}))?\s*[-,]?\s*q([1-4])\b`)
	ordinalQuarter     = regexp.MustCompile(`\b(first|second|third|fourth)\s+quarter\s+(?:of\s+)?(?:fy\s*)?(\d{4})(?:\s*/\s*(\d{4}|\d{2}))?\b`)
	ordinalQuarterWord = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4}
)

// DefaultRules returns the built-in rules in the order they are tried.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "iso", Parse: parseISO},
		{Name: "day_month_year", Parse: parseDayMonthYear},
		{Name: "month_day_year", Parse: parseMonthDayYear},
		{Name: "numeric_dmy", Parse: parseNumeric},
		{Name: "month_year", Parse: parseMonthYear},
		{Name: "quarter_label", Parse: parseQuarterLabel},
	}
}

func parseISO(text string) (Match, bool) {
	return latestDate(isoPattern, text, func(m []string) (int, int, int) {
		return atoi(m[1]), atoi(m[2]), atoi(m[3])
	})
}

func parseDayMonthYear(text string) (Match, bool) {
	return latestDate(dayMonthYear, strings.ToLower(text), func(m []string) (int, int, int) {
		return atoi(m[3]), int(months[m[2][:3]]), atoi(m[1])
	})
}

func parseMonthDayYear(text string) (Match, bool) {
	return latestDate(monthDayYear, strings.ToLower(text), func(m []string) (int, int, int) {
		return atoi(m[3]), int(months[m[1][:3]]), atoi(m[2])
	})
}

// parseNumeric reads dd/mm/yyyy and dd.mm.yyyy. Day-first is the local convention.
func parseNumeric(text string) (Match, bool) {
	return latestDate(numericPattern, text, func(m []string) (int, int, int) {
		return atoi(m[3]), atoi(m[2]), atoi(m[1])
	})
}

// parseMonthYear reads "June 2023" as the last day of that month.
func parseMonthYear(text string) (Match, bool) {
	return latestDate(monthYear, strings.ToLower(text), func(m []string) (int, int, int) {
		year, month := atoi(m[2]), months[m[1][:3]]
		end := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		return year, int(month), end.Day()
	})
}

// latestDate keeps the latest valid date among all matches, so a range such as
// "1 April 2023 to 31 December 2023" resolves to its end.
func latestDate(re *regexp.Regexp, text string, ymd func(m []string) (int, int, int)) (Match, bool) {
	var best Match
	found := false
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		got, ok := dateMatch(ymd(m))
		if ok && (!found || got.Date.After(best.Date)) {
			best, found = got, true
		}
	}
	return best, found
}

// parseQuarterLabel reads "Q1 FY23", "Q2 2023", "FY2023 Q3", "Q4 2023/24" and
// "first quarter 2023". For split years the later year names the fiscal year.
func parseQuarterLabel(text string) (Match, bool) {
	lower := strings.ToLower(text)
	if m := quarterFirst.FindStringSubmatch(lower); m != nil {
		return quarterMatch(atoi(m[1]), m[2], m[3])
	}
	if m := fiscalFirst.FindStringSubmatch(lower); m != nil {
		return quarterMatch(atoi(m[3]), m[1], m[2])
	}
	if m := ordinalQuarter.FindStringSubmatch(lower); m != nil {
		return quarterMatch(ordinalQuarterWord[m[1]], m[2], m[3])
	}
	return Match{}, false
}

func quarterMatch(q int, year, splitYear string) (Match, bool) {
	fy := expandYear(year)
	if splitYear != "" {
		fy = expandYear(splitYear)
		if len(splitYear) == 2 {
			fy = expandYear(year)/100*100 + atoi(splitYear)
			if fy < expandYear(year) {
				fy += 100
			}
		}
	}
	return Match{FiscalYear: fy, Quarter: models.QuarterFromIndex(q)}, true
}

func dateMatch(year, month, day int) (Match, bool) {
	if month < 1 || month > 12 || day < 1 {
		return Match{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return Match{}, false
	}
	return Match{Date: t}, true
}

func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		return 2000 + y
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
