// Package units resolves currency and magnitude hints and rescales flow metrics into
// one base unit (whole currency units) across the dataset.
package units

import (
	"regexp"
	"strings"
)

// Common scale factors.
const (
	ScaleUnits     = 1.0
	ScaleThousands = 1_000.0
	ScaleMillions  = 1_000_000.0
	ScaleBillions  = 1_000_000_000.0
)

// Unit is a currency plus the magnitude the figures are quoted in.
type Unit struct {
	Currency string  `yaml:"currency" json:"currency"`
	Scale    float64 `yaml:"scale" json:"scale"`
}

// Base returns the same currency in whole units.
func (u Unit) Base() Unit {
	return Unit{Currency: u.Currency, Scale: ScaleUnits}
}

func (u Unit) String() string {
	switch u.Scale {
	case ScaleThousands:
		return u.Currency + " '000"
	case ScaleMillions:
		return u.Currency + " mn"
	case ScaleBillions:
		return u.Currency + " bn"
	}
	return u.Currency
}

// Hint is what could be read out of a unit hint string. Either half may be missing.
type Hint struct {
	Currency    string
	Scale       float64
	HasCurrency bool
	HasScale    bool
}

// Found reports whether the hint said anything at all.
func (h Hint) Found() bool { return h.HasCurrency || h.HasScale }

var scalePatterns = []struct {
	re    *regexp.Regexp
	scale float64
}{
	// Order matters: "millions" must win over the "000" in "Rs. 000,000".
	{regexp.MustCompile(`\b(millions?|mn|mio)\b|'000,000|000,000`), ScaleMillions},
	{regexp.MustCompile(`\b(thousands?)\b|['’‘]\s*000|(^|[^0-9,])000('?s)?([^0-9,]|$)`), ScaleThousands},
	{regexp.MustCompile(`\b(billions?|bn)\b`), ScaleBillions},
}

var currencyPatterns = []struct {
	re       *regexp.Regexp
	currency string
}{
	{regexp.MustCompile(`\b(rs|lkr|rupees?|slr)\b`), "LKR"},
	{regexp.MustCompile(`\binr\b|₹`), "INR"},
	{regexp.MustCompile(`us\$|\busd\b|\$`), "USD"},
	{regexp.MustCompile(`\beur\b|€`), "EUR"},
	{regexp.MustCompile(`\bgbp\b|£`), "GBP"},
}

// ParseHint reads strings such as "Rs. '000", "in millions" or "USD". A hint naming only a
// currency leaves the magnitude unknown.
func ParseHint(text string) Hint {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Hint{}
	}

	var h Hint
	for _, p := range currencyPatterns {
		if p.re.MatchString(lower) {
			h.Currency, h.HasCurrency = p.currency, true
			break
		}
	}
	for _, p := range scalePatterns {
		if p.re.MatchString(lower) {
			h.Scale, h.HasScale = p.scale, true
			break
		}
	}
	return h
}
