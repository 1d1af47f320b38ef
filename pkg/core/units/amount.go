package units

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ErrUnparsableAmount is returned for raw values that are present but not numeric.
var ErrUnparsableAmount = eris.New("unparsable amount")

var blanks = map[string]struct{}{
	"": {}, "-": {}, "–": {}, "—": {}, "n/a": {}, "na": {}, "nil": {}, "null": {}, "none": {},
}

// ParseAmount reads a raw statement figure. Parentheses and leading or trailing minus
// signs mean negative; thousands separators, currency marks and spaces are ignored.
// ok is false when the figure is absent (blank, dash, null).
func ParseAmount(raw string) (value decimal.Decimal, ok bool, err error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, blank := blanks[s]; blank {
		return decimal.Zero, false, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	for _, prefix := range []string{"lkr", "rs.", "rs", "usd", "us$", "$", "inr", "₹"} {
		s = strings.TrimPrefix(strings.TrimSpace(s), prefix)
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.':
			b.WriteRune(r)
		case r == ',', r == ' ', r == '\'', r == '\u00a0':
		default:
			return decimal.Zero, false, eris.Wrapf(ErrUnparsableAmount, "%q", raw)
		}
	}
	if b.Len() == 0 {
		return decimal.Zero, false, eris.Wrapf(ErrUnparsableAmount, "%q", raw)
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, false, eris.Wrapf(ErrUnparsableAmount, "%q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, true, nil
}
