package dictionary

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// noise tokens carry no meaning for matching: connectives, currency and unit words.
var noise = map[string]struct{}{
	"the": {}, "of": {}, "for": {}, "from": {}, "and": {}, "a": {}, "an": {}, "to": {},
	"in": {}, "on": {}, "with": {}, "at": {}, "by": {}, "its": {},
	"rs": {}, "lkr": {}, "usd": {}, "us": {}, "inr": {}, "mn": {}, "bn": {},
	"thousand": {}, "thousands": {}, "million": {}, "millions": {},
}

// Tokens folds case, applies NFKC, drops punctuation, digits-only tokens and noise words.
// A literal "%" survives as the token "percent" so ratio lines stay distinguishable.
func Tokens(label string) []string {
	s := norm.NFKC.String(label)
	s = cases.Fold().String(s) // Caser is stateful, never share one across goroutines
	s = strings.ReplaceAll(s, "%", " percent ")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := fields[:0]
	for _, f := range fields {
		if _, skip := noise[f]; skip {
			continue
		}
		if isDigits(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Normalize returns the canonical comparison form of a label.
func Normalize(label string) string {
	return strings.Join(Tokens(label), " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// similarity averages the overlap coefficient (substring-like containment) and the Jaccard
// index (penalizes extra words) over two token sets.
func similarity(label, alias []string) float64 {
	if len(label) == 0 || len(alias) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(alias))
	for _, t := range alias {
		set[t] = struct{}{}
	}
	seen := make(map[string]struct{}, len(label))
	inter := 0
	for _, t := range label {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	union := len(seen) + len(set) - inter
	minLen := len(seen)
	if len(set) < minLen {
		minLen = len(set)
	}
	overlap := float64(inter) / float64(minLen)
	jaccard := float64(inter) / float64(union)
	return (overlap + jaccard) / 2
}
