// Package validate checks canonical keys and per-company period sequences.
package validate

import (
	"fmt"
	"quarterly_metrics/pkg/models"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// =============================================================================
// KEY VALIDATION
// =============================================================================

var (
	ErrInvalidKey     = eris.New("invalid canonical key")
	ErrUnknownCompany = eris.New("company not in configured list")
)

// Window is the inclusive range of fiscal years the dataset retains.
type Window struct {
	FromYear int `yaml:"from_year" validate:"min=1000,max=9999"`
	ToYear   int `yaml:"to_year" validate:"min=1000,max=9999,gtefield=FromYear"`
}

// Contains reports whether year falls inside the window.
func (w Window) Contains(year int) bool {
	return year >= w.FromYear && year <= w.ToYear
}

// KeyValidator checks keys against the struct tags on models.CanonicalKey, the retention
// window and the configured company list. An empty company list admits every symbol.
type KeyValidator struct {
	validate  *validator.Validate
	window    Window
	companies map[string]struct{}
}

// NewKeyValidator builds a validator. It is safe for concurrent use.
func NewKeyValidator(window Window, companies []string) *KeyValidator {
	kv := &KeyValidator{
		validate:  validator.New(),
		window:    window,
		companies: make(map[string]struct{}, len(companies)),
	}
	for _, c := range companies {
		kv.companies[strings.ToUpper(c)] = struct{}{}
	}
	return kv
}

// Key returns ErrInvalidKey (wrapped with the failing fields) for malformed keys and
// keys outside the retention window.
func (kv *KeyValidator) Key(k models.CanonicalKey) error {
	if err := kv.validate.Struct(k); err != nil {
		if fields, ok := err.(validator.ValidationErrors); ok {
			return eris.Wrapf(ErrInvalidKey, "%s: %s", k, describe(fields))
		}
		return eris.Wrapf(ErrInvalidKey, "%s: %v", k, err)
	}
	if !kv.window.Contains(k.FiscalYear) {
		return eris.Wrapf(ErrInvalidKey, "%s: fiscal year outside retention window %d-%d",
			k, kv.window.FromYear, kv.window.ToYear)
	}
	return nil
}

// Company returns ErrUnknownCompany when a company list is configured and symbol is not on it.
func (kv *KeyValidator) Company(symbol string) error {
	if len(kv.companies) == 0 {
		return nil
	}
	if _, ok := kv.companies[strings.ToUpper(symbol)]; !ok {
		return eris.Wrapf(ErrUnknownCompany, "%q", symbol)
	}
	return nil
}

func describe(fields validator.ValidationErrors) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s failed %s", f.Field(), f.Tag()))
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// PERIOD GAPS
// =============================================================================

// Gap is a run of missing quarters between two consecutive periods of one company.
type Gap struct {
	After   models.CanonicalKey
	Before  models.CanonicalKey
	Missing int
}

func (g Gap) String() string {
	return fmt.Sprintf("%d quarter(s) missing between %s %d and %s %d",
		g.Missing, g.After.Quarter, g.After.FiscalYear, g.Before.Quarter, g.Before.FiscalYear)
}

// Gaps returns every gap larger than tolerance missing quarters. Keys are expected to
// belong to a single company; they are sorted before checking.
func Gaps(keys []models.CanonicalKey, tolerance int) []Gap {
	if len(keys) < 2 {
		return nil
	}
	sorted := make([]models.CanonicalKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	var gaps []Gap
	for i := 1; i < len(sorted); i++ {
		missing := sorted[i].Ordinal() - sorted[i-1].Ordinal() - 1
		if missing > tolerance {
			gaps = append(gaps, Gap{After: sorted[i-1], Before: sorted[i], Missing: missing})
		}
	}
	return gaps
}
