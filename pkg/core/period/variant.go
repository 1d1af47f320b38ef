package period

import (
	"quarterly_metrics/pkg/models"
	"strings"
)

var (
	groupWords   = []string{"consolidated", "group"}
	companyWords = []string{"company", "standalone", "separate"}
)

// DetectVariant returns the oracle's tag when it gave one. Otherwise the statement title
// decides, and an untitled statement is treated as Group.
func DetectVariant(rec models.RawExtractionRecord) models.Variant {
	if v := models.ParseVariant(string(rec.Variant)); v != "" {
		return v
	}
	title := strings.ToLower(rec.StatementUsed)
	for _, w := range groupWords {
		if strings.Contains(title, w) {
			return models.VariantGroup
		}
	}
	for _, w := range companyWords {
		if strings.Contains(title, w) {
			return models.VariantCompany
		}
	}
	return models.VariantGroup
}

// Outranks reports whether a replaces b for the same key. Only Group over Company does;
// equal variants never replace each other.
func Outranks(a, b models.Variant) bool {
	return a == models.VariantGroup && b == models.VariantCompany
}
