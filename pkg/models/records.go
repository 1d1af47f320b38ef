package models

import (
	"strings"
	"time"
)

// Variant distinguishes consolidated (Group) from standalone (Company) figures.
type Variant string

const (
	VariantGroup   Variant = "GROUP"
	VariantCompany Variant = "COMPANY"
)

// ParseVariant maps free-form oracle tags onto a Variant. Unknown tags return "".
func ParseVariant(tag string) Variant {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "group", "consolidated", "grp":
		return VariantGroup
	case "company", "standalone", "separate", "entity":
		return VariantCompany
	}
	return ""
}

// SourceDocument is one entry of the deduplicated document catalog.
type SourceDocument struct {
	DocumentID    string `json:"document_id"`
	CompanySymbol string `json:"company_symbol"`
	Handle        string `json:"handle"`                // Local path to the report
	PeriodHint    string `json:"period_hint,omitempty"` // e.g. link text "Interim Financial Statements - 30th June 2023"
}

// LineItem is a single (raw_label, raw_value, raw_unit_hint) tuple as returned by the oracle.
type LineItem struct {
	Label    string `json:"label"`
	Value    string `json:"value"` // Raw text, "" when the oracle reported null
	UnitHint string `json:"unit_hint,omitempty"`
}

// RawExtractionRecord is the oracle's best-effort reading of one statement in one document.
// Records are consumed exactly once by the engine and never mutated.
type RawExtractionRecord struct {
	SourceID                     string     `json:"source_id"`
	DocumentID                   string     `json:"document_id"`
	CompanySymbol                string     `json:"company_symbol"`
	CompanyName                  string     `json:"company_name,omitempty"`
	PeriodDescription            string     `json:"period_description"`
	ComparativePeriodDescription string     `json:"comparative_period_description,omitempty"`
	Duration                     string     `json:"duration,omitempty"`     // "3 months", "9 months"
	AuditStatus                  string     `json:"audit_status,omitempty"` // "Audited" / "Unaudited"
	UnitHint                     string     `json:"unit_hint,omitempty"`    // Statement-level hint, e.g. "Rs. '000"
	Variant                      Variant    `json:"variant,omitempty"`
	StatementUsed                string     `json:"statement_used,omitempty"`
	PageNumbers                  []int      `json:"page_numbers,omitempty"`
	Current                      []LineItem `json:"current"`
	Comparative                  []LineItem `json:"comparative"`
}

// Provenance points a canonical row back at the record it came from.
type Provenance struct {
	BatchID       string   `json:"batch_id"`
	SourceID      string   `json:"source_id"`
	DocumentID    string   `json:"document_id"`
	StatementUsed string   `json:"statement_used,omitempty"`
	PageNumbers   []int    `json:"page_numbers,omitempty"`
	Filled        []string `json:"filled,omitempty"` // Fields not read from the source record itself
}

// ResolvedRecord is one raw record after mapping, unit normalization and period resolution.
// It is the unit the Consolidator merges.
type ResolvedRecord struct {
	Key                  CanonicalKey `json:"key"`
	Variant              Variant      `json:"variant"`
	CompanyName          string       `json:"company_name,omitempty"`
	PeriodEnd            time.Time    `json:"period_end"`
	ComparativePeriodEnd time.Time    `json:"comparative_period_end"`
	Duration             string       `json:"duration,omitempty"`
	AuditStatus          string       `json:"audit_status,omitempty"`
	Currency             string       `json:"currency"`
	UnitConfirmed        bool         `json:"unit_confirmed"`
	Current              MetricValues `json:"current"`
	Comparative          MetricValues `json:"comparative"`
	Provenance           Provenance   `json:"provenance"`
}
