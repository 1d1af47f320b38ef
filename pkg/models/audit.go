package models

// AuditKind classifies a row of the audit report.
type AuditKind string

const (
	AuditExtractionFailure   AuditKind = "extraction_failure"
	AuditPeriodParseFailure  AuditKind = "period_parse_failure"
	AuditUnmappedLabel       AuditKind = "unmapped_label"
	AuditDuplicateLabel      AuditKind = "duplicate_label"
	AuditUnparsableValue     AuditKind = "unparsable_value"
	AuditUnitUnconfirmed     AuditKind = "unit_unconfirmed"
	AuditDiscardedCompany    AuditKind = "discarded_company_variant"
	AuditVariantFallback     AuditKind = "variant_fallback"
	AuditDuplicateVariant    AuditKind = "duplicate_variant"
	AuditInvalidKey          AuditKind = "invalid_key"
	AuditUnknownCompany      AuditKind = "unknown_company"
	AuditPeriodGap           AuditKind = "period_gap"
	AuditRestatement         AuditKind = "restatement"
	AuditComparativeBackfill AuditKind = "comparative_backfill"
	AuditDurationMismatch    AuditKind = "duration_mismatch"
	AuditCurrencyMismatch    AuditKind = "currency_mismatch"
)

// Severity of an audit entry. Errors need manual resolution; warnings and info do not.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AuditEntry is one issue row, always traceable to a source document.
type AuditEntry struct {
	BatchID       string    `json:"batch_id"`
	Kind          AuditKind `json:"kind"`
	Severity      Severity  `json:"severity"`
	DocumentID    string    `json:"document_id,omitempty"`
	SourceID      string    `json:"source_id,omitempty"`
	CompanySymbol string    `json:"company_symbol,omitempty"`
	FiscalYear    int       `json:"fiscal_year,omitempty"`
	Quarter       Quarter   `json:"quarter,omitempty"`
	Metric        string    `json:"metric,omitempty"`
	Detail        string    `json:"detail"`
}

// ForKey stamps key fields onto the entry.
func (e AuditEntry) ForKey(k CanonicalKey) AuditEntry {
	e.CompanySymbol = k.CompanySymbol
	e.FiscalYear = k.FiscalYear
	e.Quarter = k.Quarter
	return e
}
