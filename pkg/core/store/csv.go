package store

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"quarterly_metrics/pkg/models"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DatasetHeader returns the dataset columns for the given metric order.
func DatasetHeader(metrics []string) []string {
	header := []string{
		"company_symbol", "company_name", "sector", "fiscal_year", "quarter",
		"period_end_date", "comparative_period_end_date", "duration", "variant",
		"currency", "unit_confirmed", "audit_status", "source_id", "document_id",
		"statement_used", "page_numbers", "filled_fields",
	}
	for _, id := range metrics {
		header = append(header, "current_"+id)
	}
	for _, id := range metrics {
		header = append(header, "comparative_"+id)
	}
	header = append(header,
		"current_gross_margin_pct", "current_operating_margin_pct", "current_net_margin_pct",
		"comparative_gross_margin_pct", "comparative_operating_margin_pct", "comparative_net_margin_pct",
	)
	for _, id := range metrics {
		header = append(header, "yoy_"+id+"_pct")
	}
	return header
}

// DatasetRow renders one record in DatasetHeader order. Missing values are empty cells.
func DatasetRow(rec models.CanonicalMetricRecord, metrics []string) []string {
	pages := make([]string, len(rec.Provenance.PageNumbers))
	for i, p := range rec.Provenance.PageNumbers {
		pages[i] = strconv.Itoa(p)
	}
	row := []string{
		rec.Key.CompanySymbol, rec.CompanyName, rec.Sector,
		strconv.Itoa(rec.Key.FiscalYear), string(rec.Key.Quarter),
		formatDate(rec.PeriodEnd), formatDate(rec.ComparativePeriodEnd),
		rec.Duration, string(rec.Variant), rec.Currency,
		strconv.FormatBool(rec.UnitConfirmed), rec.AuditStatus,
		rec.Provenance.SourceID, rec.Provenance.DocumentID, rec.Provenance.StatementUsed,
		strings.Join(pages, ";"), strings.Join(rec.Provenance.Filled, ";"),
	}
	for _, id := range metrics {
		row = append(row, formatValue(rec.Current.Get(id)))
	}
	for _, id := range metrics {
		row = append(row, formatValue(rec.Comparative.Get(id)))
	}
	cm, pm := rec.Derived.CurrentMargins, rec.Derived.ComparativeMargins
	row = append(row,
		formatPct(cm.Gross), formatPct(cm.Operating), formatPct(cm.Net),
		formatPct(pm.Gross), formatPct(pm.Operating), formatPct(pm.Net),
	)
	for _, id := range metrics {
		row = append(row, formatPct(rec.Derived.YoY.Get(id)))
	}
	return row
}

// WriteDatasetCSV writes the header plus one row per record.
func WriteDatasetCSV(w io.Writer, records []models.CanonicalMetricRecord, metrics []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DatasetHeader(metrics)); err != nil {
		return eris.Wrap(err, "write dataset header")
	}
	for _, rec := range records {
		if err := cw.Write(DatasetRow(rec, metrics)); err != nil {
			return eris.Wrapf(err, "write dataset row %s", rec.Key)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "flush dataset")
	}
	return nil
}

var auditHeader = []string{
	"batch_id", "kind", "severity", "document_id", "source_id",
	"company_symbol", "fiscal_year", "quarter", "metric", "detail",
}

// WriteAuditCSV writes the audit report.
func WriteAuditCSV(w io.Writer, audit []models.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(auditHeader); err != nil {
		return eris.Wrap(err, "write audit header")
	}
	for _, a := range audit {
		year := ""
		if a.FiscalYear != 0 {
			year = strconv.Itoa(a.FiscalYear)
		}
		row := []string{
			a.BatchID, string(a.Kind), string(a.Severity), a.DocumentID, a.SourceID,
			a.CompanySymbol, year, string(a.Quarter), a.Metric, a.Detail,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "write audit row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "flush audit")
	}
	return nil
}

// WriteFiles writes the dataset and the audit report under dir, creating it if needed.
func WriteFiles(dir, datasetFile, auditFile string, records []models.CanonicalMetricRecord, audit []models.AuditEntry, metrics []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create output dir %s", dir)
	}
	if err := writeFile(filepath.Join(dir, datasetFile), func(w io.Writer) error {
		return WriteDatasetCSV(w, records, metrics)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, auditFile), func(w io.Writer) error {
		return WriteAuditCSV(w, audit)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatPct(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
