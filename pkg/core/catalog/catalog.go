// Package catalog loads the deduplicated list of source documents the engine processes.
// The catalog is supplied by the download step; nothing here fetches documents.
package catalog

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"quarterly_metrics/pkg/models"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	ErrEmptyCatalog      = eris.New("source catalog is empty")
	ErrDuplicateDocument = eris.New("duplicate document id in catalog")
	ErrMissingColumn     = eris.New("catalog is missing a required column")
)

// exchange board suffix, e.g. "DIPD.N0000"
var boardSuffix = regexp.MustCompile(`\.[A-Z]\d{4}$`)

// NormalizeSymbol upper-cases a ticker and drops the board suffix.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return boardSuffix.ReplaceAllString(s, "")
}

// column aliases accepted in the catalog header; the crawler's own export uses the second names
var columns = map[string][]string{
	"symbol":      {"symbol", "company_symbol"},
	"document_id": {"document_id", "id"},
	"path":        {"path", "handle", "file"},
	"period_hint": {"period_hint", "report_text"},
}

// LoadCSV reads a catalog with a header row. symbol and path are required; document_id
// defaults to the file name without extension; relative paths resolve against the
// catalog's directory.
func LoadCSV(path string) ([]models.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open catalog %s", path)
	}
	defer f.Close()

	docs, err := ReadCSV(f, filepath.Dir(path))
	if err != nil {
		return nil, eris.Wrapf(err, "catalog %s", path)
	}
	return docs, nil
}

// ReadCSV parses catalog rows from r.
func ReadCSV(r io.Reader, baseDir string) ([]models.SourceDocument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyCatalog
	}
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	idx := headerIndex(header)
	for _, required := range []string{"symbol", "path"} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Wrapf(ErrMissingColumn, "%s", required)
		}
	}

	var docs []models.SourceDocument
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "line %d", line)
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		handle := get("path")
		if handle == "" {
			return nil, eris.Errorf("line %d: empty path", line)
		}
		if !filepath.IsAbs(handle) && baseDir != "" {
			handle = filepath.Join(baseDir, handle)
		}
		doc := models.SourceDocument{
			DocumentID:    get("document_id"),
			CompanySymbol: NormalizeSymbol(get("symbol")),
			Handle:        handle,
			PeriodHint:    get("period_hint"),
		}
		if doc.DocumentID == "" {
			doc.DocumentID = documentID(handle)
		}
		docs = append(docs, doc)
	}

	if err := Validate(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for col, aliases := range columns {
			if _, taken := idx[col]; taken {
				continue
			}
			for _, a := range aliases {
				if name == a {
					idx[col] = i
				}
			}
		}
	}
	return idx
}

// ScanDir builds a catalog from a download directory of "{SYMBOL}_{report text}.pdf"
// files. The report text becomes the period hint. Files without an underscore are skipped.
func ScanDir(dir string) ([]models.SourceDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "scan %s", dir)
	}

	var docs []models.SourceDocument
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		symbol, text, ok := strings.Cut(stem, "_")
		if !ok || symbol == "" {
			continue
		}
		docs = append(docs, models.SourceDocument{
			DocumentID:    stem,
			CompanySymbol: NormalizeSymbol(symbol),
			Handle:        filepath.Join(dir, e.Name()),
			PeriodHint:    strings.TrimSpace(text),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocumentID < docs[j].DocumentID })

	if err := Validate(docs); err != nil {
		return nil, eris.Wrapf(err, "scan %s", dir)
	}
	return docs, nil
}

// Validate rejects empty catalogs, rows without a symbol and repeated document IDs.
func Validate(docs []models.SourceDocument) error {
	if len(docs) == 0 {
		return ErrEmptyCatalog
	}
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.CompanySymbol == "" {
			return eris.Errorf("document %s has no company symbol", d.DocumentID)
		}
		if _, dup := seen[d.DocumentID]; dup {
			return eris.Wrapf(ErrDuplicateDocument, "%s", d.DocumentID)
		}
		seen[d.DocumentID] = struct{}{}
	}
	return nil
}

func documentID(handle string) string {
	base := filepath.Base(handle)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
