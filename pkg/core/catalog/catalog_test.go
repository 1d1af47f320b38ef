package catalog

import (
	"os"
	"path/filepath"
	"quarterly_metrics/pkg/models"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := map[string]string{
		"DIPD.N0000":  "DIPD",
		" rexp.n0000": "REXP",
		"HAYL":        "HAYL",
		"LOLC.X0000":  "LOLC",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSymbol(in), in)
	}
}

func TestReadCSV(t *testing.T) {
	body := "symbol,document_id,path,period_hint\n" +
		"DIPD.N0000,dipd-2023-q2,pdfs/dipd_q2.pdf,Interim Financial Statements - 30th June 2023\n" +
		"REXP,,/abs/REXP_Q1.pdf,\n"

	docs, err := ReadCSV(strings.NewReader(body), "/data")
	require.NoError(t, err)

	assert.Equal(t, []models.SourceDocument{
		{DocumentID: "dipd-2023-q2", CompanySymbol: "DIPD", Handle: filepath.Join("/data", "pdfs/dipd_q2.pdf"), PeriodHint: "Interim Financial Statements - 30th June 2023"},
		{DocumentID: "REXP_Q1", CompanySymbol: "REXP", Handle: "/abs/REXP_Q1.pdf"},
	}, docs)
}

func TestReadCSV_CrawlerHeader(t *testing.T) {
	body := "company_name,company_symbol,report_text,file\n" +
		"Dipped Products PLC,DIPD.N0000,Interim Report Q3,DIPD_Q3.pdf\n"

	docs, err := ReadCSV(strings.NewReader(body), "")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "DIPD", docs[0].CompanySymbol)
	assert.Equal(t, "Interim Report Q3", docs[0].PeriodHint)
	assert.Equal(t, "DIPD_Q3.pdf", docs[0].Handle)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
		want string
	}{
		{"empty file", "", ErrEmptyCatalog, ""},
		{"header only", "symbol,path\n", ErrEmptyCatalog, ""},
		{"missing path column", "symbol,document_id\nDIPD,x\n", ErrMissingColumn, "path"},
		{"duplicate ids", "symbol,document_id,path\nDIPD,a,a.pdf\nDIPD,a,b.pdf\n", ErrDuplicateDocument, "a"},
		{"blank path", "symbol,path\nDIPD,\n", nil, "empty path"},
		{"blank symbol", "symbol,path\n,a.pdf\n", nil, "no company symbol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.body), "")
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, eris.Is(err, tt.is))
			}
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte("symbol,path\nDIPD,DIPD_Q1.pdf\n"), 0o644))

	docs, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, filepath.Join(dir, "DIPD_Q1.pdf"), docs[0].Handle)

	_, err = LoadCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"REXP.N0000_Interim Financial Statements - 31st March 2023.pdf",
		"DIPD.N0000_Interim Report 30th June 2023.PDF",
		"notes.txt",
		"orphan.pdf",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "DIPD_sub.pdf"), 0o755))

	docs, err := ScanDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "DIPD", docs[0].CompanySymbol)
	assert.Equal(t, "DIPD.N0000_Interim Report 30th June 2023", docs[0].DocumentID)
	assert.Equal(t, "Interim Report 30th June 2023", docs[0].PeriodHint)
	assert.Equal(t, "REXP", docs[1].CompanySymbol)
	assert.Equal(t, "Interim Financial Statements - 31st March 2023", docs[1].PeriodHint)
}

func TestScanDir_Empty(t *testing.T) {
	_, err := ScanDir(t.TempDir())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyCatalog))
}
