package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"quarterly_metrics/pkg/models"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ErrNotCached is returned by an offline CachedOracle for a document with no cache entry.
var ErrNotCached = eris.New("document not in extraction cache")

// CacheEntry is the on-disk form of one document's oracle output.
type CacheEntry struct {
	DocumentID    string                       `json:"document_id"`
	CompanySymbol string                       `json:"company_symbol"`
	Handle        string                       `json:"handle"`
	Records       []models.RawExtractionRecord `json:"records"`
	ExtractedAt   time.Time                    `json:"extracted_at"`
}

// ExtractionCache keeps raw oracle output per document as JSON files, so a re-run does
// not pay for extraction again. Entries are never rewritten by the engine.
type ExtractionCache struct {
	dir string
}

// NewExtractionCache creates dir if needed.
func NewExtractionCache(dir string) (*ExtractionCache, error) {
	if dir == "" {
		dir = filepath.Join(".cache", "extractions")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create cache dir %s", dir)
	}
	return &ExtractionCache{dir: dir}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (c *ExtractionCache) path(documentID string) string {
	return filepath.Join(c.dir, unsafeChars.ReplaceAllString(documentID, "_")+".json")
}

// Get returns the cached records for doc. ok is false on a miss; a corrupt entry is an error.
func (c *ExtractionCache) Get(doc models.SourceDocument) ([]models.RawExtractionRecord, bool, error) {
	data, err := os.ReadFile(c.path(doc.DocumentID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "read cache entry %s", doc.DocumentID)
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, eris.Wrapf(err, "decode cache entry %s", doc.DocumentID)
	}
	return entry.Records, true, nil
}

// Save stores records for doc, replacing any previous entry.
func (c *ExtractionCache) Save(doc models.SourceDocument, records []models.RawExtractionRecord) error {
	entry := CacheEntry{
		DocumentID:    doc.DocumentID,
		CompanySymbol: doc.CompanySymbol,
		Handle:        doc.Handle,
		Records:       records,
		ExtractedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal cache entry")
	}
	// Write-then-rename so a crash never leaves a truncated entry behind.
	path := c.path(doc.DocumentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "write cache entry %s", doc.DocumentID)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "commit cache entry %s", doc.DocumentID)
	}
	return nil
}

// Exists reports whether doc has an entry.
func (c *ExtractionCache) Exists(doc models.SourceDocument) bool {
	_, err := os.Stat(c.path(doc.DocumentID))
	return err == nil
}

// Extractor is the oracle contract; pipeline.Oracle satisfies it.
type Extractor interface {
	Extract(ctx context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error)
}

// CachedOracle serves documents from the cache and falls through to inner on a miss.
// With a nil inner it runs offline and a miss is ErrNotCached.
type CachedOracle struct {
	cache *ExtractionCache
	inner Extractor
	log   zerolog.Logger
}

// NewCachedOracle wraps inner, which may be nil for offline runs.
func NewCachedOracle(cache *ExtractionCache, inner Extractor, log zerolog.Logger) *CachedOracle {
	return &CachedOracle{cache: cache, inner: inner, log: log}
}

// Extract implements pipeline.Oracle.
func (o *CachedOracle) Extract(ctx context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error) {
	records, ok, err := o.cache.Get(doc)
	if err != nil {
		o.log.Warn().Err(err).Str("document_id", doc.DocumentID).Msg("ignoring unreadable cache entry")
	}
	if ok {
		o.log.Debug().Str("document_id", doc.DocumentID).Msg("extraction cache hit")
		return records, nil
	}
	if o.inner == nil {
		return nil, eris.Wrapf(ErrNotCached, "%s", doc.DocumentID)
	}

	records, err = o.inner.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if err := o.cache.Save(doc, records); err != nil {
			o.log.Warn().Err(err).Str("document_id", doc.DocumentID).Msg("failed to cache extraction")
		}
	}
	return records, nil
}
