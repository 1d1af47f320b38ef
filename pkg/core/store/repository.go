package store

import (
	"context"
	"encoding/json"
	"quarterly_metrics/pkg/models"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Schema is applied by EnsureSchema. One row per canonical key; the full record is kept as
// JSONB next to the key columns.
const Schema = `
CREATE TABLE IF NOT EXISTS quarterly_metrics (
	company_symbol TEXT        NOT NULL,
	fiscal_year    INT         NOT NULL,
	quarter        TEXT        NOT NULL,
	variant        TEXT        NOT NULL,
	period_end     DATE,
	currency       TEXT        NOT NULL,
	unit_confirmed BOOLEAN     NOT NULL,
	batch_id       TEXT        NOT NULL,
	document_id    TEXT        NOT NULL,
	record         JSONB       NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (company_symbol, fiscal_year, quarter)
);
CREATE TABLE IF NOT EXISTS metric_audit (
	id             BIGSERIAL PRIMARY KEY,
	batch_id       TEXT NOT NULL,
	kind           TEXT NOT NULL,
	severity       TEXT NOT NULL,
	document_id    TEXT,
	source_id      TEXT,
	company_symbol TEXT,
	fiscal_year    INT,
	quarter        TEXT,
	metric         TEXT,
	detail         TEXT NOT NULL
);`

const upsertRecord = `
	INSERT INTO quarterly_metrics (
		company_symbol, fiscal_year, quarter, variant, period_end, currency,
		unit_confirmed, batch_id, document_id, record, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (company_symbol, fiscal_year, quarter)
	DO UPDATE SET
		variant = EXCLUDED.variant,
		period_end = EXCLUDED.period_end,
		currency = EXCLUDED.currency,
		unit_confirmed = EXCLUDED.unit_confirmed,
		batch_id = EXCLUDED.batch_id,
		document_id = EXCLUDED.document_id,
		record = EXCLUDED.record,
		updated_at = EXCLUDED.updated_at`

var auditColumns = []string{
	"batch_id", "kind", "severity", "document_id", "source_id",
	"company_symbol", "fiscal_year", "quarter", "metric", "detail",
}

// Repository persists batches to Postgres.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository uses pool, or the shared pool from InitDB when pool is nil.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		pool = GetPool()
	}
	return &Repository{pool: pool, now: time.Now}
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r.pool == nil {
		return eris.New("database pool not initialized")
	}
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return eris.Wrap(err, "failed to apply schema")
	}
	return nil
}

// SaveDataset upserts every record by canonical key in a single round trip.
func (r *Repository) SaveDataset(ctx context.Context, records []models.CanonicalMetricRecord) error {
	if r.pool == nil {
		return eris.New("database pool not initialized")
	}
	batch := &pgx.Batch{}
	now := r.now().UTC()
	for _, rec := range records {
		args, err := datasetRow(rec, now)
		if err != nil {
			return err
		}
		batch.Queue(upsertRecord, args...)
	}

	br := r.pool.SendBatch(ctx, batch)
	for _, rec := range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return eris.Wrapf(err, "failed to save %s", rec.Key)
		}
	}
	if err := br.Close(); err != nil {
		return eris.Wrap(err, "failed to save dataset")
	}
	return nil
}

// SaveAudit appends the audit report with COPY.
func (r *Repository) SaveAudit(ctx context.Context, audit []models.AuditEntry) error {
	if r.pool == nil {
		return eris.New("database pool not initialized")
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"metric_audit"}, auditColumns,
		pgx.CopyFromSlice(len(audit), func(i int) ([]any, error) {
			return auditRow(audit[i]), nil
		}))
	if err != nil {
		return eris.Wrap(err, "failed to save audit report")
	}
	return nil
}

// LoadDataset returns the stored records of one company, oldest first.
func (r *Repository) LoadDataset(ctx context.Context, symbol string) ([]models.CanonicalMetricRecord, error) {
	if r.pool == nil {
		return nil, eris.New("database pool not initialized")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT record FROM quarterly_metrics
		WHERE company_symbol = $1
		ORDER BY fiscal_year, quarter`, symbol)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load dataset for %s", symbol)
	}
	defer rows.Close()

	var out []models.CanonicalMetricRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "failed to scan record")
		}
		var rec models.CanonicalMetricRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "failed to unmarshal record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read dataset rows")
	}
	return out, nil
}

// datasetRow builds the upsert arguments for rec in column order.
func datasetRow(rec models.CanonicalMetricRecord, now time.Time) ([]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to marshal %s", rec.Key)
	}
	var periodEnd *time.Time
	if !rec.PeriodEnd.IsZero() {
		periodEnd = &rec.PeriodEnd
	}
	return []any{
		rec.Key.CompanySymbol, rec.Key.FiscalYear, string(rec.Key.Quarter), string(rec.Variant),
		periodEnd, rec.Currency, rec.UnitConfirmed, rec.Provenance.BatchID,
		rec.Provenance.DocumentID, data, now,
	}, nil
}

// auditRow builds a COPY row for a. Empty optional fields are stored as NULL.
func auditRow(a models.AuditEntry) []any {
	return []any{
		a.BatchID, string(a.Kind), string(a.Severity),
		nullable(a.DocumentID), nullable(a.SourceID), nullable(a.CompanySymbol),
		nullableInt(a.FiscalYear), nullable(string(a.Quarter)), nullable(a.Metric), a.Detail,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}
