package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, kept as an interface so
// tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 5
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS fund_ytm_history (
	id              UUID PRIMARY KEY,
	fund_id         TEXT NOT NULL,
	display_name    TEXT NOT NULL,
	provider        TEXT NOT NULL,
	identifier_code TEXT,
	maturity_year   INTEGER NOT NULL,
	source_url      TEXT NOT NULL,
	report_date     DATE NOT NULL,
	ytm             DOUBLE PRECISION NOT NULL,
	source_kind     TEXT NOT NULL,
	document_ref    TEXT,
	extracted_at    TIMESTAMPTZ NOT NULL,
	UNIQUE(fund_id, report_date)
);

CREATE INDEX IF NOT EXISTS idx_history_report_date ON fund_ytm_history(report_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, result model.ExtractionResult, meta fund.Config) error {
	if !persistable(result) {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO fund_ytm_history (
			id, fund_id, display_name, provider, identifier_code,
			maturity_year, source_url, report_date, ytm, source_kind,
			document_ref, extracted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (fund_id, report_date) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			provider = EXCLUDED.provider,
			identifier_code = EXCLUDED.identifier_code,
			maturity_year = EXCLUDED.maturity_year,
			source_url = EXCLUDED.source_url,
			ytm = EXCLUDED.ytm,
			source_kind = EXCLUDED.source_kind,
			document_ref = EXCLUDED.document_ref,
			extracted_at = EXCLUDED.extracted_at`,
		uuid.New().String(), result.FundID, meta.DisplayName, string(meta.Provider),
		meta.IdentifierCode, meta.MaturityYear, meta.SourceURL,
		result.Period.Date(), *result.Value, string(result.SourceKind),
		result.DocumentRef, result.ExtractedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert %s %s", result.FundID, result.Period)
}

const postgresRecordCols = `id, fund_id, display_name, provider, identifier_code,
	maturity_year, source_url, report_date, ytm, source_kind, document_ref, extracted_at`

func (s *PostgresStore) LatestPerFund(ctx context.Context) ([]model.HistoricalRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (fund_id) `+postgresRecordCols+`
		FROM fund_ytm_history
		ORDER BY fund_id, report_date DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest per fund")
	}
	defer rows.Close()
	return scanPgRecords(rows)
}

func (s *PostgresStore) History(ctx context.Context, fundID string) ([]model.HistoricalRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+postgresRecordCols+`
		FROM fund_ytm_history
		WHERE fund_id = $1
		ORDER BY report_date ASC`,
		fundID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: history %s", fundID)
	}
	defer rows.Close()
	return scanPgRecords(rows)
}

func (s *PostgresStore) RecordsForPeriod(ctx context.Context, period model.Period) ([]model.HistoricalRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+postgresRecordCols+`
		FROM fund_ytm_history
		WHERE report_date = $1
		ORDER BY maturity_year, display_name`,
		period.Date(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: records for %s", period)
	}
	defer rows.Close()
	return scanPgRecords(rows)
}

func scanPgRecords(rows pgx.Rows) ([]model.HistoricalRecord, error) {
	var records []model.HistoricalRecord
	for rows.Next() {
		var (
			rec        model.HistoricalRecord
			reportDate time.Time
			isin       *string
			docRef     *string
		)
		err := rows.Scan(
			&rec.ID, &rec.FundID, &rec.DisplayName, &rec.Provider, &isin,
			&rec.MaturityYear, &rec.SourceURL, &reportDate, &rec.Value,
			&rec.SourceKind, &docRef, &rec.ExtractedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if isin != nil {
			rec.IdentifierCode = *isin
		}
		if docRef != nil {
			rec.DocumentRef = *docRef
		}
		rec.Period = model.PeriodOf(reportDate)
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}
