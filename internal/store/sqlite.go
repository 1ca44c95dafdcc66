package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS fund_ytm_history (
	id              TEXT PRIMARY KEY,
	fund_id         TEXT NOT NULL,
	display_name    TEXT NOT NULL,
	provider        TEXT NOT NULL,
	identifier_code TEXT,
	maturity_year   INTEGER NOT NULL,
	source_url      TEXT NOT NULL,
	report_date     TEXT NOT NULL,
	ytm             REAL NOT NULL,
	source_kind     TEXT NOT NULL,
	document_ref    TEXT,
	extracted_at    DATETIME NOT NULL,
	UNIQUE(fund_id, report_date)
);

CREATE INDEX IF NOT EXISTS idx_history_fund_date ON fund_ytm_history(fund_id, report_date);
CREATE INDEX IF NOT EXISTS idx_history_report_date ON fund_ytm_history(report_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, result model.ExtractionResult, meta fund.Config) error {
	if !persistable(result) {
		return nil
	}

	// ON CONFLICT keeps the original row id so the record's identity is
	// stable across re-runs of the same period.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fund_ytm_history (
			id, fund_id, display_name, provider, identifier_code,
			maturity_year, source_url, report_date, ytm, source_kind,
			document_ref, extracted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fund_id, report_date) DO UPDATE SET
			display_name = excluded.display_name,
			provider = excluded.provider,
			identifier_code = excluded.identifier_code,
			maturity_year = excluded.maturity_year,
			source_url = excluded.source_url,
			ytm = excluded.ytm,
			source_kind = excluded.source_kind,
			document_ref = excluded.document_ref,
			extracted_at = excluded.extracted_at`,
		uuid.New().String(), result.FundID, meta.DisplayName, string(meta.Provider),
		meta.IdentifierCode, meta.MaturityYear, meta.SourceURL,
		result.Period.String(), *result.Value, string(result.SourceKind),
		result.DocumentRef, result.ExtractedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert %s %s", result.FundID, result.Period)
}

const sqliteRecordCols = `id, fund_id, display_name, provider, identifier_code,
	maturity_year, source_url, report_date, ytm, source_kind, document_ref, extracted_at`

func (s *SQLiteStore) LatestPerFund(ctx context.Context) ([]model.HistoricalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteRecordCols+`
		FROM fund_ytm_history h
		INNER JOIN (
			SELECT fund_id AS fid, MAX(report_date) AS max_date
			FROM fund_ytm_history
			GROUP BY fund_id
		) latest ON h.fund_id = latest.fid AND h.report_date = latest.max_date
		ORDER BY h.maturity_year, h.display_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest per fund")
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) History(ctx context.Context, fundID string) ([]model.HistoricalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteRecordCols+`
		FROM fund_ytm_history
		WHERE fund_id = ?
		ORDER BY report_date ASC`,
		fundID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: history %s", fundID)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) RecordsForPeriod(ctx context.Context, period model.Period) ([]model.HistoricalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteRecordCols+`
		FROM fund_ytm_history
		WHERE report_date = ?
		ORDER BY maturity_year, display_name`,
		period.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: records for %s", period)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]model.HistoricalRecord, error) {
	var records []model.HistoricalRecord
	for rows.Next() {
		var (
			rec        model.HistoricalRecord
			reportDate string
			isin       sql.NullString
			docRef     sql.NullString
		)
		err := rows.Scan(
			&rec.ID, &rec.FundID, &rec.DisplayName, &rec.Provider, &isin,
			&rec.MaturityYear, &rec.SourceURL, &reportDate, &rec.Value,
			&rec.SourceKind, &docRef, &rec.ExtractedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		rec.IdentifierCode = isin.String
		rec.DocumentRef = docRef.String
		rec.Period, err = model.ParsePeriod(reportDate)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: bad report_date %q", reportDate)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}
