package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS fund_ytm_history`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	period := model.Period{Year: 2026, Month: time.March}
	value := 4.9

	mock.ExpectExec(`ON CONFLICT \(fund_id, report_date\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "sycomore_2030", "Sycoyield 2030", "sycomore",
			"FR001400MCQ6", 2030, "https://fr.sycomore-am.com/fonds/53",
			period.Date(), value, "document", "reports/sycomore_2030_report_202603.pdf",
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result := model.ExtractionResult{
		FundID:      "sycomore_2030",
		Period:      period,
		Value:       &value,
		SourceKind:  model.SourceDocument,
		DocumentRef: "reports/sycomore_2030_report_202603.pdf",
		ExtractedAt: time.Now().UTC(),
		Outcome:     model.OutcomeSuccess,
	}
	meta := fund.Config{
		FundID:         "sycomore_2030",
		Provider:       fund.ProviderSycomore,
		DisplayName:    "Sycoyield 2030",
		IdentifierCode: "FR001400MCQ6",
		MaturityYear:   2030,
		SourceURL:      "https://fr.sycomore-am.com/fonds/53",
		ValueSource:    model.SourceDocument,
	}
	require.NoError(t, s.Upsert(context.Background(), result, meta))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSkipsFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// No expectation set: a failed result must never touch the pool.
	failed := model.ExtractionResult{
		FundID:      "sycomore_2030",
		Period:      model.Period{Year: 2026, Month: time.March},
		Outcome:     model.OutcomeFailure,
		FailureKind: model.FailureDownload,
	}
	require.NoError(t, s.Upsert(context.Background(), failed, fund.Config{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	extractedAt := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	isin := "FR001400MCQ6"
	docRef := "reports/r.pdf"

	rows := pgxmock.NewRows([]string{
		"id", "fund_id", "display_name", "provider", "identifier_code",
		"maturity_year", "source_url", "report_date", "ytm", "source_kind",
		"document_ref", "extracted_at",
	}).
		AddRow("id-1", "sycomore_2030", "Sycoyield 2030", "sycomore", &isin,
			2030, "https://example.com", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			4.7, "document", &docRef, extractedAt).
		AddRow("id-2", "sycomore_2030", "Sycoyield 2030", "sycomore", &isin,
			2030, "https://example.com", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			4.9, "document", &docRef, extractedAt)

	mock.ExpectQuery(`FROM fund_ytm_history\s+WHERE fund_id = \$1\s+ORDER BY report_date ASC`).
		WithArgs("sycomore_2030").
		WillReturnRows(rows)

	records, err := s.History(context.Background(), "sycomore_2030")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.Period{Year: 2026, Month: time.February}, records[0].Period)
	assert.Equal(t, model.Period{Year: 2026, Month: time.March}, records[1].Period)
	assert.InDelta(t, 4.9, records[1].Value, 1e-9)
	assert.Equal(t, "FR001400MCQ6", records[1].IdentifierCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestPerFund(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	extractedAt := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "fund_id", "display_name", "provider", "identifier_code",
		"maturity_year", "source_url", "report_date", "ytm", "source_kind",
		"document_ref", "extracted_at",
	}).
		AddRow("id-1", "carmignac_2027", "Carmignac Crédit 2027", "carmignac", (*string)(nil),
			2027, "https://example.com", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			3.06, "live_markup", (*string)(nil), extractedAt)

	mock.ExpectQuery(`SELECT DISTINCT ON \(fund_id\)`).
		WillReturnRows(rows)

	records, err := s.LatestPerFund(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "carmignac_2027", records[0].FundID)
	assert.Empty(t, records[0].IdentifierCode)
	assert.Empty(t, records[0].DocumentRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}
