// Package store persists extraction results as an append-only history with
// one record per (fund, reporting period).
package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/model"
)

// Store is the historical store interface. Upsert is atomic per
// (fund_id, report_date) key; concurrent upserts for the same key resolve to
// last-write-wins with no torn record visible to readers.
type Store interface {
	// Upsert writes or replaces the record for the result's (fund, period).
	// Failed results are not persisted: a warning is logged and nothing is
	// written, so a stored record always carries a usable value.
	Upsert(ctx context.Context, result model.ExtractionResult, meta fund.Config) error

	// LatestPerFund returns one record per fund, at its maximum period.
	LatestPerFund(ctx context.Context) ([]model.HistoricalRecord, error)

	// History returns a fund's records ordered by period ascending.
	History(ctx context.Context, fundID string) ([]model.HistoricalRecord, error)

	// RecordsForPeriod returns all records for one reporting period.
	RecordsForPeriod(ctx context.Context, period model.Period) ([]model.HistoricalRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// persistable filters results worth writing, logging the skip for failures.
// Shared by every backend so the invariant cannot drift.
func persistable(result model.ExtractionResult) bool {
	if result.Outcome != model.OutcomeSuccess || result.Value == nil {
		zap.L().Warn("store: skipping non-success result",
			zap.String("fund", result.FundID),
			zap.String("period", result.Period.String()),
			zap.String("failure_kind", string(result.FailureKind)),
		)
		return false
	}
	return true
}
