// Package pipeline runs extractions across the fund registry, isolates
// per-fund failures, retries transient ones, and persists what succeeded.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ytm-tracker/internal/extractor"
	"github.com/sells-group/ytm-tracker/internal/model"
	"github.com/sells-group/ytm-tracker/internal/store"
)

// Runner executes a batch of extractors against one reporting period.
type Runner struct {
	Store store.Store
	Retry RetryPolicy
	// Parallelism bounds concurrent extractions. Values below 1 mean
	// sequential, which is also the polite default toward provider sites.
	Parallelism int
	// DryRun skips persistence; results are still extracted and summarized.
	DryRun bool
}

// Summary aggregates one run's results in registry order.
type Summary struct {
	Period  model.Period
	Results []model.ExtractionResult
}

// Succeeded counts successful extractions.
func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts failed extractions.
func (s Summary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// TotalFailure reports whether every fund in a non-empty run failed.
func (s Summary) TotalFailure() bool {
	return len(s.Results) > 0 && s.Succeeded() == 0
}

// String renders a per-fund report suitable for terminal output.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "period %s: %d succeeded, %d failed\n", s.Period, s.Succeeded(), s.Failed())
	for _, r := range s.Results {
		if r.Succeeded() {
			fmt.Fprintf(&b, "  %-24s ok    %.2f%%\n", r.FundID, *r.Value)
			continue
		}
		fmt.Fprintf(&b, "  %-24s FAIL  %s: %s\n", r.FundID, r.FailureKind, r.FailureDetail)
	}
	return b.String()
}

// Run extracts every fund for the period and persists successes. One fund's
// failure, panic included, never stops the others; Run only returns an error
// when the context is cancelled or persistence itself breaks.
func (r *Runner) Run(ctx context.Context, extractors []extractor.Extractor, period model.Period) (Summary, error) {
	if period.IsZero() {
		period = model.CurrentPeriod()
	}

	results := make([]model.ExtractionResult, len(extractors))

	g, gctx := errgroup.WithContext(ctx)
	limit := r.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, ex := range extractors {
		g.Go(func() error {
			// Cancellation stops new funds from starting; in-flight ones finish.
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.Retry.run(gctx, ex.Fund().FundID, func(ctx context.Context) model.ExtractionResult {
				return r.extractSafely(ctx, ex, period)
			})
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{Period: period, Results: results}, eris.Wrap(err, "run cancelled")
	}

	summary := Summary{Period: period, Results: results}
	if r.DryRun {
		zap.L().Info("dry run, skipping persistence",
			zap.Int("succeeded", summary.Succeeded()),
			zap.Int("failed", summary.Failed()),
		)
		return summary, nil
	}

	for i, res := range results {
		if !res.Succeeded() {
			continue
		}
		if err := r.Store.Upsert(ctx, res, extractors[i].Fund()); err != nil {
			return summary, eris.Wrapf(err, "persist result for %s", res.FundID)
		}
	}
	return summary, nil
}

// extractSafely shields the run from a panicking extractor. A panic is
// recorded as an internal failure for that fund alone.
func (r *Runner) extractSafely(ctx context.Context, ex extractor.Extractor, period model.Period) (res model.ExtractionResult) {
	cfg := ex.Fund()
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("extractor panicked",
				zap.String("fund", cfg.FundID),
				zap.Any("panic", rec),
			)
			res = model.ExtractionResult{
				FundID:        cfg.FundID,
				Period:        period,
				SourceKind:    cfg.ValueSource,
				Outcome:       model.OutcomeFailure,
				FailureKind:   model.FailureInternal,
				FailureDetail: fmt.Sprintf("panic: %v", rec),
			}
		}
	}()
	return ex.Extract(ctx, period)
}
