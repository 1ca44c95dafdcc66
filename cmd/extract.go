package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ytm-tracker/internal/model"
	"github.com/sells-group/ytm-tracker/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract YTM values for the registered funds",
	Long:  "Runs the acquisition pipeline for every registered fund (or one fund with --fund) and upserts successful values into the history store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dateStr, _ := cmd.Flags().GetString("date")
		fundID, _ := cmd.Flags().GetString("fund")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		parallel, _ := cmd.Flags().GetInt("parallel")
		if parallel <= 0 {
			parallel = cfg.Run.Parallelism
		}

		period := model.CurrentPeriod()
		if dateStr != "" {
			p, err := model.ParsePeriod(dateStr)
			if err != nil {
				return eris.Wrapf(err, "parse --date %q", dateStr)
			}
			period = p
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		extractors, err := buildExtractors(registry, fundID)
		if err != nil {
			return err
		}

		runner := pipeline.Runner{
			Retry:       retryPolicy(),
			Parallelism: parallel,
			DryRun:      dryRun,
		}
		if !dryRun {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			runner.Store = st
		}

		summary, err := runner.Run(ctx, extractors, period)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, summary.String())
		if summary.TotalFailure() {
			return eris.New("all extractions failed")
		}
		return nil
	},
}

func retryPolicy() pipeline.RetryPolicy {
	p := pipeline.DefaultRetryPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		p.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialBackoffSecs > 0 {
		p.InitialBackoff = time.Duration(cfg.Retry.InitialBackoffSecs) * time.Second
	}
	return p
}

func init() {
	extractCmd.Flags().String("date", "", "reporting period as YYYY-MM (default: current month)")
	extractCmd.Flags().String("fund", "", "extract a single fund by its identifier")
	extractCmd.Flags().Bool("dry-run", false, "extract without persisting results")
	extractCmd.Flags().Int("parallel", 0, "max concurrent extractions (default: config run.parallelism)")

	rootCmd.AddCommand(extractCmd)
}
