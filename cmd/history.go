package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ytm-tracker/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored YTM history",
	Long:  "Lists stored yield-to-maturity records: one fund's full history, one period across funds, or the latest value per fund.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		fundID, _ := cmd.Flags().GetString("fund")
		periodStr, _ := cmd.Flags().GetString("period")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var records []model.HistoricalRecord
		switch {
		case fundID != "":
			records, err = st.History(ctx, fundID)
		case periodStr != "":
			var period model.Period
			period, err = model.ParsePeriod(periodStr)
			if err != nil {
				return eris.Wrapf(err, "parse --period %q", periodStr)
			}
			records, err = st.RecordsForPeriod(ctx, period)
		default:
			records, err = st.LatestPerFund(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "history")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}
		formatRecords(os.Stdout, records)
		return nil
	},
}

func formatRecords(w io.Writer, records []model.HistoricalRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUND\tPERIOD\tYTM\tSOURCE\tEXTRACTED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%.2f%%\t%s\t%s\n",
			r.FundID, r.Period, r.Value, r.SourceKind,
			r.ExtractedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	historyCmd.Flags().String("fund", "", "show one fund's history, period ascending")
	historyCmd.Flags().String("period", "", "show all funds for one period (YYYY-MM)")
	historyCmd.Flags().Bool("latest", false, "show the latest record per fund (default)")

	rootCmd.AddCommand(historyCmd)
}
