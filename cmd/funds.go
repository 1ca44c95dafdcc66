package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/ytm-tracker/internal/fund"
)

var fundsCmd = &cobra.Command{
	Use:   "funds",
	Short: "List the registered funds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		if registry.Len() == 0 {
			fmt.Fprintln(os.Stderr, "No funds registered.")
			return nil
		}
		formatFunds(os.Stdout, registry.All())
		return nil
	},
}

func formatFunds(w io.Writer, funds []fund.Config) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUND\tPROVIDER\tMATURITY\tSOURCE\tISIN")
	for _, f := range funds {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			f.FundID, f.Provider, f.MaturityYear, f.ValueSource, f.IdentifierCode)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	rootCmd.AddCommand(fundsCmd)
}
