package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/petition-cli/internal/table"
)

var (
	topFilters filterFlags
	topMetric  string
	topN       int
	topAsc     bool
	topFormat  string
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank petitions by a metric",
	Long:  "Ranks petitions by signatures or one of the day-count metrics and prints the top entries with the mean over every petition that has a value.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		n := topN
		if n <= 0 {
			n = cfg.Table.TopN
		}
		snap, _, err := loadRows(cmd.Context(), cmd, &topFilters)
		if err != nil {
			return err
		}
		chart, err := table.TopN(snap.Rows, topMetric, n, !topAsc)
		if err != nil {
			return err
		}
		if done, err := writeStructured(os.Stdout, topFormat, chart); done {
			return err
		}
		formatChart(os.Stdout, chart)
		return nil
	},
}

func formatChart(out io.Writer, c *table.Chart) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "#\tID\tPETITION\t%s\n", c.Header)
	_, _ = fmt.Fprintln(w, "-\t--\t--------\t-----")
	for i, b := range c.Bars {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", i+1, b.ID, truncate(b.Petition, 60), printer.Sprintf("%d", b.Value))
	}
	_ = w.Flush()

	if c.Mean != nil {
		_, _ = fmt.Fprintln(out, printer.Sprintf("\nAverage: %d", int64(*c.Mean)))
	}
}

func init() {
	topFilters.register(topCmd)
	topCmd.Flags().StringVar(&topMetric, "metric", table.SignaturesKey, "metric column key or header")
	topCmd.Flags().IntVarP(&topN, "top", "n", 0, "number of petitions to show (default from config)")
	topCmd.Flags().BoolVar(&topAsc, "asc", false, "rank smallest first")
	topCmd.Flags().StringVar(&topFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(topCmd)
}
