package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/petition-cli/internal/model"
	"github.com/sells-group/petition-cli/internal/table"
)

var (
	summaryFilters filterFlags
	summaryFormat  string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show petition activity counts and average timelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		snap, _, err := loadRows(cmd.Context(), cmd, &summaryFilters)
		if err != nil {
			return err
		}
		s := table.Summarize(snap.Rows)
		if done, err := writeStructured(os.Stdout, summaryFormat, s); done {
			return err
		}
		fmt.Printf("Last updated: %s\n\n", lastUpdated(snap.FetchedAt))
		formatSummary(os.Stdout, s)
		return nil
	},
}

func formatSummary(out io.Writer, s table.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, printer.Sprintf("Petitions\t%d", s.Petitions))
	_, _ = fmt.Fprintln(w, printer.Sprintf("Reached response threshold (%d)\t%d", model.ResponseThreshold, s.Counts.ResponseThresholdReached))
	_, _ = fmt.Fprintln(w, printer.Sprintf("Reached debate threshold (%d)\t%d", model.DebateThreshold, s.Counts.DebateThresholdReached))
	_, _ = fmt.Fprintln(w, printer.Sprintf("Open or closed\t%d", s.Counts.OpenOrClosed))
	_, _ = fmt.Fprintln(w, printer.Sprintf("Government responses\t%d", s.Counts.GovernmentResponses))
	_, _ = fmt.Fprintln(w, printer.Sprintf("Scheduled debates\t%d", s.Counts.ScheduledDebates))
	_, _ = fmt.Fprintln(w, printer.Sprintf("Debate outcomes\t%d", s.Counts.DebateOutcomes))
	_, _ = fmt.Fprintln(w, "\t")
	_, _ = fmt.Fprintln(w, "AVERAGE TIMELINE\tDAYS")
	_, _ = fmt.Fprintln(w, "----------------\t----")
	for _, tl := range s.Timelines {
		days := "n/a"
		if tl.Days != nil {
			days = printer.Sprintf("%.1f", *tl.Days)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", tl.Label, days)
	}
	_ = w.Flush()
}

func init() {
	summaryFilters.register(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(summaryCmd)
}
