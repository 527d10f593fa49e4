package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/petition-cli/internal/store"
)

var (
	runsLimit  int
	runsFormat string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent table refreshes",
	Long:  "Lists refresh log entries. Point store.database_url at a file or a postgres database to keep the log across processes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.New(ctx, store.Config{Driver: cfg.Store.Driver, DatabaseURL: cfg.Store.DatabaseURL})
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.List(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if done, err := writeStructured(os.Stdout, runsFormat, runs); done {
			return err
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func formatRunsList(out io.Writer, runs []store.RefreshEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTRIGGER\tSTATUS\tSTARTED\tDURATION\tPAGES\tPETITIONS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-------\t--------\t-----\t---------\t-----")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Trigger,
			r.Status,
			r.StartedAt.Local().Format(displayDate+" 15:04"),
			dur,
			r.Pages,
			printer.Sprintf("%d", r.Petitions),
			truncate(r.Error, 40),
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show")
	runsCmd.Flags().StringVar(&runsFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(runsCmd)
}
