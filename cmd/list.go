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
	listFilters  filterFlags
	listSort     string
	listAsc      bool
	listPage     int
	listPageSize int
	listFormat   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show one page of the filtered, sorted petition table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		size := listPageSize
		if size <= 0 {
			size = cfg.Table.PageSize
		}
		snap, _, err := loadRows(cmd.Context(), cmd, &listFilters)
		if err != nil {
			return err
		}
		rows, err := table.Sort(snap.Rows, listSort, !listAsc)
		if err != nil {
			return err
		}
		page, err := table.Paginate(rows, listPage, size)
		if err != nil {
			return err
		}
		if done, err := writeStructured(os.Stdout, listFormat, page); done {
			return err
		}
		formatPage(os.Stdout, page)
		return nil
	},
}

func formatPage(out io.Writer, p *table.Page) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPETITION\tSTATE\tSIGNATURES\tDEPARTMENT\tOPENED")
	_, _ = fmt.Fprintln(w, "--\t--------\t-----\t----------\t----------\t------")
	for i := range p.Rows {
		r := &p.Rows[i]
		sigs := ""
		if r.Signatures != nil {
			sigs = printer.Sprintf("%d", *r.Signatures)
		}
		opened := ""
		if r.OpenedAt != nil {
			opened = r.OpenedAt.Format(displayDate)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			truncate(r.Action, 50),
			r.State,
			sigs,
			truncate(r.Department, 30),
			opened,
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintln(out, printer.Sprintf("\nPage %d of %d (%d petitions)", p.Number, p.TotalPages, p.Total))
}

func init() {
	listFilters.register(listCmd)
	listCmd.Flags().StringVar(&listSort, "sort", table.SignaturesKey, "column to sort by")
	listCmd.Flags().BoolVar(&listAsc, "asc", false, "sort ascending")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "rows per page (default from config)")
	listCmd.Flags().StringVar(&listFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(listCmd)
}
