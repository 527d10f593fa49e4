package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/petition-cli/internal/service"
	"github.com/sells-group/petition-cli/internal/table"
)

// displayDate is the dd/mm/YYYY form used in terminal output.
const displayDate = "02/01/2006"

// printer groups thousands the British way.
var printer = message.NewPrinter(language.BritishEnglish)

// filterFlags are the table filters shared by the query commands.
type filterFlags struct {
	states      []string
	departments []string
	petitions   []string
	minSigs     int64
	maxSigs     int64
	search      string
	fuzzy       bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringSliceVar(&f.states, "state", nil, "keep petitions in these states (repeatable or comma-separated)")
	fl.StringArrayVar(&f.departments, "department", nil, "keep petitions assigned to this department (repeatable)")
	fl.StringArrayVar(&f.petitions, "petition", nil, "keep petitions with exactly this title (repeatable, overrides --search)")
	fl.Int64Var(&f.minSigs, "min-signatures", 0, "minimum signature count")
	fl.Int64Var(&f.maxSigs, "max-signatures", 0, "maximum signature count")
	fl.StringVarP(&f.search, "search", "q", "", "case-insensitive title search")
	fl.BoolVar(&f.fuzzy, "fuzzy", false, "match --search fuzzily instead of by substring")
}

// filter builds a table.Filter. Signature bounds are only active when the
// flag was set.
func (f *filterFlags) filter(cmd *cobra.Command) table.Filter {
	out := table.Filter{
		States:      f.states,
		Departments: f.departments,
		Petitions:   f.petitions,
		Search:      f.search,
		Fuzzy:       f.fuzzy,
	}
	if cmd.Flags().Changed("min-signatures") {
		v := f.minSigs
		out.MinSignatures = &v
	}
	if cmd.Flags().Changed("max-signatures") {
		v := f.maxSigs
		out.MaxSignatures = &v
	}
	return out
}

// loadRows builds a fresh snapshot and applies the command's filter.
func loadRows(ctx context.Context, cmd *cobra.Command, ff *filterFlags) (*service.Snapshot, table.Filter, error) {
	f := ff.filter(cmd)
	if err := f.Validate(); err != nil {
		return nil, f, err
	}
	if f.SearchIgnored() {
		fmt.Fprintln(os.Stderr, "warning: --petition and --search both given; only --petition is used")
	}

	env := initEnv(ctx, cfg)
	defer env.Close()

	snap, err := env.Service.Refresh(ctx)
	if err != nil {
		return nil, f, eris.Wrap(err, "load petitions")
	}
	if !snap.Complete {
		fmt.Fprintf(os.Stderr, "warning: table is partial after %d pages: %v\n", snap.Pages, snap.Err)
	}
	rows, err := table.Apply(snap.Rows, f)
	if err != nil {
		return nil, f, err
	}
	filtered := *snap
	filtered.Rows = rows
	return &filtered, f, nil
}

// writeStructured encodes v as json or yaml. It reports false for any
// other format so the caller can render a table instead.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case "", "table":
		return false, nil
	default:
		return true, eris.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func lastUpdated(t time.Time) string {
	return t.Local().Format(displayDate + " 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
