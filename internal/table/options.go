package table

import (
	"slices"

	"github.com/sells-group/petition-cli/internal/model"
)

// FilterOptions are the choices offered for each filter, computed over the
// whole table.
type FilterOptions struct {
	States        []string `json:"states" yaml:"states"`
	Departments   []string `json:"departments" yaml:"departments"`
	MinSignatures int64    `json:"min_signatures" yaml:"min_signatures"`
	MaxSignatures int64    `json:"max_signatures" yaml:"max_signatures"`
	Petitions     []string `json:"petitions" yaml:"petitions"`
}

// Options returns sorted distinct states and departments, the signature
// bounds (0, 0 when every count is missing) and the distinct petition
// titles in table order.
func Options(rows []model.Row) FilterOptions {
	states := map[string]struct{}{}
	departments := map[string]struct{}{}
	opts := FilterOptions{}
	seenSig := false

	for i := range rows {
		r := &rows[i]
		if r.State != "" {
			states[r.State] = struct{}{}
		}
		if r.Department != "" {
			departments[r.Department] = struct{}{}
		}
		if r.Signatures != nil {
			s := *r.Signatures
			if !seenSig || s < opts.MinSignatures {
				opts.MinSignatures = s
			}
			if !seenSig || s > opts.MaxSignatures {
				opts.MaxSignatures = s
			}
			seenSig = true
		}
	}

	opts.States = sortedKeys(states)
	opts.Departments = sortedKeys(departments)
	opts.Petitions = distinctTitles(rows)
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
