package table

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rotisserie/eris"

	"github.com/sells-group/petition-cli/internal/model"
)

// ErrInvalidRange is returned when the minimum signature bound exceeds the
// maximum.
var ErrInvalidRange = eris.New("table: min signatures cannot be greater than max")

// Filter selects rows. Zero values mean "no filter" for every field.
type Filter struct {
	States        []string `json:"states,omitempty"`
	Departments   []string `json:"departments,omitempty"`
	MinSignatures *int64   `json:"min_signatures,omitempty"`
	MaxSignatures *int64   `json:"max_signatures,omitempty"`
	// Petitions matches petition titles exactly. When set, Search is ignored.
	Petitions []string `json:"petitions,omitempty"`
	// Search is a case-insensitive substring match on the petition title.
	Search string `json:"search,omitempty"`
	// Fuzzy switches Search to unicode-normalized fuzzy matching.
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// Validate checks the signature bounds.
func (f Filter) Validate() error {
	if f.MinSignatures != nil && *f.MinSignatures < 0 {
		return eris.New("table: min signatures cannot be negative")
	}
	if f.MinSignatures != nil && f.MaxSignatures != nil && *f.MinSignatures > *f.MaxSignatures {
		return ErrInvalidRange
	}
	return nil
}

// SearchIgnored reports whether both exact petitions and free text were
// given, in which case only the exact selection is applied.
func (f Filter) SearchIgnored() bool {
	return len(f.Petitions) > 0 && strings.TrimSpace(f.Search) != ""
}

// Match reports whether r passes every active criterion.
func (f Filter) Match(r *model.Row) bool {
	if len(f.States) > 0 && !slices.Contains(f.States, r.State) {
		return false
	}
	if len(f.Departments) > 0 && !slices.Contains(f.Departments, r.Department) {
		return false
	}
	if f.MinSignatures != nil || f.MaxSignatures != nil {
		if r.Signatures == nil {
			return false
		}
		if f.MinSignatures != nil && *r.Signatures < *f.MinSignatures {
			return false
		}
		if f.MaxSignatures != nil && *r.Signatures > *f.MaxSignatures {
			return false
		}
	}
	switch {
	case len(f.Petitions) > 0:
		return slices.Contains(f.Petitions, r.Action)
	case strings.TrimSpace(f.Search) != "":
		if r.Action == "" {
			return false
		}
		if f.Fuzzy {
			return fuzzy.MatchNormalizedFold(strings.TrimSpace(f.Search), r.Action)
		}
		return strings.Contains(strings.ToLower(r.Action), strings.ToLower(f.Search))
	}
	return true
}

// Apply returns the rows matching f, in their original order.
func Apply(rows []model.Row, f Filter) ([]model.Row, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]model.Row, 0, len(rows))
	for i := range rows {
		if f.Match(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// Suggest returns up to limit distinct petition titles that fuzzily match
// query, closest first. A limit of zero or less returns every match.
func Suggest(rows []model.Row, query string, limit int) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}
	titles := distinctTitles(rows)
	ranks := fuzzy.RankFindNormalizedFold(query, titles)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		return a.Distance - b.Distance
	})
	if limit <= 0 || limit > len(ranks) {
		limit = len(ranks)
	}
	out := make([]string, 0, limit)
	for _, r := range ranks {
		if len(out) == limit {
			break
		}
		out = append(out, r.Target)
	}
	return out
}

func distinctTitles(rows []model.Row) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for i := range rows {
		t := rows[i].Action
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
