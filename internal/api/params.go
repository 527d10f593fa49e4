package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/petition-cli/internal/table"
)

// parseFilter reads filter parameters. state, department and petition may
// repeat; state and department also accept comma-separated lists.
func parseFilter(q url.Values) (table.Filter, error) {
	f := table.Filter{
		States:      splitList(q["state"]),
		Departments: multi(q["department"]),
		Petitions:   multi(q["petition"]),
		Search:      q.Get("q"),
	}

	var err error
	if f.MinSignatures, err = int64Param(q.Get("min_signatures")); err != nil {
		return f, eris.Wrap(err, "invalid min_signatures")
	}
	if f.MaxSignatures, err = int64Param(q.Get("max_signatures")); err != nil {
		return f, eris.Wrap(err, "invalid max_signatures")
	}
	if v := q.Get("fuzzy"); v != "" {
		if f.Fuzzy, err = strconv.ParseBool(v); err != nil {
			return f, eris.Wrap(err, "invalid fuzzy")
		}
	}
	return f, nil
}

// splitList flattens repeated and comma-separated values.
func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// multi keeps repeated values whole. Department names and petition titles
// may contain commas.
func multi(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func int64Param(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
