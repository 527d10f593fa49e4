package table

import (
	"cmp"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/petition-cli/internal/model"
)

// ErrUnknownColumn is returned for a sort or chart key that names no
// suitable column.
var ErrUnknownColumn = eris.New("table: unknown column")

// Sort returns a copy of rows ordered by the named column. The sort is
// stable and rows with a missing value always come last, in either
// direction.
func Sort(rows []model.Row, key string, desc bool) ([]model.Row, error) {
	col, ok := Lookup(key)
	if !ok || !col.Sortable() {
		return nil, eris.Wrapf(ErrUnknownColumn, "sort by %q", key)
	}

	out := slices.Clone(rows)
	if out == nil {
		out = []model.Row{}
	}
	slices.SortStableFunc(out, func(a, b model.Row) int {
		return compareRows(col, &a, &b, desc)
	})
	return out, nil
}

func compareRows(col *Column, a, b *model.Row, desc bool) int {
	var (
		c          int
		aNil, bNil bool
	)
	switch col.Kind {
	case KindInt:
		av, bv := col.Int(a), col.Int(b)
		aNil, bNil = av == nil, bv == nil
		if !aNil && !bNil {
			c = cmp.Compare(*av, *bv)
		}
	case KindTime:
		av, bv := col.Time(a), col.Time(b)
		aNil, bNil = av == nil, bv == nil
		if !aNil && !bNil {
			c = av.Compare(*bv)
		}
	default:
		av, bv := col.Text(a), col.Text(b)
		aNil, bNil = av == nil, bv == nil
		if !aNil && !bNil {
			c = strings.Compare(*av, *bv)
		}
	}

	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return 1
	case bNil:
		return -1
	case desc:
		return -c
	default:
		return c
	}
}
