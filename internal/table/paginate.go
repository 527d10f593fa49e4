package table

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/petition-cli/internal/model"
)

// DefaultPageSize is the number of rows per page when none is given.
const DefaultPageSize = 50

// ErrPageOutOfRange is returned for a page number outside 1..TotalPages.
var ErrPageOutOfRange = eris.New("table: page out of range")

// Page is one slice of a sorted, filtered table.
type Page struct {
	Rows       []model.Row `json:"rows"`
	Number     int         `json:"page"`
	Size       int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
	Total      int         `json:"total"`
}

// TotalPages is max(1, ceil(n/size)).
func TotalPages(n, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Paginate returns the 1-indexed page of rows. An empty table has exactly
// one, empty, page.
func Paginate(rows []model.Row, page, size int) (*Page, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := TotalPages(len(rows), size)
	if page < 1 || page > total {
		return nil, eris.Wrapf(ErrPageOutOfRange, "page must be between 1 and %d, got %d", total, page)
	}

	start := (page - 1) * size
	end := min(start+size, len(rows))
	out := make([]model.Row, end-start)
	copy(out, rows[start:end])

	return &Page{
		Rows:       out,
		Number:     page,
		Size:       size,
		TotalPages: total,
		Total:      len(rows),
	}, nil
}
