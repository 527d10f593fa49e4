package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/petition-cli/internal/ingest"
	"github.com/sells-group/petition-cli/internal/model"
)

// Source produces the flattened petitions for one build.
type Source interface {
	FetchAll(ctx context.Context) *ingest.Result
}

// Table is the derived table produced by one Run. It is never mutated after
// Run returns; a refresh builds a new one.
type Table struct {
	Rows      []model.Row
	FetchedAt time.Time
	Pages     int
	Requests  int
	// Complete is false when paging stopped early; Err holds the cause.
	Complete bool
	Err      error
}

// Pipeline runs fetch then derive.
type Pipeline struct {
	source Source
	now    func() time.Time
}

// New creates a Pipeline. now supplies the reference instant for waiting
// counters; nil means time.Now.
func New(source Source, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{source: source, now: now}
}

// Run fetches every page and derives the metrics for the result. Fetch
// failures are reported on the Table, not returned.
func (p *Pipeline) Run(ctx context.Context) *Table {
	log := zap.L().With(zap.String("component", "pipeline"))
	start := time.Now()

	res := p.source.FetchAll(ctx)
	ref := p.now().UTC()
	rows := Derive(res.Petitions, ref)

	log.Info("pipeline: table built",
		zap.Int("rows", len(rows)),
		zap.Int("pages", res.Pages),
		zap.Bool("complete", res.Complete),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Table{
		Rows:      rows,
		FetchedAt: ref,
		Pages:     res.Pages,
		Requests:  res.Requests,
		Complete:  res.Complete,
		Err:       res.Err,
	}
}
