// Package ingest pages through the petitions listing and flattens each entry
// into a model.Petition.
package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/petition-cli/internal/model"
	"github.com/sells-group/petition-cli/pkg/parliament"
)

// ErrPageLimit marks a result cut short by Options.MaxPages.
var ErrPageLimit = eris.New("ingest: page limit reached")

// Options configures a Fetcher.
type Options struct {
	// State is the listing state selector. Default: "all".
	State string
	// Unassigned is the department recorded when a petition has none.
	// Default: model.UnassignedDepartment.
	Unassigned string
	// MaxPages stops paging after this many pages. 0 means no limit.
	MaxPages int
}

// Result is the outcome of one FetchAll call.
//
// Paging is best effort: a failed request ends the loop and whatever was
// accumulated is returned. Complete is false and Err holds the cause when
// that happens, so callers can tell a partial table from a full one.
type Result struct {
	Petitions []model.Petition
	Pages     int
	Requests  int
	Complete  bool
	Err       error
}

// Fetcher pages through the listing API.
type Fetcher struct {
	client parliament.Client
	opts   Options
}

// New creates a Fetcher over the given listing client.
func New(client parliament.Client, opts Options) *Fetcher {
	if opts.State == "" {
		opts.State = parliament.StateAll
	}
	if opts.Unassigned == "" {
		opts.Unassigned = model.UnassignedDepartment
	}
	return &Fetcher{client: client, opts: opts}
}

// FetchAll requests pages sequentially, starting at page 1, until a page
// has no next link or a request fails. It never returns a nil slice.
func (f *Fetcher) FetchAll(ctx context.Context) *Result {
	log := zap.L().With(zap.String("component", "ingest"))
	res := &Result{Petitions: []model.Petition{}}

	for page := 1; ; page++ {
		if f.opts.MaxPages > 0 && page > f.opts.MaxPages {
			log.Warn("page limit reached, stopping", zap.Int("max_pages", f.opts.MaxPages))
			res.Err = ErrPageLimit
			return res
		}

		res.Requests++
		resp, err := f.client.ListPage(ctx, page, f.opts.State)
		if err != nil {
			res.Err = err
			log.Warn("listing request failed, returning partial result",
				zap.Int("page", page),
				zap.Int("petitions", len(res.Petitions)),
				zap.Error(err),
			)
			return res
		}
		res.Pages++

		for _, p := range resp.Data {
			res.Petitions = append(res.Petitions, ToPetition(p, f.opts.Unassigned))
		}
		log.Debug("fetched listing page",
			zap.Int("page", page),
			zap.Int("entries", len(resp.Data)),
		)

		if !resp.Links.HasNext() {
			res.Complete = true
			log.Info("listing complete",
				zap.Int("pages", res.Pages),
				zap.Int("petitions", len(res.Petitions)),
			)
			return res
		}
	}
}

// ToPetition flattens a listing entry. Absent nested objects produce nil
// fields and unparseable timestamps become nil; nothing here fails.
func ToPetition(p parliament.Petition, unassigned string) model.Petition {
	a := p.Attributes
	out := model.Petition{
		ID:         p.ID,
		Action:     deref(a.Action),
		DetailURL:  detailURL(p.Links.Self),
		State:      deref(a.State),
		Signatures: a.SignatureCount,

		CreatedAt:                  model.ParseTimePtr(a.CreatedAt),
		OpenedAt:                   model.ParseTimePtr(a.OpenedAt),
		ClosedAt:                   model.ParseTimePtr(a.ClosedAt),
		ResponseThresholdReachedAt: model.ParseTimePtr(a.ResponseThresholdReachedAt),
		GovernmentResponseAt:       model.ParseTimePtr(a.GovernmentResponseAt),
		DebateThresholdReachedAt:   model.ParseTimePtr(a.DebateThresholdReachedAt),
		ScheduledDebateDate:        model.ParseTimePtr(a.ScheduledDebateDate),
		DebateOutcomeAt:            model.ParseTimePtr(a.DebateOutcomeAt),

		Department: unassigned,
	}

	if gr := a.GovernmentResponse; gr != nil {
		out.ResponseSummary = nonBlank(gr.Summary)
	}
	if d := a.Debate; d != nil {
		out.DebateVideoURL = nonBlank(d.VideoURL)
		out.DebateTranscriptURL = nonBlank(d.TranscriptURL)
		out.DebateResearchURL = nonBlank(d.DebatePackURL)
	}
	if len(a.Departments) > 0 {
		if name := strings.TrimSpace(a.Departments[0].Name); name != "" {
			out.Department = name
		}
	}
	return out
}

// detailURL turns the JSON self link into the human-facing page URL.
func detailURL(self *string) *string {
	s := nonBlank(self)
	if s == nil {
		return nil
	}
	u := strings.TrimSuffix(*s, ".json")
	return &u
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
