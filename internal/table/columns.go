// Package table implements the query layer over derived petition rows:
// filtering, sorting, pagination, exports, charts and summaries. Every
// function is pure and returns new slices; input rows are never modified.
package table

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/petition-cli/internal/model"
)

// Kind is the value type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindTime
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindTime:
		return "time"
	case KindLink:
		return "link"
	default:
		return "text"
	}
}

// Column describes one table column. Exactly one accessor is set,
// matching Kind.
type Column struct {
	Key    string
	Header string
	Kind   Kind
	// Metric marks numeric columns that can be charted.
	Metric bool

	text func(*model.Row) *string
	num  func(*model.Row) *int64
	when func(*model.Row) *time.Time
}

// Sortable reports whether rows can be ordered by this column.
func (c *Column) Sortable() bool { return c.Kind != KindLink }

// Text returns the column's string value, or nil.
func (c *Column) Text(r *model.Row) *string {
	if c.text == nil {
		return nil
	}
	return c.text(r)
}

// Int returns the column's numeric value, or nil.
func (c *Column) Int(r *model.Row) *int64 {
	if c.num == nil {
		return nil
	}
	return c.num(r)
}

// Time returns the column's timestamp, or nil.
func (c *Column) Time(r *model.Row) *time.Time {
	if c.when == nil {
		return nil
	}
	return c.when(r)
}

// Format renders the value for text exports. Missing values are empty.
func (c *Column) Format(r *model.Row) string {
	switch c.Kind {
	case KindInt:
		if v := c.Int(r); v != nil {
			return strconv.FormatInt(*v, 10)
		}
	case KindTime:
		if v := c.Time(r); v != nil {
			return v.UTC().Format(time.RFC3339)
		}
	default:
		if v := c.Text(r); v != nil {
			return *v
		}
	}
	return ""
}

func textCol(key, header string, f func(*model.Row) string) Column {
	return Column{Key: key, Header: header, Kind: KindText, text: func(r *model.Row) *string {
		s := f(r)
		return &s
	}}
}

func optTextCol(key, header string, kind Kind, f func(*model.Row) *string) Column {
	return Column{Key: key, Header: header, Kind: kind, text: f}
}

func timeCol(m model.Milestone, header string) Column {
	return Column{Key: string(m), Header: header, Kind: KindTime, when: func(r *model.Row) *time.Time {
		return m.Of(&r.Petition)
	}}
}

func daysCol(key, header string, f func(*model.Row) *int) Column {
	return Column{Key: key, Header: header, Kind: KindInt, Metric: true, num: func(r *model.Row) *int64 {
		d := f(r)
		if d == nil {
			return nil
		}
		v := int64(*d)
		return &v
	}}
}

// SignaturesKey is the default sort and chart column.
const SignaturesKey = "signatures"

// Columns lists every table column in display order.
var Columns = []Column{
	{Key: "id", Header: "ID", Kind: KindInt, num: func(r *model.Row) *int64 { return &r.ID }},
	textCol("petition", "Petition", func(r *model.Row) string { return r.Action }),
	optTextCol("link", "Link", KindLink, func(r *model.Row) *string { return r.DetailURL }),
	textCol("state", "State", func(r *model.Row) string { return r.State }),
	{Key: SignaturesKey, Header: "Signatures", Kind: KindInt, Metric: true, num: func(r *model.Row) *int64 { return r.Signatures }},
	timeCol(model.MilestoneCreated, "Created at"),
	timeCol(model.MilestoneOpened, "Opened at"),
	timeCol(model.MilestoneClosed, "Closed at"),
	timeCol(model.MilestoneResponseThresholdReached, "Response threshold reached at"),
	timeCol(model.MilestoneGovernmentResponse, "Government response at"),
	timeCol(model.MilestoneDebateThresholdReached, "Debate threshold reached at"),
	timeCol(model.MilestoneScheduledDebate, "Scheduled debate date"),
	timeCol(model.MilestoneDebateOutcome, "Debate outcome at"),
	optTextCol("response", "Response", KindText, func(r *model.Row) *string { return r.ResponseSummary }),
	optTextCol("debate_video", "Debate video", KindLink, func(r *model.Row) *string { return r.DebateVideoURL }),
	optTextCol("debate_transcript", "Debate transcript", KindLink, func(r *model.Row) *string { return r.DebateTranscriptURL }),
	optTextCol("debate_research", "Debate research", KindLink, func(r *model.Row) *string { return r.DebateResearchURL }),
	textCol("department", "Department", func(r *model.Row) string { return r.Department }),
	daysCol("opened_to_response_threshold_days", "Opened → Resp Thresh, days", func(r *model.Row) *int { return r.OpenedToResponseThreshold }),
	daysCol("opened_to_debate_threshold_days", "Opened → Deb Thresh, days", func(r *model.Row) *int { return r.OpenedToDebateThreshold }),
	daysCol("created_to_opened_days", "Created → Opened, days", func(r *model.Row) *int { return r.CreatedToOpened }),
	daysCol("response_threshold_to_government_response_days", "Resp Thresh → Gov Resp, days", func(r *model.Row) *int { return r.ResponseThresholdToGovernmentResponse }),
	daysCol("debate_threshold_to_scheduled_days", "Deb Thresh → Deb Sched, days", func(r *model.Row) *int { return r.DebateThresholdToScheduled }),
	daysCol("scheduled_to_outcome_days", "Deb Sched → Deb Outcome, days", func(r *model.Row) *int { return r.ScheduledToOutcome }),
	daysCol("waiting_for_government_response_days", "Waiting for Gov Resp, days", func(r *model.Row) *int { return r.WaitingForGovernmentResponse }),
	daysCol("waiting_for_scheduled_debate_days", "Waiting for Deb Sched, days", func(r *model.Row) *int { return r.WaitingForScheduledDebate }),
	daysCol("waiting_for_debate_outcome_days", "Waiting for Deb Outcome, days", func(r *model.Row) *int { return r.WaitingForDebateOutcome }),
}

// Lookup finds a column by key or, case-insensitively, by header.
func Lookup(name string) (*Column, bool) {
	for i := range Columns {
		if Columns[i].Key == name {
			return &Columns[i], true
		}
	}
	for i := range Columns {
		if strings.EqualFold(Columns[i].Header, name) {
			return &Columns[i], true
		}
	}
	return nil, false
}

// MetricColumns returns the chartable columns.
func MetricColumns() []*Column {
	var out []*Column
	for i := range Columns {
		if Columns[i].Metric {
			out = append(out, &Columns[i])
		}
	}
	return out
}
