package table

import (
	"strings"

	"github.com/sells-group/petition-cli/internal/model"
	"github.com/sells-group/petition-cli/internal/pipeline"
)

// Counts are the petition activity totals on the key metrics view.
type Counts struct {
	ResponseThresholdReached int `json:"response_threshold_reached" yaml:"response_threshold_reached"`
	DebateThresholdReached   int `json:"debate_threshold_reached" yaml:"debate_threshold_reached"`
	OpenOrClosed             int `json:"open_or_closed" yaml:"open_or_closed"`
	GovernmentResponses      int `json:"government_responses" yaml:"government_responses"`
	ScheduledDebates         int `json:"scheduled_debates" yaml:"scheduled_debates"`
	DebateOutcomes           int `json:"debate_outcomes" yaml:"debate_outcomes"`
}

// TimelineAverage is the mean of one milestone interval.
type TimelineAverage struct {
	Key   string   `json:"key" yaml:"key"`
	Label string   `json:"label" yaml:"label"`
	Days  *float64 `json:"days" yaml:"days"`
}

// Summary is the key metrics view for a set of rows.
type Summary struct {
	Petitions int               `json:"petitions" yaml:"petitions"`
	Counts    Counts            `json:"counts" yaml:"counts"`
	Timelines []TimelineAverage `json:"timelines" yaml:"timelines"`
}

// Summarize computes activity counts and the average timelines.
func Summarize(rows []model.Row) Summary {
	s := Summary{Petitions: len(rows)}
	for i := range rows {
		r := &rows[i]
		if r.ResponseThresholdReachedAt != nil {
			s.Counts.ResponseThresholdReached++
		}
		if r.DebateThresholdReachedAt != nil {
			s.Counts.DebateThresholdReached++
		}
		if st := strings.ToLower(r.State); st == "open" || st == "closed" {
			s.Counts.OpenOrClosed++
		}
		if r.GovernmentResponseAt != nil {
			s.Counts.GovernmentResponses++
		}
		if r.ScheduledDebateDate != nil {
			s.Counts.ScheduledDebates++
		}
		if r.DebateOutcomeAt != nil {
			s.Counts.DebateOutcomes++
		}
	}

	s.Timelines = make([]TimelineAverage, 0, len(pipeline.Timelines))
	for _, tl := range pipeline.Timelines {
		s.Timelines = append(s.Timelines, TimelineAverage{
			Key:   tl.Key,
			Label: tl.Label,
			Days:  pipeline.AverageDays(rows, tl.Start, tl.End),
		})
	}
	return s
}
