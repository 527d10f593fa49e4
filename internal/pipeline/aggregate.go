package pipeline

import "github.com/sells-group/petition-cli/internal/model"

// AverageDays returns the mean interval in days between two milestones over
// the rows where both are present and the interval is not negative. It is
// computed on demand, so it works for any milestone pair and any subset.
// Returns nil when no row qualifies.
func AverageDays(rows []model.Row, start, end model.Milestone) *float64 {
	var sum, n int
	for i := range rows {
		d := DaysBetween(start.Of(&rows[i].Petition), end.Of(&rows[i].Petition))
		if d == nil {
			continue
		}
		sum += *d
		n++
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}

// Timeline is a named milestone pair used by the summary views.
type Timeline struct {
	Key   string
	Label string
	Start model.Milestone
	End   model.Milestone
}

// Timelines are the six average timelines shown on the key metrics view,
// matching the per-row durations.
var Timelines = []Timeline{
	{"opened_to_response_threshold", "Opened → Resp Thresh", model.MilestoneOpened, model.MilestoneResponseThresholdReached},
	{"opened_to_debate_threshold", "Opened → Deb Thresh", model.MilestoneOpened, model.MilestoneDebateThresholdReached},
	{"created_to_opened", "Created → Opened", model.MilestoneCreated, model.MilestoneOpened},
	{"response_threshold_to_government_response", "Resp Thresh → Gov Resp", model.MilestoneResponseThresholdReached, model.MilestoneGovernmentResponse},
	{"debate_threshold_to_scheduled", "Deb Thresh → Deb Sched", model.MilestoneDebateThresholdReached, model.MilestoneScheduledDebate},
	{"scheduled_to_outcome", "Deb Sched → Deb Outc", model.MilestoneScheduledDebate, model.MilestoneDebateOutcome},
}
