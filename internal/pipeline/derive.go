package pipeline

import (
	"time"

	"github.com/sells-group/petition-cli/internal/model"
)

const day = 24 * time.Hour

// Derive computes the metrics for every petition as of ref. It is a pure
// function of its inputs: the same petitions and ref always give the same
// rows, in the same order.
func Derive(petitions []model.Petition, ref time.Time) []model.Row {
	ref = ref.UTC()
	rows := make([]model.Row, len(petitions))
	for i := range petitions {
		rows[i] = model.Row{
			Petition: petitions[i],
			Metrics:  DeriveMetrics(&petitions[i], ref),
		}
	}
	return rows
}

// DeriveMetrics computes the six closed-interval durations and the three
// waiting counters for one petition. Each field is evaluated on its own;
// no cross-field consistency is imposed.
func DeriveMetrics(p *model.Petition, ref time.Time) model.Metrics {
	return model.Metrics{
		OpenedToResponseThreshold:             DaysBetween(p.OpenedAt, p.ResponseThresholdReachedAt),
		OpenedToDebateThreshold:               DaysBetween(p.OpenedAt, p.DebateThresholdReachedAt),
		CreatedToOpened:                       DaysBetween(p.CreatedAt, p.OpenedAt),
		ResponseThresholdToGovernmentResponse: DaysBetween(p.ResponseThresholdReachedAt, p.GovernmentResponseAt),
		DebateThresholdToScheduled:            DaysBetween(p.DebateThresholdReachedAt, p.ScheduledDebateDate),
		ScheduledToOutcome:                    DaysBetween(p.ScheduledDebateDate, p.DebateOutcomeAt),

		WaitingForGovernmentResponse: WaitingDays(p.ResponseThresholdReachedAt, p.GovernmentResponseAt, ref),
		WaitingForScheduledDebate:    WaitingDays(p.DebateThresholdReachedAt, p.ScheduledDebateDate, ref),
		WaitingForDebateOutcome:      WaitingForOutcome(p.ScheduledDebateDate, p.DebateOutcomeAt, ref),
	}
}

// DaysBetween returns the whole days from start to end, or nil when either
// endpoint is missing or end precedes start.
func DaysBetween(start, end *time.Time) *int {
	if start == nil || end == nil {
		return nil
	}
	d := floorDays(end.UTC().Sub(start.UTC()))
	if d < 0 {
		return nil
	}
	return &d
}

// WaitingDays returns the whole days elapsed between since and ref while
// the next milestone (until) has not happened yet.
func WaitingDays(since, until *time.Time, ref time.Time) *int {
	if since == nil || until != nil {
		return nil
	}
	d := floorDays(ref.UTC().Sub(since.UTC()))
	if d < 0 {
		return nil
	}
	return &d
}

// WaitingForOutcome is WaitingDays for a scheduled debate: it only counts
// once the debate date is strictly in the past.
func WaitingForOutcome(scheduled, outcome *time.Time, ref time.Time) *int {
	if scheduled == nil || !scheduled.Before(ref) {
		return nil
	}
	return WaitingDays(scheduled, outcome, ref)
}

// floorDays rounds toward negative infinity, so 36 hours before is -2 days.
func floorDays(d time.Duration) int {
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}
