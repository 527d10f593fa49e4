package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Milestone names one lifecycle timestamp on a petition.
type Milestone string

const (
	MilestoneCreated                  Milestone = "created_at"
	MilestoneOpened                   Milestone = "opened_at"
	MilestoneClosed                   Milestone = "closed_at"
	MilestoneResponseThresholdReached Milestone = "response_threshold_reached_at"
	MilestoneGovernmentResponse       Milestone = "government_response_at"
	MilestoneDebateThresholdReached   Milestone = "debate_threshold_reached_at"
	MilestoneScheduledDebate          Milestone = "scheduled_debate_date"
	MilestoneDebateOutcome            Milestone = "debate_outcome_at"
)

// Milestones lists every milestone in lifecycle order.
var Milestones = []Milestone{
	MilestoneCreated,
	MilestoneOpened,
	MilestoneClosed,
	MilestoneResponseThresholdReached,
	MilestoneGovernmentResponse,
	MilestoneDebateThresholdReached,
	MilestoneScheduledDebate,
	MilestoneDebateOutcome,
}

// Of returns the milestone's timestamp on p, or nil when it is absent.
func (m Milestone) Of(p *Petition) *time.Time {
	switch m {
	case MilestoneCreated:
		return p.CreatedAt
	case MilestoneOpened:
		return p.OpenedAt
	case MilestoneClosed:
		return p.ClosedAt
	case MilestoneResponseThresholdReached:
		return p.ResponseThresholdReachedAt
	case MilestoneGovernmentResponse:
		return p.GovernmentResponseAt
	case MilestoneDebateThresholdReached:
		return p.DebateThresholdReachedAt
	case MilestoneScheduledDebate:
		return p.ScheduledDebateDate
	case MilestoneDebateOutcome:
		return p.DebateOutcomeAt
	default:
		return nil
	}
}

// ParseMilestone converts a field name such as "opened_at" into a Milestone.
func ParseMilestone(s string) (Milestone, error) {
	for _, m := range Milestones {
		if string(m) == s {
			return m, nil
		}
	}
	return "", eris.Errorf("unknown milestone: %q", s)
}
