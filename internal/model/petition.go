// Package model defines the petition table rows shared by ingestion, metric
// derivation and the query layer.
package model

import "time"

// UnassignedDepartment is the default department for petitions whose
// source department list is empty.
const UnassignedDepartment = "Unassigned"

// Signature counts that unlock a government response and a debate.
const (
	ResponseThreshold = 10_000
	DebateThreshold   = 100_000
)

// Petition is one flattened petition from the listing API. Milestones are
// normalized to UTC; a nil milestone was either absent or unparseable.
type Petition struct {
	ID         int64   `json:"id"`
	Action     string  `json:"petition"`
	DetailURL  *string `json:"detail_url,omitempty"`
	State      string  `json:"state"`
	Signatures *int64  `json:"signatures"`

	CreatedAt                  *time.Time `json:"created_at"`
	OpenedAt                   *time.Time `json:"opened_at"`
	ClosedAt                   *time.Time `json:"closed_at"`
	ResponseThresholdReachedAt *time.Time `json:"response_threshold_reached_at"`
	GovernmentResponseAt       *time.Time `json:"government_response_at"`
	DebateThresholdReachedAt   *time.Time `json:"debate_threshold_reached_at"`
	ScheduledDebateDate        *time.Time `json:"scheduled_debate_date"`
	DebateOutcomeAt            *time.Time `json:"debate_outcome_at"`

	ResponseSummary     *string `json:"response,omitempty"`
	DebateVideoURL      *string `json:"debate_video_url,omitempty"`
	DebateTranscriptURL *string `json:"debate_transcript_url,omitempty"`
	DebateResearchURL   *string `json:"debate_research_url,omitempty"`

	Department string `json:"department"`
}

// Metrics holds the per-petition derived durations, in whole days.
// Every field is nil when its inputs do not support a value.
type Metrics struct {
	OpenedToResponseThreshold             *int `json:"opened_to_response_threshold_days"`
	OpenedToDebateThreshold               *int `json:"opened_to_debate_threshold_days"`
	CreatedToOpened                       *int `json:"created_to_opened_days"`
	ResponseThresholdToGovernmentResponse *int `json:"response_threshold_to_government_response_days"`
	DebateThresholdToScheduled            *int `json:"debate_threshold_to_scheduled_days"`
	ScheduledToOutcome                    *int `json:"scheduled_to_outcome_days"`
	WaitingForGovernmentResponse          *int `json:"waiting_for_government_response_days"`
	WaitingForScheduledDebate             *int `json:"waiting_for_scheduled_debate_days"`
	WaitingForDebateOutcome               *int `json:"waiting_for_debate_outcome_days"`
}

// Row is a petition augmented with its derived metrics. Rows are built
// once per refresh and never mutated afterwards.
type Row struct {
	Petition
	Metrics
}
