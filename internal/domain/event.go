package domain

import (
	"time"

	"github.com/google/uuid"
)

// CandidateEvent is one rally block as read from a schedule document.
// It exists only for the duration of an extraction pass.
type CandidateEvent struct {
	Title       string
	Date        string
	Time        string
	VenueName   string
	District    string
	Candidate   string
	Description string
}

// Candidate is a person contesting the election.
type Candidate struct {
	ID    uuid.UUID
	Name  string
	Party string
}

// District is an administrative district hosting rallies.
type District struct {
	ID     uuid.UUID
	Name   string
	Region string
}

// Rally is a persisted campaign rally.
type Rally struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	CandidateID uuid.UUID  `json:"candidate_id"`
	DistrictID  uuid.UUID  `json:"district_id"`
	VenueName   string     `json:"venue_name"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Location    Coordinate `json:"location"`
	SourceURL   string     `json:"source_url"`
}

// TrafficPrediction is the congestion forecast for a single rally.
type TrafficPrediction struct {
	ID                    uuid.UUID
	RallyID               uuid.UUID
	PredictedDelayMinutes int
	JamLevel              JamLevel
	Description           string
	AffectedRoads         []string
	CreatedAt             time.Time
}

// Announcement is a feed item that looks like a schedule update.
type Announcement struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published,omitzero"`
}
