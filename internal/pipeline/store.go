// Package pipeline runs the schedule ingestion cycle and the traffic
// prediction pass over a store and a geo provider.
package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/google/uuid"
)

// EntityStore reads and creates candidates and districts. Find methods
// return domain.ErrNotFound when no row matches; when duplicates exist the
// oldest row is returned.
type EntityStore interface {
	FindCandidateByName(ctx context.Context, name string) (domain.Candidate, error)
	CreateCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error)
	FindDistrictByName(ctx context.Context, name string) (domain.District, error)
	CreateDistrict(ctx context.Context, d domain.District) (domain.District, error)
}

// RallyStore writes rallies keyed on (title, start time).
type RallyStore interface {
	// UpsertRally inserts r or overwrites the row with the same title and
	// start time, returning the stored rally with its persistent ID.
	UpsertRally(ctx context.Context, r domain.Rally) (domain.Rally, error)
}

// PredictionStore reads upcoming rallies and writes traffic predictions.
type PredictionStore interface {
	UpcomingRallies(ctx context.Context, from, to time.Time) ([]domain.Rally, error)
	HasPrediction(ctx context.Context, rallyID uuid.UUID) (bool, error)
	// CreatePrediction inserts p unless the rally already has one; created
	// reports whether a row was written.
	CreatePrediction(ctx context.Context, p domain.TrafficPrediction) (created bool, err error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	EntityStore
	RallyStore
	PredictionStore
}

// RallyPublisher announces rallies written during an ingestion cycle.
type RallyPublisher interface {
	PublishRallies(ctx context.Context, sourceURL string, rallies []domain.Rally) error
}
