package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/google/uuid"
)

// Defaults recorded for entities first seen in a schedule document.
const (
	DefaultParty  = "Independent"
	DefaultRegion = "Central"
)

// ResolvedIDs are the entity references of one extracted event.
type ResolvedIDs struct {
	CandidateID uuid.UUID
	DistrictID  uuid.UUID
}

// Resolver maps free-text candidate and district names to entity IDs,
// creating the entity on first sight. Lookup-then-insert is not atomic:
// two concurrent first sightings may both insert, and later lookups settle
// on the oldest row.
type Resolver struct {
	store  EntityStore
	logger *slog.Logger
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store EntityStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the candidate and district IDs for an event.
func (r *Resolver) Resolve(ctx context.Context, ev domain.CandidateEvent) (ResolvedIDs, error) {
	candidateID, err := r.ResolveCandidate(ctx, ev.Candidate)
	if err != nil {
		return ResolvedIDs{}, err
	}
	districtID, err := r.ResolveDistrict(ctx, ev.District)
	if err != nil {
		return ResolvedIDs{}, err
	}
	return ResolvedIDs{CandidateID: candidateID, DistrictID: districtID}, nil
}

// ResolveCandidate returns the ID of the candidate with exactly this name.
func (r *Resolver) ResolveCandidate(ctx context.Context, name string) (uuid.UUID, error) {
	return resolveOrCreate(ctx, r.logger, "candidate", name,
		func(ctx context.Context) (uuid.UUID, error) {
			c, err := r.store.FindCandidateByName(ctx, name)
			return c.ID, err
		},
		func(ctx context.Context) (uuid.UUID, error) {
			c, err := r.store.CreateCandidate(ctx, domain.Candidate{Name: name, Party: DefaultParty})
			return c.ID, err
		},
	)
}

// ResolveDistrict returns the ID of the district with exactly this name.
func (r *Resolver) ResolveDistrict(ctx context.Context, name string) (uuid.UUID, error) {
	return resolveOrCreate(ctx, r.logger, "district", name,
		func(ctx context.Context) (uuid.UUID, error) {
			d, err := r.store.FindDistrictByName(ctx, name)
			return d.ID, err
		},
		func(ctx context.Context) (uuid.UUID, error) {
			d, err := r.store.CreateDistrict(ctx, domain.District{Name: name, Region: DefaultRegion})
			return d.ID, err
		},
	)
}

type idFunc func(context.Context) (uuid.UUID, error)

func resolveOrCreate(ctx context.Context, logger *slog.Logger, entity, name string, find, create idFunc) (uuid.UUID, error) {
	id, err := find(ctx)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, &domain.PersistError{Entity: entity, Key: name, Err: err}
	}

	id, err = create(ctx)
	if err != nil {
		return uuid.Nil, &domain.PersistError{Entity: entity, Key: name, Err: err}
	}
	logger.Info("entity created", "entity", entity, "name", name, "id", id)
	return id, nil
}
