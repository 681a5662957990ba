// Package memory is an in-process store with the same semantics as the
// PostgreSQL store. It backs tests and offline validation runs.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/google/uuid"
)

type rallyKey struct {
	title string
	start int64
}

// Store keeps all collections in memory. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	candidates  []domain.Candidate
	districts   []domain.District
	rallies     map[rallyKey]domain.Rally
	rallyOrder  []rallyKey
	predictions map[uuid.UUID]domain.TrafficPrediction
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rallies:     make(map[rallyKey]domain.Rally),
		predictions: make(map[uuid.UUID]domain.TrafficPrediction),
	}
}

func (s *Store) FindCandidateByName(_ context.Context, name string) (domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.candidates {
		if c.Name == name {
			return c, nil
		}
	}
	return domain.Candidate{}, domain.ErrNotFound
}

// CreateCandidate appends c without a uniqueness check, like the SQL schema.
func (s *Store) CreateCandidate(_ context.Context, c domain.Candidate) (domain.Candidate, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, c)
	return c, nil
}

func (s *Store) FindDistrictByName(_ context.Context, name string) (domain.District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.districts {
		if d.Name == name {
			return d, nil
		}
	}
	return domain.District{}, domain.ErrNotFound
}

func (s *Store) CreateDistrict(_ context.Context, d domain.District) (domain.District, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.districts = append(s.districts, d)
	return d, nil
}

func (s *Store) UpsertRally(_ context.Context, r domain.Rally) (domain.Rally, error) {
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	key := rallyKey{title: r.Title, start: r.StartTime.UnixNano()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rallies[key]; ok {
		r.ID = existing.ID
	} else {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.rallyOrder = append(s.rallyOrder, key)
	}
	s.rallies[key] = r
	return r, nil
}

func (s *Store) UpcomingRallies(_ context.Context, from, to time.Time) ([]domain.Rally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Rally
	for _, k := range s.rallyOrder {
		r := s.rallies[k]
		if !r.StartTime.Before(from) && !r.StartTime.After(to) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Rally) int { return a.StartTime.Compare(b.StartTime) })
	return out, nil
}

func (s *Store) HasPrediction(_ context.Context, rallyID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.predictions[rallyID]
	return ok, nil
}

func (s *Store) CreatePrediction(_ context.Context, p domain.TrafficPrediction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.predictions[p.RallyID]; ok {
		return false, nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.AffectedRoads = slices.Clone(p.AffectedRoads)
	s.predictions[p.RallyID] = p
	return true, nil
}

// CheckReadiness always succeeds.
func (s *Store) CheckReadiness(context.Context) error { return nil }

// Candidates returns all candidate rows in insertion order.
func (s *Store) Candidates() []domain.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.candidates)
}

// Districts returns all district rows in insertion order.
func (s *Store) Districts() []domain.District {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.districts)
}

// Rallies returns all rallies in first-insertion order.
func (s *Store) Rallies() []domain.Rally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rally, 0, len(s.rallyOrder))
	for _, k := range s.rallyOrder {
		out = append(out, s.rallies[k])
	}
	return out
}

// Prediction returns the prediction for a rally, if any.
func (s *Store) Prediction(rallyID uuid.UUID) (domain.TrafficPrediction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.predictions[rallyID]
	return p, ok
}
