package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/memory"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, time.January, 12, 12, 0, 0, 0, time.UTC)

func TestUpsertRally_SameKeyUpdates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	first, err := s.UpsertRally(ctx, domain.Rally{Title: "John Doe Rally in Kampala", StartTime: start, VenueName: "Kololo"})
	require.NoError(t, err)

	second, err := s.UpsertRally(ctx, domain.Rally{Title: "John Doe Rally in Kampala", StartTime: start.In(time.FixedZone("EAT", 3*3600)), VenueName: "Kololo Airstrip"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	rallies := s.Rallies()
	require.Len(t, rallies, 1)
	assert.Equal(t, "Kololo Airstrip", rallies[0].VenueName)
}

func TestUpsertRally_DifferentStartInserts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.UpsertRally(ctx, domain.Rally{Title: "A", StartTime: start})
	require.NoError(t, err)
	_, err = s.UpsertRally(ctx, domain.Rally{Title: "A", StartTime: start.Add(24 * time.Hour)})
	require.NoError(t, err)

	assert.Len(t, s.Rallies(), 2)
}

func TestFindCandidate_OldestWins(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.FindCandidateByName(ctx, "John Doe")
	require.ErrorIs(t, err, domain.ErrNotFound)

	a, _ := s.CreateCandidate(ctx, domain.Candidate{Name: "John Doe", Party: "Independent"})
	_, _ = s.CreateCandidate(ctx, domain.Candidate{Name: "John Doe", Party: "Independent"})

	got, err := s.FindCandidateByName(ctx, "John Doe")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Len(t, s.Candidates(), 2)
}

func TestUpcomingRallies_WindowInclusive(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for i, d := range []time.Duration{-time.Hour, 0, 72 * time.Hour, 7 * 24 * time.Hour, 8 * 24 * time.Hour} {
		_, err := s.UpsertRally(ctx, domain.Rally{Title: string(rune('A' + i)), StartTime: start.Add(d)})
		require.NoError(t, err)
	}

	got, err := s.UpcomingRallies(ctx, start, start.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "B", got[0].Title)
	assert.Equal(t, "D", got[2].Title)
}

func TestCreatePrediction_AtMostOncePerRally(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	r, _ := s.UpsertRally(ctx, domain.Rally{Title: "A", StartTime: start})

	created, err := s.CreatePrediction(ctx, domain.TrafficPrediction{RallyID: r.ID, JamLevel: domain.JamHeavy})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreatePrediction(ctx, domain.TrafficPrediction{RallyID: r.ID, JamLevel: domain.JamCritical})
	require.NoError(t, err)
	assert.False(t, created)

	has, err := s.HasPrediction(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, has)

	p, ok := s.Prediction(r.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JamHeavy, p.JamLevel)
}
