package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/memory"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"github.com/couchcryptid/rally-traffic-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeGeo struct {
	locations map[string]domain.Coordinate
	flow      *domain.FlowSegment
	flowCalls atomic.Int64
	queries   []string
	mu        sync.Mutex
}

func (g *fakeGeo) TrafficFlow(context.Context, domain.Coordinate) (domain.FlowSegment, bool) {
	g.flowCalls.Add(1)
	if g.flow == nil {
		return domain.FlowSegment{}, false
	}
	return *g.flow, true
}

func (g *fakeGeo) CalculateRoute(context.Context, []domain.Coordinate) (domain.Route, bool) {
	return domain.Route{}, false
}

func (g *fakeGeo) Geocode(_ context.Context, query string) (domain.GeocodeResult, bool) {
	g.mu.Lock()
	g.queries = append(g.queries, query)
	g.mu.Unlock()
	loc, ok := g.locations[query]
	if !ok {
		return domain.GeocodeResult{}, false
	}
	return domain.GeocodeResult{Location: loc, Address: query}, true
}

type fakeSource struct {
	urls        []string
	docs        map[string]string
	discoverErr error
}

func (s *fakeSource) Discover(context.Context, string) ([]string, error) {
	return s.urls, s.discoverErr
}

func (s *fakeSource) Download(_ context.Context, docURL string) ([]byte, error) {
	text, ok := s.docs[docURL]
	if !ok {
		return nil, &domain.FetchError{URL: docURL, StatusCode: 404}
	}
	return []byte(text), nil
}

func (s *fakeSource) Text(data []byte) (string, error) {
	return string(data), nil
}

type recordingPublisher struct {
	calls [][]domain.Rally
	err   error
}

func (p *recordingPublisher) PublishRallies(_ context.Context, _ string, rallies []domain.Rally) error {
	p.calls = append(p.calls, rallies)
	return p.err
}

// failingStore rejects rally writes for one title.
type failingStore struct {
	*memory.Store
	failTitle string
}

func (s *failingStore) UpsertRally(ctx context.Context, r domain.Rally) (domain.Rally, error) {
	if r.Title == s.failTitle {
		return domain.Rally{}, errors.New("connection reset")
	}
	return s.Store.UpsertRally(ctx, r)
}

type brokenEntityStore struct {
	*memory.Store
}

func (brokenEntityStore) FindCandidateByName(context.Context, string) (domain.Candidate, error) {
	return domain.Candidate{}, errors.New("relation does not exist")
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readSchedule(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/schedule.txt")
	require.NoError(t, err)
	return string(data)
}

const sourceURL = "https://ec.example/uploads/campaign-programme.pdf"

func newIngestor(store pipeline.Store, geo domain.GeoProvider, src pipeline.DocumentSource, pub pipeline.RallyPublisher, m *observability.Metrics) *pipeline.Ingestor {
	logger := discardLogger()
	resolver := pipeline.NewResolver(store, logger)
	persister := pipeline.NewPersister(store, geo, pipeline.PersisterOptions{CountryName: "Uganda"}, logger, m)
	return pipeline.NewIngestor(src, resolver, persister, pub, "https://ec.example/", logger, m)
}

// --- ingestion ---

func TestIngestor_IngestDocument_Fixture(t *testing.T) {
	store := memory.New()
	geo := &fakeGeo{locations: map[string]domain.Coordinate{
		"Kaunda Grounds, Gulu, Uganda": {Lat: 2.7724, Lon: 32.2881},
	}}
	m := newTestMetrics()
	in := newIngestor(store, geo, nil, nil, m)

	stats := in.IngestDocument(context.Background(), sourceURL, readSchedule(t))

	assert.Equal(t, 3, stats.Events)
	assert.Equal(t, 1, stats.Skipped, "Lira block has no venue")
	assert.Equal(t, 3, stats.Persisted)
	assert.Equal(t, 0, stats.Errors)

	rallies := store.Rallies()
	require.Len(t, rallies, 3)

	first := rallies[0]
	assert.Equal(t, "Jane Akello Rally in Gulu", first.Title)
	assert.Equal(t, "Kaunda Grounds", first.VenueName)
	assert.Equal(t, "Official campaign rally for Jane Akello at Kaunda Grounds.", first.Description)
	assert.Equal(t, time.Date(2026, time.January, 12, 12, 0, 0, 0, time.UTC), first.StartTime)
	assert.Equal(t, time.Date(2026, time.January, 12, 15, 0, 0, 0, time.UTC), first.EndTime)
	assert.Equal(t, domain.Coordinate{Lat: 2.7724, Lon: 32.2881}, first.Location)
	assert.Equal(t, sourceURL, first.SourceURL)

	// Not geocoded, so stored at the default location.
	assert.Equal(t, domain.DefaultLocation, rallies[1].Location)

	assert.Len(t, store.Candidates(), 2)
	assert.Len(t, store.Districts(), 2, "Gulu is shared")
	for _, c := range store.Candidates() {
		assert.Equal(t, pipeline.DefaultParty, c.Party)
	}
	for _, d := range store.Districts() {
		assert.Equal(t, pipeline.DefaultRegion, d.Region)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.EventsExtracted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BlocksSkipped))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RalliesPersisted))
}

func TestIngestor_IngestDocument_Idempotent(t *testing.T) {
	store := memory.New()
	in := newIngestor(store, domain.NoopGeoProvider{}, nil, nil, newTestMetrics())
	text := readSchedule(t)

	in.IngestDocument(context.Background(), sourceURL, text)
	before := store.Rallies()

	in.IngestDocument(context.Background(), sourceURL, text)
	after := store.Rallies()

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("rallies changed on re-ingest (-before +after):\n%s", diff)
	}
	assert.Len(t, store.Candidates(), 2)
	assert.Len(t, store.Districts(), 2)
}

func TestIngestor_IngestDocument_ReingestUpdatesFields(t *testing.T) {
	store := memory.New()
	in := newIngestor(store, domain.NoopGeoProvider{}, nil, nil, newTestMetrics())

	in.IngestDocument(context.Background(), sourceURL, "Date: 12/1/2026\nCandidate: A\nDistrict: Gulu\nVenue: Old Grounds")
	in.IngestDocument(context.Background(), sourceURL, "Date: 12/1/2026\nCandidate: A\nDistrict: Gulu\nVenue: New Grounds")

	rallies := store.Rallies()
	require.Len(t, rallies, 1)
	assert.Equal(t, "New Grounds", rallies[0].VenueName)
}

func TestIngestor_IngestDocument_MalformedDateSkipped(t *testing.T) {
	store := memory.New()
	in := newIngestor(store, nil, nil, nil, newTestMetrics())

	text := "Date: next tuesday\nCandidate: A\nDistrict: Gulu\nVenue: Pece\n" +
		"Date: 14/1/2026\nCandidate: B\nDistrict: Lira\nVenue: Akii Bua"
	stats := in.IngestDocument(context.Background(), sourceURL, text)

	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Persisted)
	require.Len(t, store.Rallies(), 1)
	assert.Equal(t, "B Rally in Lira", store.Rallies()[0].Title)
}

func TestIngestor_IngestDocument_PersistErrorContinues(t *testing.T) {
	store := &failingStore{Store: memory.New(), failTitle: "Robert Kato Rally in Mbarara"}
	m := newTestMetrics()
	in := newIngestor(store, nil, nil, nil, m)

	stats := in.IngestDocument(context.Background(), sourceURL, readSchedule(t))

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 2, stats.Persisted)
	assert.Len(t, store.Rallies(), 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistErrors.WithLabelValues("rally")))
}

func TestIngestor_IngestDocument_ResolutionError(t *testing.T) {
	store := brokenEntityStore{Store: memory.New()}
	m := newTestMetrics()
	in := newIngestor(store, nil, nil, nil, m)

	stats := in.IngestDocument(context.Background(), sourceURL, readSchedule(t))

	assert.Equal(t, 3, stats.Errors)
	assert.Empty(t, store.Rallies())
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PersistErrors.WithLabelValues("candidate")))
}

func TestIngestor_IngestDocument_Publishes(t *testing.T) {
	pub := &recordingPublisher{}
	m := newTestMetrics()
	in := newIngestor(memory.New(), nil, nil, pub, m)

	in.IngestDocument(context.Background(), sourceURL, readSchedule(t))

	require.Len(t, pub.calls, 1)
	assert.Len(t, pub.calls[0], 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RalliesPublished))
}

func TestIngestor_IngestDocument_PublishErrorIsNotFatal(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := newTestMetrics()
	in := newIngestor(store, nil, nil, pub, m)

	stats := in.IngestDocument(context.Background(), sourceURL, readSchedule(t))

	assert.Equal(t, 3, stats.Persisted)
	assert.Len(t, store.Rallies(), 3)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RalliesPublished))
}

func TestIngestor_Run(t *testing.T) {
	store := memory.New()
	src := &fakeSource{
		urls: []string{sourceURL, "https://ec.example/uploads/missing.pdf"},
		docs: map[string]string{sourceURL: readSchedule(t)},
	}
	m := newTestMetrics()
	in := newIngestor(store, nil, src, nil, m)

	require.NoError(t, in.Run(context.Background()))
	assert.Len(t, store.Rallies(), 3)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DocumentsFailed))
}

func TestIngestor_Run_DiscoveryFailureAborts(t *testing.T) {
	store := memory.New()
	src := &fakeSource{discoverErr: &domain.FetchError{URL: "https://ec.example/", StatusCode: 503}}
	in := newIngestor(store, nil, src, nil, newTestMetrics())

	err := in.Run(context.Background())

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 503, fe.StatusCode)
	assert.Empty(t, store.Rallies())
}

// --- resolver ---

func TestResolver_ReusesExistingEntities(t *testing.T) {
	store := memory.New()
	existing, err := store.CreateCandidate(context.Background(), domain.Candidate{Name: "Jane Akello", Party: "NRM"})
	require.NoError(t, err)

	r := pipeline.NewResolver(store, discardLogger())
	id, err := r.ResolveCandidate(context.Background(), "Jane Akello")
	require.NoError(t, err)

	assert.Equal(t, existing.ID, id)
	require.Len(t, store.Candidates(), 1)
	assert.Equal(t, "NRM", store.Candidates()[0].Party)
}

func TestResolver_NamesAreExact(t *testing.T) {
	store := memory.New()
	r := pipeline.NewResolver(store, discardLogger())

	a, err := r.ResolveDistrict(context.Background(), "Gulu")
	require.NoError(t, err)
	b, err := r.ResolveDistrict(context.Background(), "gulu")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, store.Districts(), 2)
}

func TestResolver_LookupFailure(t *testing.T) {
	r := pipeline.NewResolver(brokenEntityStore{Store: memory.New()}, discardLogger())

	_, err := r.ResolveCandidate(context.Background(), "Jane Akello")

	var pe *domain.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "candidate", pe.Entity)
	assert.Equal(t, "Jane Akello", pe.Key)
}

func TestGeocodeQuery(t *testing.T) {
	assert.Equal(t, "Pece Stadium, Gulu, Uganda", pipeline.GeocodeQuery("Pece Stadium", "Gulu", "Uganda"))
	assert.Equal(t, "Pece Stadium, Gulu", pipeline.GeocodeQuery("Pece Stadium", "Gulu", ""))
}

func TestPersister_DefaultLocation(t *testing.T) {
	ev := domain.CandidateEvent{
		Title: "John Doe Rally in Kampala", Date: "12/01/2026", Time: domain.DefaultEventTime,
		VenueName: "Nowhere Grounds", District: "Kampala", Candidate: "John Doe",
	}
	origin := domain.Coordinate{}

	tests := []struct {
		name string
		opt  *domain.Coordinate
		want domain.Coordinate
	}{
		{"unset uses package default", nil, domain.DefaultLocation},
		{"explicit origin is honored", &origin, domain.Coordinate{}},
		{"explicit coordinate", &domain.Coordinate{Lat: 2.7724, Lon: 32.2881}, domain.Coordinate{Lat: 2.7724, Lon: 32.2881}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			ctx := context.Background()
			ids, err := pipeline.NewResolver(store, discardLogger()).Resolve(ctx, ev)
			require.NoError(t, err)

			p := pipeline.NewPersister(store, &fakeGeo{}, pipeline.PersisterOptions{DefaultLocation: tt.opt}, discardLogger(), newTestMetrics())
			r, err := p.Persist(ctx, ev, ids, sourceURL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Location)
		})
	}
}

// --- predictor ---

func seedRally(t *testing.T, store *memory.Store, title string, start time.Time) domain.Rally {
	t.Helper()
	r, err := store.UpsertRally(context.Background(), domain.Rally{
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(domain.RallyDuration),
		Location:  domain.DefaultLocation,
	})
	require.NoError(t, err)
	return r
}

func TestPredictor_GeneratePredictions(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	store := memory.New()

	inWindow := seedRally(t, store, "A Rally in Gulu", now.Add(48*time.Hour))
	past := seedRally(t, store, "B Rally in Lira", now.Add(-time.Hour))
	beyond := seedRally(t, store, "C Rally in Mbale", now.Add(8*24*time.Hour))

	geo := &fakeGeo{flow: &domain.FlowSegment{CurrentSpeed: 12, FreeFlowSpeed: 30}}
	m := newTestMetrics()
	p := pipeline.NewPredictor(store, geo, clock, 7*24*time.Hour, discardLogger(), m)

	require.NoError(t, p.GeneratePredictions(context.Background()))

	pred, ok := store.Prediction(inWindow.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JamCritical, pred.JamLevel)
	assert.Equal(t, 60, pred.PredictedDelayMinutes)
	assert.Equal(t, domain.PredictionDescription(domain.JamCritical, 60), pred.Description)
	assert.Equal(t, []string{"Main Road", "Access Lane"}, pred.AffectedRoads)
	assert.Equal(t, now, pred.CreatedAt)

	_, ok = store.Prediction(past.ID)
	assert.False(t, ok)
	_, ok = store.Prediction(beyond.ID)
	assert.False(t, ok)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PredictionsCreated.WithLabelValues("critical")))
}

func TestPredictor_SkipsExistingWithoutFlowLookup(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	store := memory.New()
	r := seedRally(t, store, "A Rally in Gulu", now.Add(time.Hour))

	geo := &fakeGeo{flow: &domain.FlowSegment{CurrentSpeed: 20, FreeFlowSpeed: 30}}
	m := newTestMetrics()
	p := pipeline.NewPredictor(store, geo, clockwork.NewFakeClockAt(now), 0, discardLogger(), m)

	require.NoError(t, p.GeneratePredictions(context.Background()))
	first, ok := store.Prediction(r.ID)
	require.True(t, ok)

	// Conditions change, but the stored prediction is final.
	geo.flow = &domain.FlowSegment{CurrentSpeed: 1, FreeFlowSpeed: 30}
	require.NoError(t, p.GeneratePredictions(context.Background()))

	second, ok := store.Prediction(r.ID)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), geo.flowCalls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PredictionsSkipped))
}

func TestPredictor_FlowUnavailable(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	store := memory.New()
	r := seedRally(t, store, "A Rally in Gulu", now.Add(time.Hour))

	p := pipeline.NewPredictor(store, nil, clockwork.NewFakeClockAt(now), 0, discardLogger(), newTestMetrics())
	require.NoError(t, p.GeneratePredictions(context.Background()))

	pred, ok := store.Prediction(r.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JamModerate, pred.JamLevel)
	assert.Equal(t, 30, pred.PredictedDelayMinutes)
}

func TestPredictor_WindowIsInclusive(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	store := memory.New()
	atNow := seedRally(t, store, "A Rally in Gulu", now)
	atEdge := seedRally(t, store, "B Rally in Lira", now.Add(pipeline.DefaultHorizon))

	p := pipeline.NewPredictor(store, nil, clockwork.NewFakeClockAt(now), 0, discardLogger(), newTestMetrics())
	require.NoError(t, p.GeneratePredictions(context.Background()))

	for _, id := range []uuid.UUID{atNow.ID, atEdge.ID} {
		_, ok := store.Prediction(id)
		assert.True(t, ok)
	}
}
