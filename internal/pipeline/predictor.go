package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultHorizon is how far ahead rallies are forecast.
const DefaultHorizon = 7 * 24 * time.Hour

// Predictor forecasts congestion for upcoming rallies that have no prediction yet.
type Predictor struct {
	store   PredictionStore
	geo     domain.GeoProvider
	clock   clockwork.Clock
	horizon time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPredictor creates a Predictor. A nil geo provider classifies every
// rally as if flow data were unavailable.
func NewPredictor(store PredictionStore, geo domain.GeoProvider, clock clockwork.Clock, horizon time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Predictor {
	if geo == nil {
		geo = domain.NoopGeoProvider{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Predictor{store: store, geo: geo, clock: clock, horizon: horizon, logger: logger, metrics: metrics}
}

// GeneratePredictions writes one prediction for each rally starting within
// [now, now+horizon] that lacks one. Only a failure to list rallies is
// returned; per-rally failures are logged and skipped.
func (p *Predictor) GeneratePredictions(ctx context.Context) error {
	now := p.clock.Now().UTC()
	rallies, err := p.store.UpcomingRallies(ctx, now, now.Add(p.horizon))
	if err != nil {
		return fmt.Errorf("select upcoming rallies: %w", err)
	}

	var created, skipped, failed int
	for _, r := range rallies {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch p.predict(ctx, r, now) {
		case outcomeCreated:
			created++
		case outcomeSkipped:
			skipped++
		default:
			failed++
		}
	}

	p.logger.Info("traffic analysis complete",
		"upcoming", len(rallies),
		"created", created,
		"skipped", skipped,
		"failed", failed,
	)
	return nil
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (p *Predictor) predict(ctx context.Context, r domain.Rally, now time.Time) outcome {
	has, err := p.store.HasPrediction(ctx, r.ID)
	if err != nil {
		p.metrics.PersistErrors.WithLabelValues("prediction").Inc()
		p.logger.Error("prediction lookup failed", "rally_id", r.ID, "error", err)
		return outcomeFailed
	}
	if has {
		p.metrics.PredictionsSkipped.Inc()
		return outcomeSkipped
	}

	var flow *domain.FlowSegment
	if seg, ok := p.geo.TrafficFlow(ctx, r.Location); ok {
		flow = &seg
	}
	level, delay := domain.ClassifyFlow(flow)

	pred := domain.TrafficPrediction{
		RallyID:               r.ID,
		PredictedDelayMinutes: delay,
		JamLevel:              level,
		Description:           domain.PredictionDescription(level, delay),
		AffectedRoads:         slices.Clone(domain.DefaultAffectedRoads),
		CreatedAt:             now,
	}

	ok, err := p.store.CreatePrediction(ctx, pred)
	if err != nil {
		p.metrics.PersistErrors.WithLabelValues("prediction").Inc()
		p.logger.Error("prediction save failed", "rally_id", r.ID, "error",
			&domain.PersistError{Entity: "prediction", Key: r.ID.String(), Err: err})
		return outcomeFailed
	}
	if !ok {
		// Another run wrote it first.
		p.metrics.PredictionsSkipped.Inc()
		return outcomeSkipped
	}

	p.metrics.PredictionsCreated.WithLabelValues(string(level)).Inc()
	p.logger.Info("prediction created", "rally_id", r.ID, "title", r.Title, "jam_level", level, "delay_minutes", delay, "flow_available", flow != nil)
	return outcomeCreated
}
