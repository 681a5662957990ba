package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
)

// PersisterOptions configures geocoding for persisted rallies.
type PersisterOptions struct {
	// CountryName scopes geocoding queries, e.g. "Uganda".
	CountryName string
	// DefaultLocation is stored when a venue cannot be geocoded. Nil means
	// domain.DefaultLocation; (0,0) is honored when set explicitly.
	DefaultLocation *domain.Coordinate
}

// Persister turns resolved events into stored rallies.
type Persister struct {
	store   RallyStore
	geo     domain.GeoProvider
	opts    PersisterOptions
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPersister creates a Persister. A nil geo provider stores every rally at
// the default location.
func NewPersister(store RallyStore, geo domain.GeoProvider, opts PersisterOptions, logger *slog.Logger, metrics *observability.Metrics) *Persister {
	if geo == nil {
		geo = domain.NoopGeoProvider{}
	}
	if opts.DefaultLocation == nil {
		loc := domain.DefaultLocation
		opts.DefaultLocation = &loc
	}
	return &Persister{store: store, geo: geo, opts: opts, logger: logger, metrics: metrics}
}

// Persist geocodes and upserts one event. A malformed date returns an error
// wrapping domain.ErrInvalidDate; a failed write returns *domain.PersistError.
func (p *Persister) Persist(ctx context.Context, ev domain.CandidateEvent, ids ResolvedIDs, sourceURL string) (domain.Rally, error) {
	start, end, err := domain.ScheduleTimes(ev.Date)
	if err != nil {
		return domain.Rally{}, err
	}

	rally := domain.Rally{
		Title:       ev.Title,
		CandidateID: ids.CandidateID,
		DistrictID:  ids.DistrictID,
		VenueName:   ev.VenueName,
		Description: ev.Description,
		StartTime:   start,
		EndTime:     end,
		Location:    p.locate(ctx, ev),
		SourceURL:   sourceURL,
	}

	stored, err := p.store.UpsertRally(ctx, rally)
	if err != nil {
		p.metrics.PersistErrors.WithLabelValues("rally").Inc()
		return domain.Rally{}, &domain.PersistError{Entity: "rally", Key: ev.Title, Err: err}
	}
	p.metrics.RalliesPersisted.Inc()
	p.logger.Debug("rally saved", "title", stored.Title, "rally_id", stored.ID, "start_time", stored.StartTime)
	return stored, nil
}

func (p *Persister) locate(ctx context.Context, ev domain.CandidateEvent) domain.Coordinate {
	query := GeocodeQuery(ev.VenueName, ev.District, p.opts.CountryName)
	res, ok := p.geo.Geocode(ctx, query)
	if !ok || res.Location.IsZero() {
		p.logger.Info("venue not geocoded, using default location", "venue", ev.VenueName, "district", ev.District)
		return *p.opts.DefaultLocation
	}
	return res.Location
}

// GeocodeQuery builds the "{venue}, {district}, {country}" query.
func GeocodeQuery(venue, district, country string) string {
	if country == "" {
		return fmt.Sprintf("%s, %s", venue, district)
	}
	return fmt.Sprintf("%s, %s, %s", venue, district, country)
}
