package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/docsource"
	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/feed"
	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/rally-traffic-etl/internal/adapter/kafka"
	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/postgres"
	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/tomtom"
	"github.com/couchcryptid/rally-traffic-etl/internal/config"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"github.com/couchcryptid/rally-traffic-etl/internal/pipeline"
	"github.com/couchcryptid/rally-traffic-etl/internal/scheduler"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

const (
	jobIngest  = "ingest-schedule"
	jobTraffic = "traffic-predictions"
	jobFeed    = "feed-check"
)

func main() {
	// Local env files are optional; real environment variables win.
	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := postgres.Open(context.Background(), cfg.DatabaseURL, postgres.Options{
		MaxOpenConns:  cfg.DBMaxOpenConns,
		SlowThreshold: cfg.DBLogSlowQuery,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	// TomTom without a key answers every lookup as unavailable.
	client := tomtom.NewClient(cfg.TomTomAPIKey, cfg.TomTomTimeout, cfg.TomTomRateLimit, logger, metrics,
		tomtom.WithCountry(cfg.GeocodeCountryCode))
	geo := tomtom.NewCachedProvider(client, cfg.TomTomCacheSize, metrics)
	if cfg.GeoEnabled() {
		logger.Info("tomtom enabled", "cache_size", cfg.TomTomCacheSize, "rate_limit", cfg.TomTomRateLimit)
	}

	fetcher, err := docsource.NewFetcher(docsource.Options{
		BaseURL:  cfg.ScheduleBaseURL,
		Suffix:   cfg.DocumentSuffix,
		Keywords: cfg.DocumentKeywords,
		Timeout:  cfg.FetchTimeout,
	}, logger, metrics)
	if err != nil {
		logger.Error("invalid document source", "error", err)
		os.Exit(1)
	}

	var (
		publisher pipeline.RallyPublisher
		writer    *kafkaadapter.RallyWriter
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewRallyWriter(cfg.KafkaBrokers, cfg.KafkaRallyTopic, logger)
		publisher = writer
		logger.Info("rally publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaRallyTopic)
	}

	resolver := pipeline.NewResolver(store, logger)
	persister := pipeline.NewPersister(store, geo, pipeline.PersisterOptions{
		CountryName:     cfg.GeocodeCountryName,
		DefaultLocation: &domain.Coordinate{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon},
	}, logger, metrics)
	ingestor := pipeline.NewIngestor(fetcher, resolver, persister, publisher, cfg.SchedulePageURL, logger, metrics)
	predictor := pipeline.NewPredictor(store, geo, clockwork.NewRealClock(), cfg.PredictionHorizon, logger, metrics)
	checker := feed.NewChecker(cfg.FeedURL, cfg.FeedKeywords, cfg.FeedTimeout, logger, metrics)

	sched := scheduler.New(logger, metrics, nil)
	if err := registerJobs(sched, cfg, ingestor.Run, predictor.GeneratePredictions, checker.Run); err != nil {
		logger.Error("failed to register jobs", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, sched, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched.Start(ctx)
	if cfg.RunOnStart {
		go sched.RunAll(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, ingest, traffic, feedCheck scheduler.JobFunc) error {
	jobs := []struct {
		name  string
		every time.Duration
		fn    scheduler.JobFunc
	}{
		{jobIngest, cfg.IngestInterval, ingest},
		{jobTraffic, cfg.TrafficInterval, traffic},
		{jobFeed, cfg.FeedInterval, feedCheck},
	}
	for _, j := range jobs {
		if err := sched.Register(j.name, j.every, j.fn); err != nil {
			return err
		}
	}
	return nil
}
