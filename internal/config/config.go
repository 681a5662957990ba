package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabaseURL    string
	DBMaxOpenConns int
	DBLogSlowQuery time.Duration

	// Schedule document source.
	SchedulePageURL  string `validate:"required,http_url"`
	ScheduleBaseURL  string `validate:"required,http_url"`
	DocumentSuffix   string
	DocumentKeywords []string
	FetchTimeout     time.Duration

	// TomTom geo provider configuration.
	TomTomAPIKey    string
	TomTomTimeout   time.Duration
	TomTomCacheSize int
	TomTomRateLimit int

	GeocodeCountryCode string
	GeocodeCountryName string
	DefaultLat         float64 `validate:"gte=-90,lte=90"`
	DefaultLon         float64 `validate:"gte=-180,lte=180"`

	// Jobs.
	PredictionHorizon time.Duration
	IngestInterval    time.Duration
	TrafficInterval   time.Duration
	FeedInterval      time.Duration
	FeedURL           string `validate:"omitempty,http_url"`
	FeedKeywords      []string
	FeedTimeout       time.Duration
	RunOnStart        bool

	// Optional rally change stream.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaRallyTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SchedulePageURL:  sharedcfg.EnvOrDefault("SCHEDULE_PAGE_URL", "https://www.ec.or.ug/presidential-campaign-programme-2025-2026"),
		ScheduleBaseURL:  sharedcfg.EnvOrDefault("SCHEDULE_BASE_URL", "https://www.ec.or.ug"),
		DocumentSuffix:   sharedcfg.EnvOrDefault("DOCUMENT_SUFFIX", ".pdf"),
		DocumentKeywords: parseList(sharedcfg.EnvOrDefault("DOCUMENT_KEYWORDS", "campaign,programme")),

		TomTomAPIKey: os.Getenv("TOMTOM_API_KEY"),

		GeocodeCountryCode: sharedcfg.EnvOrDefault("GEOCODE_COUNTRY_CODE", "UG"),
		GeocodeCountryName: sharedcfg.EnvOrDefault("GEOCODE_COUNTRY_NAME", "Uganda"),

		FeedURL:      sharedcfg.EnvOrDefault("FEED_URL", "https://nitter.net/UgandaEC/rss"),
		FeedKeywords: parseList(sharedcfg.EnvOrDefault("FEED_KEYWORDS", "campaign,rally,schedule")),
		RunOnStart:   sharedcfg.EnvOrDefault("RUN_ON_START", "false") == "true",

		KafkaEnabled:    sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRallyTopic: sharedcfg.EnvOrDefault("KAFKA_RALLY_TOPIC", "rally-updates"),
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"DB_SLOW_QUERY", "500ms", &cfg.DBLogSlowQuery},
		{"FETCH_TIMEOUT", "30s", &cfg.FetchTimeout},
		{"TOMTOM_TIMEOUT", "5s", &cfg.TomTomTimeout},
		{"PREDICTION_HORIZON", "168h", &cfg.PredictionHorizon},
		{"INGEST_INTERVAL", "24h", &cfg.IngestInterval},
		{"TRAFFIC_INTERVAL", "24h", &cfg.TrafficInterval},
		{"FEED_INTERVAL", "24h", &cfg.FeedInterval},
		{"FEED_TIMEOUT", "5s", &cfg.FeedTimeout},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"DB_MAX_OPEN_CONNS", 10, &cfg.DBMaxOpenConns},
		{"TOMTOM_CACHE_SIZE", 1000, &cfg.TomTomCacheSize},
		{"TOMTOM_RATE_LIMIT", 5, &cfg.TomTomRateLimit},
	}
	for _, n := range ints {
		v, err := parsePositiveInt(n.key, n.def)
		if err != nil {
			return nil, err
		}
		*n.dest = v
	}

	if cfg.DefaultLat, err = parseFloat("DEFAULT_LAT", 0.3476); err != nil {
		return nil, err
	}
	if cfg.DefaultLon, err = parseFloat("DEFAULT_LON", 32.5825); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.SchedulePageURL == "" {
		return nil, errors.New("SCHEDULE_PAGE_URL is required")
	}
	if len(cfg.DocumentKeywords) == 0 {
		return nil, errors.New("DOCUMENT_KEYWORDS must list at least one keyword")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaRallyTopic == "" {
		return nil, errors.New("KAFKA_RALLY_TOPIC is required when KAFKA_ENABLED is true")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GeoEnabled reports whether a TomTom key is configured.
func (c *Config) GeoEnabled() bool {
	return c.TomTomAPIKey != ""
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
