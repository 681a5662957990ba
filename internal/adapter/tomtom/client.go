package tomtom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.tomtom.com"

	methodFlow    = "flow"
	methodRoute   = "route"
	methodGeocode = "geocode"
)

// Client implements domain.GeoProvider using the TomTom Traffic, Routing and
// Search APIs. Every lookup fails soft.
type Client struct {
	apiKey      string
	countryCode string
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithCountry scopes geocoding to an ISO 3166 country code.
func WithCountry(code string) Option {
	return func(c *Client) { c.countryCode = code }
}

// NewClient creates a TomTom client. rps caps outbound requests per second;
// zero or negative disables throttling.
func NewClient(apiKey string, timeout time.Duration, rps int, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		metrics:    metrics,
		logger:     logger,
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
	for _, opt := range opts {
		opt(c)
	}

	if apiKey == "" {
		metrics.GeoEnabled.Set(0)
		logger.Warn("tomtom API key not set, geo lookups will use defaults", "error", domain.ErrMissingAPIKey)
	} else {
		metrics.GeoEnabled.Set(1)
	}
	return c
}

// TrafficFlow returns the flow segment nearest to the given coordinate.
func (c *Client) TrafficFlow(ctx context.Context, at domain.Coordinate) (domain.FlowSegment, bool) {
	if !c.enabled(methodFlow) {
		return domain.FlowSegment{}, false
	}

	params := url.Values{
		"key":   {c.apiKey},
		"point": {at.String()},
	}
	u := c.baseURL + "/traffic/services/4/flowSegmentData/absolute/10/json?" + params.Encode()

	var resp flowResponse
	if err := c.getJSON(ctx, methodFlow, u, &resp); err != nil {
		c.fail(methodFlow, err, "lat", at.Lat, "lon", at.Lon)
		return domain.FlowSegment{}, false
	}

	seg, ok := resp.toDomain()
	if !ok {
		c.empty(methodFlow, "lat", at.Lat, "lon", at.Lon)
		return domain.FlowSegment{}, false
	}
	c.metrics.GeoRequests.WithLabelValues(methodFlow, "success").Inc()
	return seg, true
}

// CalculateRoute returns a traffic-aware route through the waypoints in order.
// At least two waypoints are required.
func (c *Client) CalculateRoute(ctx context.Context, waypoints []domain.Coordinate) (domain.Route, bool) {
	if len(waypoints) < 2 {
		c.logger.Debug("route needs at least two waypoints", "waypoints", len(waypoints))
		return domain.Route{}, false
	}
	if !c.enabled(methodRoute) {
		return domain.Route{}, false
	}

	locs := make([]string, len(waypoints))
	for i, w := range waypoints {
		locs[i] = w.String()
	}
	params := url.Values{
		"key":              {c.apiKey},
		"instructionsType": {"text"},
		"traffic":          {"true"},
	}
	u := fmt.Sprintf("%s/routing/1/calculateRoute/%s/json?%s", c.baseURL, url.PathEscape(strings.Join(locs, ":")), params.Encode())

	var resp routeResponse
	if err := c.getJSON(ctx, methodRoute, u, &resp); err != nil {
		c.fail(methodRoute, err, "waypoints", len(waypoints))
		return domain.Route{}, false
	}

	route, ok := resp.toDomain()
	if !ok {
		c.empty(methodRoute, "waypoints", len(waypoints))
		return domain.Route{}, false
	}
	c.metrics.GeoRequests.WithLabelValues(methodRoute, "success").Inc()
	return route, true
}

// Geocode resolves a free-text query to its top match.
func (c *Client) Geocode(ctx context.Context, query string) (domain.GeocodeResult, bool) {
	if strings.TrimSpace(query) == "" {
		return domain.GeocodeResult{}, false
	}
	if !c.enabled(methodGeocode) {
		return domain.GeocodeResult{}, false
	}

	params := url.Values{
		"key":   {c.apiKey},
		"limit": {"1"},
	}
	if c.countryCode != "" {
		params.Set("countrySet", c.countryCode)
	}
	u := fmt.Sprintf("%s/search/2/geocode/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())

	var resp geocodeResponse
	if err := c.getJSON(ctx, methodGeocode, u, &resp); err != nil {
		c.fail(methodGeocode, err, "query", query)
		return domain.GeocodeResult{}, false
	}

	result, ok := resp.toDomain()
	if !ok {
		c.empty(methodGeocode, "query", query)
		return domain.GeocodeResult{}, false
	}
	c.metrics.GeoRequests.WithLabelValues(methodGeocode, "success").Inc()
	return result, true
}

func (c *Client) enabled(method string) bool {
	if c.apiKey != "" {
		return true
	}
	c.metrics.GeoRequests.WithLabelValues(method, "skipped").Inc()
	c.logger.Debug("geo lookup skipped", "method", method, "error", &domain.GeoLookupError{Op: method, Err: domain.ErrMissingAPIKey})
	return false
}

func (c *Client) fail(method string, err error, args ...any) {
	c.metrics.GeoRequests.WithLabelValues(method, "error").Inc()
	args = append(args, "error", &domain.GeoLookupError{Op: method, Err: err})
	c.logger.Warn("geo lookup failed", args...)
}

func (c *Client) empty(method string, args ...any) {
	c.metrics.GeoRequests.WithLabelValues(method, "empty").Inc()
	args = append(args, "error", &domain.GeoLookupError{Op: method, Err: domain.ErrNoResults})
	c.logger.Warn("geo lookup returned no data", args...)
}

func (c *Client) getJSON(ctx context.Context, method, fullURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeoAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tomtom API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("decode response: empty body")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
