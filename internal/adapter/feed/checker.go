// Package feed watches an announcements RSS feed for schedule news.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"github.com/mmcdole/gofeed"
)

// Checker reads a feed and reports items mentioning any keyword.
type Checker struct {
	url        string
	keywords   []string
	httpClient *http.Client
	parser     *gofeed.Parser
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewChecker creates a Checker. Keywords match case-insensitively.
func NewChecker(feedURL string, keywords []string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Checker {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Checker{
		url:        feedURL,
		keywords:   kw,
		httpClient: &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		logger:     logger,
		metrics:    metrics,
	}
}

// Run is Check for use as a scheduled job.
func (c *Checker) Run(ctx context.Context) error {
	_, err := c.Check(ctx)
	return err
}

// Check fetches the feed and returns the matching items. A non-2xx response
// is logged and yields no matches.
func (c *Checker) Check(ctx context.Context) ([]domain.Announcement, error) {
	if c.url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, &domain.FetchError{URL: c.url, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: c.url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("announcement feed unavailable", "url", c.url, "status", resp.StatusCode)
		return nil, nil
	}

	parsed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", c.url, err)
	}

	var matches []domain.Announcement
	for _, item := range parsed.Items {
		if !c.matches(item.Title + " " + item.Description) {
			continue
		}
		a := domain.Announcement{Title: strings.TrimSpace(item.Title), Link: item.Link}
		if item.PublishedParsed != nil {
			a.Published = item.PublishedParsed.UTC()
		}
		matches = append(matches, a)
		c.logger.Info("schedule announcement found", "title", a.Title, "link", a.Link)
	}

	c.metrics.FeedMatches.Add(float64(len(matches)))
	c.logger.Info("announcement feed checked", "items", len(parsed.Items), "matches", len(matches))
	return matches, nil
}

func (c *Checker) matches(text string) bool {
	text = strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
