package feed_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/feed"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Electoral Commission</title>
  <item>
    <title>Revised CAMPAIGN programme for presidential candidates</title>
    <link>https://nitter.net/UgandaEC/status/1</link>
    <pubDate>Mon, 05 Jan 2026 09:30:00 GMT</pubDate>
  </item>
  <item>
    <title>Voter register display exercise</title>
    <link>https://nitter.net/UgandaEC/status/2</link>
    <description>Verify your details at the parish.</description>
  </item>
  <item>
    <title>Notice</title>
    <link>https://nitter.net/UgandaEC/status/3</link>
    <description>Rally venues for Gulu confirmed.</description>
  </item>
</channel>
</rss>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newChecker(url string) (*feed.Checker, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return feed.NewChecker(url, []string{"campaign", "Rally", "schedule"}, 5*time.Second, discardLogger(), m), m
}

func TestCheck_MatchesKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, rss)
	}))
	defer srv.Close()

	c, m := newChecker(srv.URL)
	got, err := c.Check(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, domain.Announcement{
		Title:     "Revised CAMPAIGN programme for presidential candidates",
		Link:      "https://nitter.net/UgandaEC/status/1",
		Published: time.Date(2026, time.January, 5, 9, 30, 0, 0, time.UTC),
	}, got[0])
	assert.Equal(t, "https://nitter.net/UgandaEC/status/3", got[1].Link)
	assert.True(t, got[1].Published.IsZero())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FeedMatches))
}

func TestCheck_NonOKIsSoftSkip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newChecker(srv.URL)
	got, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheck_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := newChecker(url)
	err := c.Run(context.Background())

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, url, fe.URL)
}

func TestCheck_MalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not a feed")
	}))
	defer srv.Close()

	c, _ := newChecker(srv.URL)
	_, err := c.Check(context.Background())
	assert.Error(t, err)
}

func TestCheck_Disabled(t *testing.T) {
	c, _ := newChecker("")
	got, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
