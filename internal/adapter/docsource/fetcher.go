package docsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
)

const (
	maxPageBytes     = 5 << 20
	maxDocumentBytes = 50 << 20
	userAgent        = "rally-traffic-etl/1.0"
)

// Options controls link discovery.
type Options struct {
	// BaseURL resolves site-relative document links.
	BaseURL string
	// Suffix is the document extension links must end in, e.g. ".pdf".
	Suffix string
	// Keywords is the allow-list; a link is kept if its lower-cased URL contains any of them.
	Keywords []string
	Timeout  time.Duration
}

// Fetcher discovers schedule documents on a landing page and downloads them.
type Fetcher struct {
	opts       Options
	base       *url.URL
	httpClient *http.Client
	pdf        *PDFText
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewFetcher creates a Fetcher. It fails only when BaseURL cannot be parsed.
func NewFetcher(opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Fetcher, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	keywords := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	opts.Keywords = keywords
	opts.Suffix = strings.ToLower(opts.Suffix)

	return &Fetcher{
		opts:       opts,
		base:       base,
		httpClient: &http.Client{Timeout: opts.Timeout},
		pdf:        NewPDFText(),
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Discover fetches the landing page and returns the relevant document URLs
// in first-seen order, without duplicates.
func (f *Fetcher) Discover(ctx context.Context, pageURL string) ([]string, error) {
	body, err := f.get(ctx, pageURL, maxPageBytes)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.FetchError{URL: pageURL, Err: fmt.Errorf("parse landing page: %w", err)}
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := f.documentLink(href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	f.metrics.DocumentsDiscovered.Add(float64(len(links)))
	f.logger.Info("schedule documents discovered", "url", pageURL, "count", len(links))
	return links, nil
}

// documentLink resolves href and applies the suffix and keyword filters.
func (f *Fetcher) documentLink(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(ref.Path), f.opts.Suffix) {
		return "", false
	}

	var abs *url.URL
	switch {
	case ref.IsAbs():
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", false
		}
		abs = ref
	default:
		if !strings.HasPrefix(ref.Path, "/") && ref.Host == "" {
			ref.Path = "/" + ref.Path
		}
		abs = f.base.ResolveReference(ref)
	}
	abs.Fragment = ""
	link := abs.String()

	lower := strings.ToLower(link)
	for _, k := range f.opts.Keywords {
		if strings.Contains(lower, k) {
			return link, true
		}
	}
	return "", false
}

// Download returns the raw bytes of a document.
func (f *Fetcher) Download(ctx context.Context, docURL string) ([]byte, error) {
	return f.get(ctx, docURL, maxDocumentBytes)
}

// Text converts a downloaded document to plain text. PDFs are decoded; any
// other payload is treated as UTF-8 text.
func (f *Fetcher) Text(data []byte) (string, error) {
	if IsPDF(data) {
		return f.pdf.Extract(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is neither PDF nor UTF-8 text")
	}
	return string(data), nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > limit {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", limit)}
	}
	return body, nil
}
