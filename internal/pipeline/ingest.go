package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
)

// DocumentSource finds and reads schedule documents.
type DocumentSource interface {
	Discover(ctx context.Context, pageURL string) ([]string, error)
	Download(ctx context.Context, docURL string) ([]byte, error)
	Text(data []byte) (string, error)
}

// IngestStats summarises one ingestion cycle or document.
type IngestStats struct {
	Documents int
	Failed    int
	Events    int
	Skipped   int
	Persisted int
	Errors    int
}

func (s *IngestStats) add(o IngestStats) {
	s.Documents += o.Documents
	s.Failed += o.Failed
	s.Events += o.Events
	s.Skipped += o.Skipped
	s.Persisted += o.Persisted
	s.Errors += o.Errors
}

// Ingestor runs the fetch, extract, resolve and persist cycle.
type Ingestor struct {
	source    DocumentSource
	resolver  *Resolver
	persister *Persister
	publisher RallyPublisher
	pageURL   string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewIngestor wires an ingestion cycle. publisher may be nil.
func NewIngestor(source DocumentSource, resolver *Resolver, persister *Persister, publisher RallyPublisher, pageURL string, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		source:    source,
		resolver:  resolver,
		persister: persister,
		publisher: publisher,
		pageURL:   pageURL,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one ingestion cycle. Only a failure to read the landing page
// is returned; document and event failures are logged and skipped.
func (in *Ingestor) Run(ctx context.Context) error {
	start := time.Now()

	urls, err := in.source.Discover(ctx, in.pageURL)
	if err != nil {
		in.logger.Error("schedule discovery failed, aborting cycle", "url", in.pageURL, "error", err)
		return err
	}

	var total IngestStats
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		total.add(in.ingestURL(ctx, u))
	}

	in.logger.Info("ingestion cycle complete",
		"documents", total.Documents,
		"failed_documents", total.Failed,
		"events", total.Events,
		"skipped_blocks", total.Skipped,
		"persisted", total.Persisted,
		"errors", total.Errors,
		"duration", time.Since(start),
	)
	return nil
}

func (in *Ingestor) ingestURL(ctx context.Context, docURL string) IngestStats {
	data, err := in.source.Download(ctx, docURL)
	if err != nil {
		in.metrics.DocumentsFailed.Inc()
		in.logger.Warn("document download failed", "url", docURL, "error", err)
		return IngestStats{Documents: 1, Failed: 1}
	}

	text, err := in.source.Text(data)
	if err != nil {
		in.metrics.DocumentsFailed.Inc()
		in.logger.Warn("document text extraction failed", "url", docURL, "error", err)
		return IngestStats{Documents: 1, Failed: 1}
	}

	stats := in.IngestDocument(ctx, docURL, text)
	stats.Documents = 1
	return stats
}

// IngestDocument extracts, resolves and persists the events in one document's
// text, in block order, then publishes the stored rallies.
func (in *Ingestor) IngestDocument(ctx context.Context, sourceURL, text string) IngestStats {
	events, skipped := domain.ParseBlocks(text)
	for _, perr := range skipped {
		in.logger.Warn("schedule block skipped", "url", sourceURL, "block", perr.Block, "reason", perr.Reason, "error", perr.Err)
	}
	in.metrics.BlocksSkipped.Add(float64(len(skipped)))
	in.metrics.EventsExtracted.Add(float64(len(events)))

	stats := IngestStats{Events: len(events), Skipped: len(skipped)}
	stored := make([]domain.Rally, 0, len(events))

	for _, ev := range events {
		ids, err := in.resolver.Resolve(ctx, ev)
		if err != nil {
			in.metrics.PersistErrors.WithLabelValues(entityOf(err)).Inc()
			in.logger.Error("entity resolution failed", "title", ev.Title, "error", err)
			stats.Errors++
			continue
		}

		rally, err := in.persister.Persist(ctx, ev, ids, sourceURL)
		if errors.Is(err, domain.ErrInvalidDate) {
			in.logger.Warn("rally skipped, malformed date", "title", ev.Title, "date", ev.Date, "error", err)
			stats.Skipped++
			continue
		}
		if err != nil {
			in.logger.Error("rally save failed", "title", ev.Title, "error", err)
			stats.Errors++
			continue
		}
		stored = append(stored, rally)
	}
	stats.Persisted = len(stored)

	in.logger.Info("document ingested", "url", sourceURL, "events", stats.Events, "persisted", stats.Persisted)
	in.publish(ctx, sourceURL, stored)
	return stats
}

func (in *Ingestor) publish(ctx context.Context, sourceURL string, rallies []domain.Rally) {
	if in.publisher == nil || len(rallies) == 0 {
		return
	}
	if err := in.publisher.PublishRallies(ctx, sourceURL, rallies); err != nil {
		in.logger.Warn("rally publish failed", "url", sourceURL, "count", len(rallies), "error", err)
		return
	}
	in.metrics.RalliesPublished.Add(float64(len(rallies)))
}

func entityOf(err error) string {
	var pe *domain.PersistError
	if errors.As(err, &pe) {
		return pe.Entity
	}
	return "unknown"
}
