// Command validate checks a campaign programme document offline. It runs the
// extraction and persistence stages against an in-memory store, without
// network access, and reports what a live ingestion cycle would do with it.
//
// Usage:
//
//	go run ./cmd/validate -file testdata/programme.pdf
//	go run ./cmd/validate -file programme.txt -json rallies.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/docsource"
	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/memory"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/couchcryptid/rally-traffic-etl/internal/observability"
	"github.com/couchcryptid/rally-traffic-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "programme document to validate (PDF or text)")
	source := flag.String("source", "", "source URL recorded on rallies (default: the file path)")
	jsonOut := flag.String("json", "", "optional path to write the resulting rallies as JSON")
	verbose := flag.Bool("v", false, "log pipeline activity to stdout before the report")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *source == "" {
		*source = *file
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = sharedobs.NewLogger("debug", "text")
	}

	os.Exit(run(*file, *source, *jsonOut, logger))
}

func run(path, sourceURL, jsonOut string, logger *slog.Logger) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read document: %v\n", err)
		return 1
	}
	text, err := documentText(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: extract text: %v\n", err)
		return 1
	}

	events, skipped := domain.ParseBlocks(text)

	store := memory.New()
	metrics := observability.NewMetricsForTesting()
	resolver := pipeline.NewResolver(store, logger)
	persister := pipeline.NewPersister(store, domain.NoopGeoProvider{}, pipeline.PersisterOptions{}, logger, metrics)
	ingestor := pipeline.NewIngestor(nil, resolver, persister, nil, "", logger, metrics)

	first := ingestor.IngestDocument(context.Background(), sourceURL, text)
	afterFirst := store.Rallies()
	second := ingestor.IngestDocument(context.Background(), sourceURL, text)
	afterSecond := store.Rallies()

	// Pipeline logs, if enabled, are all written before the report starts.
	fmt.Println("=== Campaign Programme Validation ===")
	fmt.Println()

	phases := []*phase{
		validateBlocks(skipped),
		validateDates(events),
		validateNaturalKeys(events),
		validateIdempotency(first, second, afterFirst, afterSecond),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Blocks: %d extracted, %d skipped; rallies: %d stored, %d candidates, %d districts\n",
		len(events), len(skipped), len(afterSecond), len(store.Candidates()), len(store.Districts()))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if jsonOut != "" {
		if err := writeJSON(jsonOut, afterSecond); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write rallies: %v\n", err)
			return 1
		}
		fmt.Printf("\nWrote %d rallies to %s\n", len(afterSecond), jsonOut)
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func documentText(data []byte) (string, error) {
	if docsource.IsPDF(data) {
		return docsource.NewPDFText().Extract(data)
	}
	return string(data), nil
}

func validateBlocks(skipped []*domain.ParseError) *phase {
	p := &phase{name: "Block extraction"}
	for _, s := range skipped {
		p.errorf("block %d: %s", s.Block, s.Reason)
	}
	return p
}

func validateDates(events []domain.CandidateEvent) *phase {
	p := &phase{name: "Schedule dates"}
	for _, ev := range events {
		if _, _, err := domain.ScheduleTimes(ev.Date); err != nil {
			p.errorf("%s: %v", ev.Title, err)
		}
	}
	return p
}

// validateNaturalKeys flags events that would overwrite one another.
func validateNaturalKeys(events []domain.CandidateEvent) *phase {
	p := &phase{name: "Natural key uniqueness"}
	seen := make(map[string]int)
	for i, ev := range events {
		start, _, err := domain.ScheduleTimes(ev.Date)
		if err != nil {
			continue
		}
		key := ev.Title + "@" + start.Format("2006-01-02")
		if j, ok := seen[key]; ok {
			p.errorf("event %d (%s) replaces event %d on %s", i+1, ev.Title, j+1, start.Format("2006-01-02"))
			continue
		}
		seen[key] = i
	}
	return p
}

func validateIdempotency(first, second pipeline.IngestStats, before, after []domain.Rally) *phase {
	p := &phase{name: "Re-ingestion idempotency"}
	if first.Persisted != second.Persisted {
		p.errorf("persisted %d rallies on first pass, %d on second", first.Persisted, second.Persisted)
	}
	if len(before) != len(after) {
		p.errorf("rally count changed from %d to %d", len(before), len(after))
		return p
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			p.errorf("%s: ID changed from %s to %s", before[i].Title, before[i].ID, after[i].ID)
		}
	}
	return p
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
