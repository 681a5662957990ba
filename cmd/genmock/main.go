// Command genmock writes a synthetic campaign programme for local runs and
// fixtures. The output uses the same block layout the extractor reads, as a
// PDF by default or as plain text with -text.
//
// Usage:
//
//	go run ./cmd/genmock -out testdata/programme.pdf -n 40 -start 12/01/2026
//	go run ./cmd/genmock -out testdata/programme.txt -text -malformed 2
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/adapter/docsource"
	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
)

const heading = "Harmonised Campaign Programme for Presidential Candidates"

var (
	candidates = []string{"Jane Akello", "Robert Kato", "Grace Namusoke", "Moses Okello"}
	districts  = []struct {
		name   string
		venues []string
	}{
		{"Kampala", []string{"Kololo Airstrip", "Nakivubo Stadium"}},
		{"Gulu", []string{"Pece Stadium", "Kaunda Grounds"}},
		{"Mbarara", []string{"Kakyeka Stadium", "Boma Grounds"}},
		{"Jinja", []string{"Bugembe Stadium"}},
		{"Lira", []string{"Akii Bua Stadium"}},
		{"Mbale", []string{"Mbale Municipal Grounds"}},
	}
	times = []string{"", "9:00 AM", "10:00 AM", "2:00 PM"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path")
	n := flag.Int("n", 20, "number of rally blocks")
	start := flag.String("start", "", "first rally date as day/month/year (default: tomorrow)")
	malformed := flag.Int("malformed", 0, "number of blocks written without a venue")
	asText := flag.Bool("text", false, "write plain text instead of PDF")
	seed := flag.Uint64("seed", 1, "random seed for reproducible output")
	flag.Parse()

	if *out == "" || *n <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -n > 0")
	}

	first := time.Now().UTC().AddDate(0, 0, 1)
	if *start != "" {
		s, _, err := domain.ScheduleTimes(*start)
		if err != nil {
			return err
		}
		first = s
	}

	events := generate(rand.New(rand.NewPCG(*seed, *seed)), first, *n, *malformed)

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	if *asText {
		err = docsource.RenderScheduleText(f, heading, events)
	} else {
		err = docsource.RenderSchedulePDF(f, heading, events)
	}
	if err != nil {
		return err
	}

	log.Printf("wrote %d blocks (%d malformed) to %s", len(events), min(*malformed, len(events)), *out)
	return nil
}

// generate spreads rallies over consecutive days, two per day. The last
// malformed blocks lose their venue.
func generate(r *rand.Rand, first time.Time, n, malformed int) []domain.CandidateEvent {
	events := make([]domain.CandidateEvent, 0, n)
	for i := range n {
		day := first.AddDate(0, 0, i/2)
		d := districts[r.IntN(len(districts))]
		ev := domain.CandidateEvent{
			Date:      day.Format("2/1/2006"),
			Candidate: candidates[i%len(candidates)],
			District:  d.name,
			VenueName: d.venues[r.IntN(len(d.venues))],
			Time:      times[r.IntN(len(times))],
		}
		if i >= n-malformed {
			ev.VenueName = ""
		}
		events = append(events, ev)
	}
	return events
}
