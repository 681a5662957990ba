package domain

import (
	"fmt"
	"strings"
)

const (
	blockMarker = "Date:"

	prefixCandidate = "Candidate:"
	prefixDistrict  = "District:"
	prefixVenue     = "Venue:"
	prefixTime      = "Time:"

	// DefaultEventTime is recorded when a block has no Time line.
	DefaultEventTime = "12:00 PM"
)

// ExtractEvents converts schedule document text into rally events, in block
// order. Malformed blocks are dropped.
func ExtractEvents(text string) []CandidateEvent {
	events, _ := ParseBlocks(text)
	return events
}

// ParseBlocks is ExtractEvents that also reports why each dropped block was
// rejected. Block numbers are 1-based and exclude the preamble.
func ParseBlocks(text string) ([]CandidateEvent, []*ParseError) {
	segments := strings.Split(text, blockMarker)
	if len(segments) < 2 {
		return nil, nil
	}

	var (
		events  []CandidateEvent
		skipped []*ParseError
	)
	for i, seg := range segments[1:] {
		ev, err := parseBlock(i+1, seg)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		events = append(events, ev)
	}
	return events, skipped
}

func parseBlock(n int, block string) (ev CandidateEvent, perr *ParseError) {
	defer func() {
		if r := recover(); r != nil {
			perr = &ParseError{Block: n, Reason: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	lines := nonEmptyLines(block)
	if len(lines) == 0 {
		return CandidateEvent{}, &ParseError{Block: n, Reason: "empty block"}
	}

	date := lines[0]
	candidate, _ := findField(lines, prefixCandidate)
	district, _ := findField(lines, prefixDistrict)
	venue, _ := findField(lines, prefixVenue)
	eventTime, ok := findField(lines, prefixTime)
	if !ok || eventTime == "" {
		eventTime = DefaultEventTime
	}

	var missing []string
	if candidate == "" {
		missing = append(missing, "candidate")
	}
	if district == "" {
		missing = append(missing, "district")
	}
	if venue == "" {
		missing = append(missing, "venue")
	}
	if len(missing) > 0 {
		return CandidateEvent{}, &ParseError{Block: n, Reason: "missing " + strings.Join(missing, ", ")}
	}

	return CandidateEvent{
		Title:       RallyTitle(candidate, district),
		Date:        date,
		Time:        eventTime,
		VenueName:   venue,
		District:    district,
		Candidate:   candidate,
		Description: RallyDescription(candidate, venue),
	}, nil
}

// RallyTitle synthesizes the title that, with the start time, forms a rally's natural key.
func RallyTitle(candidate, district string) string {
	return fmt.Sprintf("%s Rally in %s", candidate, district)
}

// RallyDescription synthesizes the stored rally description.
func RallyDescription(candidate, venue string) string {
	return fmt.Sprintf("Official campaign rally for %s at %s.", candidate, venue)
}

func nonEmptyLines(block string) []string {
	raw := strings.Split(block, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// findField returns the trimmed value of the first line starting with prefix.
func findField(lines []string, prefix string) (string, bool) {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(l, prefix)), true
		}
	}
	return "", false
}
