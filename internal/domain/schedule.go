package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RallyStartHour is the UTC hour every rally is recorded as starting.
	RallyStartHour = 12

	// RallyDuration is the fixed length of a rally.
	RallyDuration = 3 * time.Hour

	dateLayout = "2/1/2006"
)

// ScheduleTimes parses a day/month/year date and returns the rally's start
// (12:00 UTC) and end times. Single-digit days and months are accepted.
func ScheduleTimes(date string) (start, end time.Time, err error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, date, err)
	}
	start = time.Date(d.Year(), d.Month(), d.Day(), RallyStartHour, 0, 0, 0, time.UTC)
	return start, start.Add(RallyDuration), nil
}
