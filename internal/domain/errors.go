package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrMissingAPIKey marks geo lookups skipped because no provider key is configured.
	ErrMissingAPIKey = errors.New("geo provider API key not configured")

	// ErrNoResults marks a geo lookup that succeeded but matched nothing.
	ErrNoResults = errors.New("no results")

	// ErrInvalidDate marks a rally whose date is not day/month/year.
	ErrInvalidDate = errors.New("invalid rally date")
)

// FetchError reports an unreachable landing page or document.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a schedule block that did not yield an event.
type ParseError struct {
	Block  int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse block %d: %s: %v", e.Block, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse block %d: %s", e.Block, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GeoLookupError reports a failed geo provider call. It is logged, never returned to callers.
type GeoLookupError struct {
	Op  string
	Err error
}

func (e *GeoLookupError) Error() string {
	return fmt.Sprintf("geo %s: %v", e.Op, e.Err)
}

func (e *GeoLookupError) Unwrap() error { return e.Err }

// PersistError reports a failed storage write for one item.
type PersistError struct {
	Entity string
	Key    string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s %q: %v", e.Entity, e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// JobError wraps any failure or panic raised by a scheduled job body.
type JobError struct {
	Job string
	Err error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.Job, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
