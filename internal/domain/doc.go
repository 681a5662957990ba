// Package domain models campaign rallies published in an electoral
// commission's campaign programme, and the traffic forecasts derived for them.
//
// # Data Source
//
// The commission republishes its campaign programme as a PDF linked from a
// landing page. Each rally occupies one block of the document text:
//
//	Date: 12/01/2026
//	Candidate: John Doe
//	District: Kampala
//	Venue: Kololo Airstrip
//	Time: 10:00 AM
//
// Blocks are delimited by the "Date:" marker; text before the first marker is
// the document preamble and is discarded. Field prefixes are case-exact and
// the first matching line wins. Date, Candidate, District and Venue are
// required; Time defaults to [DefaultEventTime].
//
// # Schedule Times
//
// Dates are day/month/year. The document's time-of-day is informational only:
// every rally is stored as starting at 12:00 UTC on its date and ending
// [RallyDuration] later. See [ScheduleTimes].
//
// # Natural Key
//
// A rally is identified across ingestions by (title, start time). The title
// is synthesized deterministically from candidate and district, so
// re-ingesting the same document updates rows instead of adding new ones.
//
// # Congestion Classification
//
// A forecast compares current road speed with free-flow speed at the rally's
// coordinate. The ratio maps to a jam level over half-open intervals:
//
//	ratio < 0.50         critical  +60 min
//	0.50 <= ratio < 0.75 heavy     +45 min
//	ratio >= 0.75        moderate  +30 min
//
// Missing flow data is classified as moderate. See [ClassifyFlow].
package domain
