package model

import "time"

// Uncategorized is the work bucket used when an event carries no
// non-personal category.
const Uncategorized = "Uncategorized"

// Timestamp is a raw event boundary as delivered by an event source. It is
// either aware (the instant is fully determined) or floating, in which case
// only the wall-clock fields of Time are meaningful and the instant must be
// resolved against the configured zone.
type Timestamp struct {
	Time     time.Time
	Floating bool
}

// Aware wraps a fully-determined instant.
func Aware(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Naive builds a floating wall-clock timestamp.
func Naive(year int, month time.Month, day, hour, min, sec, nsec int) Timestamp {
	return Timestamp{
		Time:     time.Date(year, month, day, hour, min, sec, nsec, time.UTC),
		Floating: true,
	}
}

// IsZero reports whether the timestamp is absent.
func (ts Timestamp) IsZero() bool {
	return ts.Time.IsZero()
}

// RawEvent is a single calendar entry as produced by an event source.
// The core never mutates it.
type RawEvent struct {
	// SourceID / UID identify where the event came from; informational only.
	SourceID string
	UID      string

	Subject string
	Start   Timestamp
	End     Timestamp

	// Categories is the raw, semicolon-delimited tag string. May be empty.
	Categories string
}

// NormalizedEvent is a RawEvent with both boundaries resolved into the
// configured zone and its categories parsed.
//
// StartLocal <= EndLocal is not guaranteed; malformed upstream data is
// tolerated and handled by clipping.
type NormalizedEvent struct {
	Subject    string
	StartLocal time.Time
	EndLocal   time.Time

	// Categories holds the trimmed, non-empty, de-duplicated tags in their
	// original split order.
	Categories []string
}

// HasCategory reports whether tag is one of the event's categories.
func (e NormalizedEvent) HasCategory(tag string) bool {
	for _, c := range e.Categories {
		if c == tag {
			return true
		}
	}
	return false
}

// Interval is the closed analysis window [Start, End] plus a display label.
type Interval struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contribution is the clipped share of one overlapping event.
type Contribution struct {
	Subject        string
	EffectiveStart time.Time
	EffectiveEnd   time.Time
	Duration       time.Duration
	Personal       bool
	WorkCategory   string
}

// Weekday returns the contribution's weekday with Monday as 0 and Sunday as 6.
func (c Contribution) Weekday() int {
	return MondayIndex(c.EffectiveStart.Weekday())
}

// Date returns the calendar date of the clipped start.
func (c Contribution) Date() Date {
	return DateOf(c.EffectiveStart)
}

// MondayIndex maps time.Weekday (Sunday=0) onto a Monday-first index.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// IsWorkingDay reports whether wd falls Monday through Friday.
func IsWorkingDay(wd time.Weekday) bool {
	return wd != time.Saturday && wd != time.Sunday
}
