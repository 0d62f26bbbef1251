package analysis

import (
	"time"

	"github.com/antonio-leblanc/working-hours/internal/model"
)

// Overlaps uses half-open semantics: an event ending exactly at iv.Start or
// starting exactly at iv.End does not overlap.
func Overlaps(ev model.NormalizedEvent, iv model.Interval) bool {
	return ev.StartLocal.Before(iv.End) && ev.EndLocal.After(iv.Start)
}

// Clip returns the portion of ev inside iv. ok is false when the event does
// not overlap or the clipped span is not positive.
func Clip(ev model.NormalizedEvent, iv model.Interval) (start, end time.Time, d time.Duration, ok bool) {
	if !Overlaps(ev, iv) {
		return time.Time{}, time.Time{}, 0, false
	}

	start = ev.StartLocal
	if iv.Start.After(start) {
		start = iv.Start
	}
	end = ev.EndLocal
	if iv.End.Before(end) {
		end = iv.End
	}

	d = end.Sub(start)
	if d <= 0 {
		return time.Time{}, time.Time{}, 0, false
	}
	return start, end, d, true
}

// PastInterval reports whether ev starts after the interval closes. With a
// start-sorted stream nothing after such an event can overlap.
func PastInterval(ev model.NormalizedEvent, iv model.Interval) bool {
	return ev.StartLocal.After(iv.End)
}
