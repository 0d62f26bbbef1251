// Package zone resolves calendar timestamps against a configured IANA zone.
package zone

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

var (
	// ErrUnknownZone is returned by Load for names the tz database does not know.
	ErrUnknownZone = errors.New("zone: unknown time zone")

	// ErrLocalization is the parent of both DST failure modes below.
	ErrLocalization = errors.New("zone: localization failed")

	// ErrNonexistentTime means the wall-clock time falls in a spring-forward gap.
	ErrNonexistentTime = fmt.Errorf("%w: nonexistent local time", ErrLocalization)

	// ErrAmbiguousTime means the wall-clock time occurs twice during a fall-back overlap.
	ErrAmbiguousTime = fmt.Errorf("%w: ambiguous local time", ErrLocalization)
)

// Zone is the localization capability consumed by the normalizer.
type Zone interface {
	// Localize interprets the wall-clock fields of naive as local time in
	// the zone. It fails when that wall time does not exist or is ambiguous.
	Localize(naive time.Time) (time.Time, error)
	// ToZone converts an aware instant into the zone.
	ToZone(aware time.Time) time.Time
	// Location returns the backing location.
	Location() *time.Location
}

// Location is a Zone backed by a *time.Location.
type Location struct {
	loc *time.Location
}

// New wraps loc. A nil loc means UTC.
func New(loc *time.Location) *Location {
	if loc == nil {
		loc = time.UTC
	}
	return &Location{loc: loc}
}

// Load resolves an IANA zone name.
func Load(name string) (*Location, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownZone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownZone, name, err)
	}
	return New(loc), nil
}

func (z *Location) Location() *time.Location {
	return z.loc
}

func (z *Location) String() string {
	return z.loc.String()
}

func (z *Location) ToZone(aware time.Time) time.Time {
	return aware.In(z.loc)
}

func (z *Location) Localize(naive time.Time) (time.Time, error) {
	y, mo, d := naive.Date()
	h, mi, s := naive.Clock()
	ns := naive.Nanosecond()

	t := time.Date(y, mo, d, h, mi, s, ns, z.loc)

	// time.Date silently normalizes wall times inside a gap.
	ty, tmo, td := t.Date()
	th, tmi, ts := t.Clock()
	if ty != y || tmo != mo || td != d || th != h || tmi != mi || ts != s {
		return time.Time{}, fmt.Errorf("%w: %s in %s", ErrNonexistentTime, naive.Format("2006-01-02T15:04:05"), z.loc)
	}

	if z.hasSecondReading(t, naive) {
		return time.Time{}, fmt.Errorf("%w: %s in %s", ErrAmbiguousTime, naive.Format("2006-01-02T15:04:05"), z.loc)
	}
	return t, nil
}

// hasSecondReading reports whether the same wall clock also maps to an
// instant under a neighbouring UTC offset.
func (z *Location) hasSecondReading(t, naive time.Time) bool {
	_, off := t.Zone()
	wall := time.Date(naive.Year(), naive.Month(), naive.Day(), naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(), time.UTC)

	for _, probe := range []time.Time{t.Add(-24 * time.Hour), t.Add(24 * time.Hour)} {
		_, other := probe.Zone()
		if other == off {
			continue
		}
		alt := wall.Add(-time.Duration(other) * time.Second).In(z.loc)
		if _, altOff := alt.Zone(); altOff != other {
			continue
		}
		if alt.Equal(t) {
			continue
		}
		ay, amo, ad := alt.Date()
		ah, ami, as := alt.Clock()
		if ay == naive.Year() && amo == naive.Month() && ad == naive.Day() &&
			ah == naive.Hour() && ami == naive.Minute() && as == naive.Second() {
			return true
		}
	}
	return false
}
