// Package period turns period selections into concrete analysis intervals.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antonio-leblanc/working-hours/internal/model"
)

// ErrInvalidPeriod is returned for out-of-range or malformed period parameters.
var ErrInvalidPeriod = errors.New("period: invalid period")

// Kind enumerates the supported period selections.
type Kind int

const (
	CurrentWeek Kind = iota
	CurrentMonth
	ISOWeek
	Month
	Range
)

func (k Kind) String() string {
	switch k {
	case CurrentWeek:
		return "week"
	case CurrentMonth:
		return "month"
	case ISOWeek:
		return "isoweek"
	case Month:
		return "monthof"
	case Range:
		return "range"
	default:
		return "unknown"
	}
}

// Spec is a period selection. Only the fields relevant to Kind are read.
type Spec struct {
	Kind  Kind
	Year  int
	Week  int
	Month time.Month
	From  model.Date
	To    model.Date
}

func ForCurrentWeek() Spec { return Spec{Kind: CurrentWeek} }

func ForCurrentMonth() Spec { return Spec{Kind: CurrentMonth} }

func ForISOWeek(year, week int) Spec { return Spec{Kind: ISOWeek, Year: year, Week: week} }

func ForMonth(year int, month time.Month) Spec {
	return Spec{Kind: Month, Year: year, Month: month}
}

func ForRange(from, to model.Date) Spec { return Spec{Kind: Range, From: from, To: to} }

// Resolver produces intervals in a fixed location.
type Resolver struct {
	// Location is the configured zone. Nil means time.Local.
	Location *time.Location
	// WeekStart is the first day of a CurrentWeek. ISO weeks always start on Monday.
	WeekStart time.Weekday
}

// NewResolver returns a Resolver with Monday-start weeks.
func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{Location: loc, WeekStart: time.Monday}
}

func (r *Resolver) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

// Resolve maps spec onto a closed interval. now is only read for
// CurrentWeek and CurrentMonth.
func (r *Resolver) Resolve(spec Spec, now time.Time) (model.Interval, error) {
	loc := r.location()
	now = now.In(loc)

	switch spec.Kind {
	case CurrentWeek:
		today := model.DateOf(now)
		back := (int(today.Weekday()) - int(r.WeekStart) + 7) % 7
		first := today.AddDays(-back)
		last := first.AddDays(6)
		return r.span(first, last, fmt.Sprintf("Current week (%s to %s)", first, last)), nil

	case CurrentMonth:
		first, last := monthBounds(now.Year(), now.Month())
		return r.span(first, last, fmt.Sprintf("%s %d (%s to %s)", now.Month(), now.Year(), first, last)), nil

	case ISOWeek:
		if spec.Week < 1 || spec.Week > ISOWeeksInYear(spec.Year) {
			return model.Interval{}, fmt.Errorf("%w: week %d out of range for %d", ErrInvalidPeriod, spec.Week, spec.Year)
		}
		first := ISOWeekMonday(spec.Year, spec.Week)
		last := first.AddDays(6)
		return r.span(first, last, fmt.Sprintf("ISO week %d of %d (%s to %s)", spec.Week, spec.Year, first, last)), nil

	case Month:
		if spec.Month < time.January || spec.Month > time.December {
			return model.Interval{}, fmt.Errorf("%w: month %d not in 1..12", ErrInvalidPeriod, int(spec.Month))
		}
		first, last := monthBounds(spec.Year, spec.Month)
		return r.span(first, last, fmt.Sprintf("%s %d (%s to %s)", spec.Month, spec.Year, first, last)), nil

	case Range:
		if spec.From == (model.Date{}) || spec.To == (model.Date{}) {
			return model.Interval{}, fmt.Errorf("%w: range needs both dates", ErrInvalidPeriod)
		}
		if spec.To.Before(spec.From) {
			return model.Interval{}, fmt.Errorf("%w: end date %s precedes start date %s", ErrInvalidPeriod, spec.To, spec.From)
		}
		return r.span(spec.From, spec.To, fmt.Sprintf("%s to %s", spec.From, spec.To)), nil

	default:
		return model.Interval{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidPeriod, int(spec.Kind))
	}
}

func (r *Resolver) span(first, last model.Date, label string) model.Interval {
	loc := r.location()
	return model.Interval{
		Start: first.In(loc),
		End:   EndOfDay(last, loc),
		Label: label,
	}
}

// EndOfDay returns 23:59:59.999999 of d in loc.
func EndOfDay(d model.Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 999999000, loc)
}

func monthBounds(year int, month time.Month) (model.Date, model.Date) {
	first := model.Date{Year: year, Month: month, Day: 1}
	last := model.DateOf(first.In(time.UTC).AddDate(0, 1, -1))
	return first, last
}

// ISOWeeksInYear returns 52 or 53. December 28th always lies in the last ISO week.
func ISOWeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// ISOWeekMonday returns the Monday of ISO week w of year. January 4th always
// lies in week 1.
func ISOWeekMonday(year, week int) model.Date {
	jan4 := model.Date{Year: year, Month: time.January, Day: 4}
	week1 := jan4.AddDays(-model.MondayIndex(jan4.Weekday()))
	return week1.AddDays((week - 1) * 7)
}

// Parse maps a textual period selection onto a Spec:
//
//	week
//	month
//	isoweek <year> <week>
//	monthof <year> <month>
//	range <YYYY-MM-DD> <YYYY-MM-DD>
func Parse(kind string, args ...string) (Spec, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "week", "current-week":
		return ForCurrentWeek(), nil
	case "month", "current-month":
		return ForCurrentMonth(), nil
	case "isoweek":
		y, w, err := twoInts(kind, args)
		if err != nil {
			return Spec{}, err
		}
		return ForISOWeek(y, w), nil
	case "monthof":
		y, m, err := twoInts(kind, args)
		if err != nil {
			return Spec{}, err
		}
		return ForMonth(y, time.Month(m)), nil
	case "range":
		if len(args) != 2 {
			return Spec{}, fmt.Errorf("%w: range needs <from> <to>", ErrInvalidPeriod)
		}
		from, err := model.ParseDate(args[0])
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
		}
		to, err := model.ParseDate(args[1])
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
		}
		return ForRange(from, to), nil
	default:
		return Spec{}, fmt.Errorf("%w: unknown period kind %q", ErrInvalidPeriod, kind)
	}
}

func twoInts(kind string, args []string) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%w: %s needs two numbers", ErrInvalidPeriod, kind)
	}
	a, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPeriod, args[0])
	}
	b, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPeriod, args[1])
	}
	return a, b, nil
}
