package ics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the analysis zone. Floating timestamps are ordered as if
	// they were local to it. If nil, time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd bound the recurrence instances that are
	// generated. Non-recurring events are always emitted.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap against runaway rules. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int

	Logger *appLog.Logger
}

// ExpandResult wraps the expanded events and the UIDs that were truncated.
type ExpandResult struct {
	// Events are sorted ascending by start, which the analysis requires.
	Events          []model.RawEvent
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into raw events:
//
//   - single events pass through unchanged
//   - RRULE/RDATE series are expanded within the configured range
//   - EXDATE removes instances
//   - RECURRENCE-ID overrides replace the matching instance
//
// The result is sorted by start so the analysis can stop early.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand range end is before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	if cfg.Logger == nil {
		cfg.Logger = appLog.Default()
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.RawEvent, 0, len(events))
	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			if ev.RawRRule == "" && len(ev.RDates) == 0 {
				out = append(out, toRaw(pickOverride(ev, ov, ev.Start)))
				continue
			}
			occ, hitCap := expandRecurring(ev, ov, cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			cfg.Logger.Warn("ics expand truncated occurrences", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	// Overrides whose base event is absent still describe a real meeting.
	for uid, ovs := range overridesByUID {
		if _, ok := baseByUID[uid]; ok {
			continue
		}
		for _, o := range ovs {
			out = append(out, toRaw(o))
		}
	}

	SortByStart(out, cfg.Location)
	result.Events = out
	return result, nil
}

// SortByStart orders events by their start instant in loc. Floating
// timestamps are read as wall time in loc.
func SortByStart(events []model.RawEvent, loc *time.Location) {
	sort.SliceStable(events, func(i, j int) bool {
		return instantIn(events[i].Start, loc).Before(instantIn(events[j].Start, loc))
	})
}

func instantIn(ts model.Timestamp, loc *time.Location) time.Time {
	if !ts.Floating {
		return ts.Time
	}
	t := ts.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.RawEvent, bool) {
	out := make([]model.RawEvent, 0)
	hitCap := false

	var set rrule.Set
	set.DTStart(ev.Start.Time)

	if ev.RawRRule != "" {
		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			cfg.Logger.Error("ics expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
			return []model.RawEvent{toRaw(ev)}, false
		}
		r.DTStart(ev.Start.Time)
		set.RRule(r)
	} else {
		set.RDate(ev.Start.Time)
	}
	for _, rd := range ev.RDates {
		set.RDate(alignTo(rd, ev.Start))
	}
	for _, ex := range ev.ExDates {
		set.ExDate(alignTo(ex, ev.Start))
	}

	// Instances that begin before the range may still run into it.
	dur := ev.Duration()
	if dur < 0 {
		dur = 0
	}
	from := rangeIn(cfg.RangeStart.Add(-dur), ev.Start, cfg.Location)
	to := rangeIn(cfg.RangeEnd, ev.Start, cfg.Location)

	occTimes := set.Between(from, to, true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		inst := ev
		inst.Start = model.Timestamp{Time: occStart, Floating: ev.Start.Floating}
		if ev.AllDay {
			inst.End = model.Timestamp{Time: occStart.AddDate(0, 0, allDaySpan(ev)), Floating: ev.End.Floating}
		} else {
			inst.End = model.Timestamp{Time: occStart.Add(ev.Duration()), Floating: ev.End.Floating}
		}
		out = append(out, toRaw(pickOverride(inst, overrides, inst.Start)))
	}

	return out, hitCap
}

// allDaySpan is the number of calendar days an all-day event covers, at
// least one.
func allDaySpan(ev ParsedEvent) int {
	days := model.DateOf(ev.Start.Time).DaysUntil(model.DateOf(ev.End.Time))
	if days < 1 {
		return 1
	}
	return days
}

// pickOverride returns the override whose RECURRENCE-ID equals start, or
// inst unchanged.
func pickOverride(inst ParsedEvent, overrides []ParsedEvent, start model.Timestamp) ParsedEvent {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if alignTo(*ov.Recurrence, start).Equal(start.Time) {
			return ov
		}
	}
	return inst
}

// alignTo expresses ts in the same frame as ref: floating values share
// wall-clock fields in UTC, aware values share the ref location.
func alignTo(ts, ref model.Timestamp) time.Time {
	if ref.Floating {
		t := ts.Time
		if !ts.Floating {
			t = t.In(time.UTC)
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	if ts.Floating {
		t := ts.Time
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), ref.Time.Location())
	}
	return ts.Time.In(ref.Time.Location())
}

// rangeIn converts a range bound into the frame used by ref's recurrence.
func rangeIn(bound time.Time, ref model.Timestamp, loc *time.Location) time.Time {
	if !ref.Floating {
		return bound.In(ref.Time.Location())
	}
	b := bound.In(loc)
	return time.Date(b.Year(), b.Month(), b.Day(), b.Hour(), b.Minute(), b.Second(), b.Nanosecond(), time.UTC)
}

func toRaw(ev ParsedEvent) model.RawEvent {
	return model.RawEvent{
		SourceID:   ev.Source.ID,
		UID:        ev.UID,
		Subject:    ev.Summary,
		Start:      ev.Start,
		End:        ev.End,
		Categories: joinCategories(ev.Categories),
	}
}

// joinCategories builds the ";"-separated list carried by RawEvent. An
// escaped semicolon inside a single tag becomes a comma so the tag is not
// split apart again.
func joinCategories(tags []string) string {
	clean := make([]string, len(tags))
	for i, t := range tags {
		clean[i] = strings.ReplaceAll(t, ";", ",")
	}
	return strings.Join(clean, ";")
}
