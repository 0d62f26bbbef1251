package analysis

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
	"github.com/antonio-leblanc/working-hours/internal/zone"
)

func testZone(t *testing.T) *zone.Location {
	t.Helper()
	z, err := zone.Load("America/Sao_Paulo")
	require.NoError(t, err)
	return z
}

func dayInterval(loc *time.Location, y int, m time.Month, d int) model.Interval {
	return model.Interval{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d, 23, 59, 59, 999999000, loc),
	}
}

func naiveEvent(subject, categories string, start, end time.Time) model.RawEvent {
	return model.RawEvent{
		Subject:    subject,
		Start:      model.Naive(start.Year(), start.Month(), start.Day(), start.Hour(), start.Minute(), 0, 0),
		End:        model.Naive(end.Year(), end.Month(), end.Day(), end.Hour(), end.Minute(), 0, 0),
		Categories: categories,
	}
}

type countingObserver struct {
	skipped     map[string]int
	contributed int
	finished    int
}

func (o *countingObserver) EventSkipped(reason string) {
	if o.skipped == nil {
		o.skipped = make(map[string]int)
	}
	o.skipped[reason]++
}

func (o *countingObserver) EventContributed(bool, time.Duration) { o.contributed++ }

func (o *countingObserver) RunFinished(Stats, time.Duration) { o.finished++ }

func newTestAnalyzer(t *testing.T, full bool) (*Analyzer, *zone.Location) {
	z := testZone(t)
	return New(Config{
		Zone:        z,
		PersonalTag: "Pessoal",
		FullScan:    full,
		Logger:      appLog.Discard(),
	}), z
}

func TestPersonalTagDominates(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	loc := z.Location()
	iv := model.Interval{
		Start: time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 3, 17, 23, 59, 59, 999999000, loc),
	}

	res := a.Run(iv, FromSlice([]model.RawEvent{
		naiveEvent("Gym", "Dev;Pessoal",
			time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
	}))

	require.Equal(t, 4*time.Hour, res.State.TotalPersonal)
	require.Zero(t, res.State.TotalWork)
	require.Zero(t, res.State.ByCategory["Dev"])
	require.Empty(t, res.State.ByCategory)
	require.Empty(t, res.State.WorkDates)
}

func TestMidnightCrossingEventIsClipped(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	iv := dayInterval(z.Location(), 2024, 3, 11)

	res := a.Run(iv, FromSlice([]model.RawEvent{
		naiveEvent("Deploy", "Ops",
			time.Date(2024, 3, 11, 22, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 12, 2, 0, 0, 0, time.UTC)),
	}))

	// End clips at 23:59:59.999999, a microsecond short of two hours.
	want := 2*time.Hour - time.Microsecond
	require.Equal(t, want, res.State.TotalWork)
	require.Equal(t, want, res.State.ByWeekday[0])
	require.Equal(t, want, res.State.ByCategory["Ops"])
	require.Contains(t, res.State.WorkDates, model.Date{Year: 2024, Month: time.March, Day: 11})
	require.Len(t, res.State.WorkDates, 1)
}

func TestClipAttributesToClippedStartDay(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	loc := z.Location()
	// Wednesday through Thursday.
	iv := model.Interval{
		Start: time.Date(2024, 3, 13, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 3, 14, 23, 59, 59, 999999000, loc),
	}

	res := a.Run(iv, FromSlice([]model.RawEvent{
		naiveEvent("Offsite", "Planning",
			time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)),
	}))

	require.Equal(t, 10*time.Hour, res.State.TotalWork)
	require.Equal(t, 10*time.Hour, res.State.ByWeekday[2])
	require.Contains(t, res.State.WorkDates, model.Date{Year: 2024, Month: time.March, Day: 13})
}

func TestEventsOutsideIntervalContributeNothing(t *testing.T) {
	a, z := newTestAnalyzer(t, true)
	iv := dayInterval(z.Location(), 2024, 3, 11)

	res := a.Run(iv, FromSlice([]model.RawEvent{
		// Ends exactly at interval start.
		naiveEvent("Before", "Dev",
			time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)),
		naiveEvent("After", "Dev",
			time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)),
	}))

	require.Zero(t, res.State.TotalWork)
	require.Zero(t, res.State.TotalPersonal)
	require.Empty(t, res.State.ByCategory)
	require.Empty(t, res.State.WorkByDate)
	require.Equal(t, 2, res.Stats.Skipped[SkipOutsideInterval])
	require.Zero(t, res.Stats.SkippedTotal())
}

func TestMalformedEventIsSkipped(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	iv := dayInterval(z.Location(), 2024, 3, 11)

	res := a.Run(iv, FromSlice([]model.RawEvent{
		naiveEvent("Backwards", "Dev",
			time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)),
		naiveEvent("Zero", "Dev",
			time.Date(2024, 3, 11, 13, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 11, 13, 0, 0, 0, time.UTC)),
		naiveEvent("Fine", "Dev",
			time.Date(2024, 3, 11, 14, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC)),
	}))

	require.Equal(t, time.Hour, res.State.TotalWork)
	require.Equal(t, 3, res.Stats.Seen)
}

func TestMissingFieldsAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	z := testZone(t)
	obs := &countingObserver{}
	a := New(Config{Zone: z, Logger: appLog.New(&buf, appLog.LevelWarn), Observer: obs})
	iv := dayInterval(z.Location(), 2024, 3, 11)

	ok := naiveEvent("Fine", "",
		time.Date(2024, 3, 11, 14, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC))
	noSubject := ok
	noSubject.Subject = "  "
	noEnd := ok
	noEnd.End = model.Timestamp{}

	res := a.Run(iv, FromSlice([]model.RawEvent{noSubject, noEnd, ok}))

	require.Equal(t, time.Hour, res.State.TotalWork)
	require.Equal(t, time.Hour, res.State.ByCategory[model.Uncategorized])
	require.Equal(t, 2, res.Stats.Skipped[SkipMissingField])
	require.Equal(t, 2, obs.skipped[SkipMissingField])
	require.Equal(t, 1, obs.contributed)
	require.Equal(t, 1, obs.finished)
	require.Contains(t, buf.String(), "event=skipped-event")
}

func TestLocalizationFailureSkipsOnlyThatEvent(t *testing.T) {
	var buf bytes.Buffer
	z, err := zone.Load("Europe/Berlin")
	require.NoError(t, err)
	a := New(Config{Zone: z, Logger: appLog.New(&buf, appLog.LevelWarn)})
	iv := dayInterval(z.Location(), 2024, 3, 31)

	res := a.Run(iv, FromSlice([]model.RawEvent{
		{Subject: "In the gap", Start: model.Naive(2024, 3, 31, 2, 30, 0, 0), End: model.Naive(2024, 3, 31, 4, 0, 0, 0), Categories: "Dev"},
		{Subject: "Later", Start: model.Naive(2024, 3, 31, 10, 0, 0, 0), End: model.Naive(2024, 3, 31, 11, 0, 0, 0), Categories: "Dev"},
	}))

	require.Equal(t, time.Hour, res.State.TotalWork)
	require.Equal(t, 1, res.Stats.Skipped[SkipLocalization])
	require.Contains(t, buf.String(), "event=localization-error")
}

func TestAwareTimestampsAreConverted(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	iv := dayInterval(z.Location(), 2024, 3, 11)

	// 02:00-04:00 UTC is 23:00-01:00 the previous evening in Sao Paulo.
	res := a.Run(iv, FromSlice([]model.RawEvent{{
		Subject:    "Late call",
		Start:      model.Aware(time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)),
		End:        model.Aware(time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC)),
		Categories: "Calls",
	}}))

	require.Equal(t, time.Hour, res.State.TotalWork)
	require.Equal(t, time.Hour, res.State.ByWeekday[0])
}

func TestFirstNonPersonalCategoryWins(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	iv := dayInterval(z.Location(), 2024, 3, 11)

	res := a.Run(iv, FromSlice([]model.RawEvent{
		naiveEvent("Review", " ; Review ;Dev;Review",
			time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 11, 11, 0, 0, 0, time.UTC)),
	}))

	require.Equal(t, map[string]time.Duration{"Review": 2 * time.Hour}, res.State.ByCategory)
}

func TestEarlyExitMatchesFullScan(t *testing.T) {
	z := testZone(t)
	iv := dayInterval(z.Location(), 2024, 3, 11)

	events := []model.RawEvent{
		naiveEvent("Carry-over", "Dev", time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC)),
		naiveEvent("Standup", "Meetings", time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 9, 15, 0, 0, time.UTC)),
		naiveEvent("Lunch", "Pessoal", time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 13, 0, 0, 0, time.UTC)),
		naiveEvent("Coding", "Dev;Meetings", time.Date(2024, 3, 11, 13, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 17, 0, 0, 0, time.UTC)),
		naiveEvent("Tomorrow", "Dev", time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)),
		naiveEvent("Next week", "Dev", time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC)),
	}

	fast := New(Config{Zone: z, Logger: appLog.Discard()}).Run(iv, FromSlice(events))
	full := New(Config{Zone: z, Logger: appLog.Discard(), FullScan: true}).Run(iv, FromSlice(events))

	require.True(t, fast.Stats.EarlyExit)
	require.False(t, full.Stats.EarlyExit)
	require.Equal(t, 5, fast.Stats.Seen)
	require.Equal(t, 6, full.Stats.Seen)
	require.Equal(t, full.State, fast.State)

	require.Equal(t, 5*time.Hour+15*time.Minute, fast.State.TotalWork)
	require.Equal(t, time.Hour, fast.State.TotalPersonal)
	require.Equal(t, fast.State.TotalWork, fast.State.WeekdaySum())
	require.Equal(t, fast.State.TotalWork, fast.State.CategorySum())
}

func TestEarlyExitStopsPullingFromSource(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	iv := dayInterval(z.Location(), 2024, 3, 11)

	pulled := 0
	source := func(yield func(model.RawEvent) bool) {
		for d := 11; d <= 20; d++ {
			pulled++
			ev := naiveEvent("Daily", "Dev",
				time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC),
				time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC))
			if !yield(ev) {
				return
			}
		}
	}

	res := a.Run(iv, source)
	require.Equal(t, 2, pulled)
	require.Equal(t, time.Hour, res.State.TotalWork)
}

func TestRunIsIdempotent(t *testing.T) {
	a, z := newTestAnalyzer(t, false)
	loc := z.Location()
	iv := model.Interval{
		Start: time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 3, 17, 23, 59, 59, 999999000, loc),
	}
	events := []model.RawEvent{
		naiveEvent("A", "Dev", time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)),
		naiveEvent("B", "Ops", time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 13, 10, 30, 0, 0, time.UTC)),
		naiveEvent("C", "", time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC)),
	}

	first := a.Run(iv, FromSlice(events))
	second := a.Run(iv, FromSlice(events))

	require.Equal(t, first.State, second.State)
	require.NotEqual(t, first.RunID, second.RunID)
	// Saturday work counts toward weekday totals but not working dates.
	require.Equal(t, time.Hour, first.State.ByWeekday[5])
	require.Len(t, first.State.WorkDates, 2)
	require.Len(t, first.State.WorkByDate, 3)
}
