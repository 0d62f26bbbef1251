package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antonio-leblanc/working-hours/internal/analysis"
	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
)

func march(day int) model.Date {
	return model.Date{Year: 2024, Month: time.March, Day: day}
}

func weekResult() analysis.Result {
	st := analysis.NewState()
	add := func(day, hour int, d time.Duration, cat string, personal bool) {
		start := time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
		st.Add(model.Contribution{
			EffectiveStart: start,
			EffectiveEnd:   start.Add(d),
			Duration:       d,
			Personal:       personal,
			WorkCategory:   cat,
		})
	}
	add(11, 9, 3*time.Hour, "Dev", false)
	add(12, 9, 1*time.Hour, "Ops", false)
	add(12, 14, 2*time.Hour, "Dev", false)
	add(16, 10, 2*time.Hour, "Dev", false) // Saturday
	add(13, 12, time.Hour, "", true)

	return analysis.Result{
		RunID: "run-1",
		Interval: model.Interval{
			Start: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 17, 23, 59, 59, 999999000, time.UTC),
			Label: "week",
		},
		State: st,
		Stats: analysis.Stats{Seen: 5, Skipped: map[string]int{}},
	}
}

func TestBuildTotalsAndPercentages(t *testing.T) {
	r := Build(weekResult(), appLog.Discard())

	require.Equal(t, 8*time.Hour, r.TotalWork)
	require.Equal(t, time.Hour, r.TotalPersonal)
	require.Len(t, r.Categories, 2)
	require.Equal(t, "Dev", r.Categories[0].Key)
	require.InDelta(t, 87.5, r.Categories[0].Percent, 1e-9)
	require.Equal(t, "Ops", r.Categories[1].Key)
	require.InDelta(t, 12.5, r.Categories[1].Percent, 1e-9)
	require.Empty(t, r.Warnings)

	require.Equal(t, 7, r.CalendarDays)
	require.Equal(t, 5, r.PotentialWorkingDays)
	require.Equal(t, 2, r.LoggedWorkingDays)
	require.Equal(t, 8*time.Hour/7, r.AvgPerCalendarDay)
	require.Equal(t, 8*time.Hour/5, r.AvgPerPotentialWorkingDay)
	require.Equal(t, 4*time.Hour, r.AvgPerLoggedWorkingDay)
}

func TestBuildDateViews(t *testing.T) {
	r := Build(weekResult(), appLog.Discard())

	require.Len(t, r.Days, 7)
	require.Equal(t, "2024-03-11", r.Days[0].Date)
	require.Equal(t, "Monday", r.Days[0].Weekday)
	require.Equal(t, 3*time.Hour, r.Days[0].Duration)
	require.Equal(t, 3*time.Hour, r.Days[1].Duration)
	require.Zero(t, r.Days[2].Duration)
	require.False(t, r.Days[5].WorkingDay)
	require.Equal(t, 2*time.Hour, r.Days[5].Duration)

	require.Len(t, r.Weeks, 1)
	require.Equal(t, "2024-W11", r.Weeks[0].Key)
	require.Equal(t, 8*time.Hour, r.Weeks[0].Duration)
	require.Len(t, r.Months, 1)
	require.Equal(t, "2024-03", r.Months[0].Key)
	require.InDelta(t, 100.0, r.Months[0].Percent, 1e-9)

	require.Len(t, r.Weekdays, 7)
	require.Equal(t, "Monday", r.Weekdays[0].Key)
	require.Equal(t, "Tuesday", r.Weekdays[1].Key)
}

func TestBuildEmptyRunHasZeroAverages(t *testing.T) {
	res := analysis.Result{
		Interval: model.Interval{
			Start: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 17, 23, 59, 59, 999999000, time.UTC),
		},
		State: analysis.NewState(),
	}
	r := Build(res, appLog.Discard())

	require.Zero(t, r.TotalWork)
	require.Equal(t, 2, r.CalendarDays)
	require.Zero(t, r.PotentialWorkingDays)
	require.Zero(t, r.AvgPerPotentialWorkingDay)
	require.Zero(t, r.AvgPerLoggedWorkingDay)
	require.Zero(t, CategoryPercentage(res.State, "Dev"))
	for _, l := range r.Weekdays {
		require.Zero(t, l.Percent)
	}
}

func TestSanityWarningIsLoggedNotFatal(t *testing.T) {
	res := weekResult()
	res.State.ByWeekday[0] += time.Hour

	var buf bytes.Buffer
	r := Build(res, appLog.New(&buf, appLog.LevelWarn))

	require.Len(t, r.Warnings, 1)
	require.Contains(t, r.Warnings[0], "weekday sum")
	require.Contains(t, buf.String(), "event=sanity-warning")
	require.Equal(t, 8*time.Hour, r.TotalWork)
}

func TestWorkingDayCounts(t *testing.T) {
	require.Equal(t, 1, CalendarDays(march(11), march(11)))
	require.Equal(t, 31, CalendarDays(march(1), march(31)))
	require.Equal(t, 21, PotentialWorkingDays(march(1), march(31)))
	require.Zero(t, PotentialWorkingDays(march(16), march(17)))
}

func TestCalendarDaysOverCenturies(t *testing.T) {
	first := model.Date{Year: 1700, Month: time.January, Day: 1}
	last := model.Date{Year: 2100, Month: time.December, Day: 31}
	require.Equal(t, 146463, CalendarDays(first, last))
}
