// Package report derives percentages, averages and sliced views from a
// finished analysis run.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/antonio-leblanc/working-hours/internal/analysis"
	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
)

// sanityTolerance bounds the accepted gap between a breakdown sum and the
// work total before a warning is logged.
const sanityTolerance = time.Microsecond

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Line is one row of a breakdown view.
type Line struct {
	Key      string        `json:"key"`
	Duration time.Duration `json:"-"`
	Hours    float64       `json:"hours"`
	// Percent is the share of total work time; 0 when there is no work.
	Percent float64 `json:"percent"`
}

// DayLine is one calendar date of the analysis interval.
type DayLine struct {
	Date       string        `json:"date"`
	Weekday    string        `json:"weekday"`
	WorkingDay bool          `json:"working_day"`
	Duration   time.Duration `json:"-"`
	Hours      float64       `json:"hours"`
}

// Report is the read-only summary of one run.
type Report struct {
	RunID string    `json:"run_id"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	TotalWork     time.Duration `json:"-"`
	TotalPersonal time.Duration `json:"-"`
	WorkHours     float64       `json:"work_hours"`
	PersonalHours float64       `json:"personal_hours"`

	// Categories are ordered by duration, then name. Weekdays run Monday to Sunday.
	Categories []Line    `json:"categories"`
	Weekdays   []Line    `json:"weekdays"`
	Days       []DayLine `json:"days"`
	Weeks      []Line    `json:"weeks"`
	Months     []Line    `json:"months"`

	CalendarDays         int `json:"calendar_days"`
	PotentialWorkingDays int `json:"potential_working_days"`
	LoggedWorkingDays    int `json:"logged_working_days"`

	AvgPerCalendarDay         time.Duration `json:"-"`
	AvgPerPotentialWorkingDay time.Duration `json:"-"`
	AvgPerLoggedWorkingDay    time.Duration `json:"-"`
	AvgHoursPerCalendarDay    float64       `json:"avg_hours_per_calendar_day"`
	AvgHoursPerPotentialDay   float64       `json:"avg_hours_per_potential_working_day"`
	AvgHoursPerLoggedDay      float64       `json:"avg_hours_per_logged_working_day"`

	EventsSeen    int  `json:"events_seen"`
	EventsSkipped int  `json:"events_skipped"`
	EarlyExit     bool `json:"early_exit"`

	// Warnings lists failed sanity cross-checks. They never block output.
	Warnings []string `json:"warnings,omitempty"`
}

// Build derives a Report from res. Sanity mismatches are logged to logger
// (Default when nil) and recorded in Report.Warnings.
func Build(res analysis.Result, logger *appLog.Logger) Report {
	if logger == nil {
		logger = appLog.Default()
	}
	st := res.State
	if st == nil {
		st = analysis.NewState()
	}
	iv := res.Interval

	r := Report{
		RunID:         res.RunID,
		Label:         iv.Label,
		Start:         iv.Start,
		End:           iv.End,
		TotalWork:     st.TotalWork,
		TotalPersonal: st.TotalPersonal,
		WorkHours:     hours(st.TotalWork),
		PersonalHours: hours(st.TotalPersonal),
		EventsSeen:    res.Stats.Seen,
		EventsSkipped: res.Stats.SkippedTotal(),
		EarlyExit:     res.Stats.EarlyExit,
	}

	for cat, d := range st.ByCategory {
		r.Categories = append(r.Categories, line(cat, d, st.TotalWork))
	}
	sortLines(r.Categories)

	for i, d := range st.ByWeekday {
		r.Weekdays = append(r.Weekdays, line(weekdayNames[i], d, st.TotalWork))
	}

	first, last := model.DateOf(iv.Start), model.DateOf(iv.End)
	r.CalendarDays = CalendarDays(first, last)
	r.PotentialWorkingDays = PotentialWorkingDays(first, last)
	r.LoggedWorkingDays = len(st.WorkDates)

	r.Days, r.Weeks, r.Months = dateViews(first, last, st)

	r.AvgPerCalendarDay = divide(st.TotalWork, r.CalendarDays)
	r.AvgPerPotentialWorkingDay = divide(st.TotalWork, r.PotentialWorkingDays)
	r.AvgPerLoggedWorkingDay = divide(st.TotalWork, r.LoggedWorkingDays)
	r.AvgHoursPerCalendarDay = hours(r.AvgPerCalendarDay)
	r.AvgHoursPerPotentialDay = hours(r.AvgPerPotentialWorkingDay)
	r.AvgHoursPerLoggedDay = hours(r.AvgPerLoggedWorkingDay)

	r.Warnings = SanityCheck(st)
	for _, w := range r.Warnings {
		logger.Warn("report sanity check failed", "event", appLog.TagSanityWarning, "run_id", res.RunID, "detail", w)
	}
	return r
}

// CategoryPercentage returns cat's share of total work in percent, or 0
// when no work was recorded.
func CategoryPercentage(st *analysis.State, cat string) float64 {
	return percent(st.ByCategory[cat], st.TotalWork)
}

// CalendarDays counts the dates in [first, last]. It never returns less than 0.
func CalendarDays(first, last model.Date) int {
	n := first.DaysUntil(last) + 1
	if n < 0 {
		return 0
	}
	return n
}

// PotentialWorkingDays counts the Monday-Friday dates in [first, last].
func PotentialWorkingDays(first, last model.Date) int {
	n := 0
	for d := first; !last.Before(d); d = d.AddDays(1) {
		if model.IsWorkingDay(d.Weekday()) {
			n++
		}
	}
	return n
}

// SanityCheck verifies that the weekday and category breakdowns sum to the
// work total.
func SanityCheck(st *analysis.State) []string {
	var out []string
	if diff := absDiff(st.WeekdaySum(), st.TotalWork); diff > sanityTolerance {
		out = append(out, fmt.Sprintf("weekday sum %s differs from total work %s", st.WeekdaySum(), st.TotalWork))
	}
	if diff := absDiff(st.CategorySum(), st.TotalWork); diff > sanityTolerance {
		out = append(out, fmt.Sprintf("category sum %s differs from total work %s", st.CategorySum(), st.TotalWork))
	}
	return out
}

func dateViews(first, last model.Date, st *analysis.State) ([]DayLine, []Line, []Line) {
	var (
		days      []DayLine
		weeks     []Line
		months    []Line
		weekIdx   = map[string]int{}
		monthIdx  = map[string]int{}
		addBucket = func(lines *[]Line, idx map[string]int, key string, d time.Duration) {
			i, ok := idx[key]
			if !ok {
				idx[key] = len(*lines)
				*lines = append(*lines, Line{Key: key})
				i = len(*lines) - 1
			}
			(*lines)[i].Duration += d
		}
	)

	for d := first; !last.Before(d); d = d.AddDays(1) {
		work := st.WorkByDate[d]
		wd := d.Weekday()
		days = append(days, DayLine{
			Date:       d.String(),
			Weekday:    weekdayNames[model.MondayIndex(wd)],
			WorkingDay: model.IsWorkingDay(wd),
			Duration:   work,
			Hours:      hours(work),
		})

		y, w := d.ISOWeek()
		addBucket(&weeks, weekIdx, fmt.Sprintf("%04d-W%02d", y, w), work)
		addBucket(&months, monthIdx, fmt.Sprintf("%04d-%02d", d.Year, int(d.Month)), work)
	}

	for _, lines := range [][]Line{weeks, months} {
		for i := range lines {
			lines[i].Hours = hours(lines[i].Duration)
			lines[i].Percent = percent(lines[i].Duration, st.TotalWork)
		}
	}
	return days, weeks, months
}

func line(key string, d, total time.Duration) Line {
	return Line{Key: key, Duration: d, Hours: hours(d), Percent: percent(d, total)}
}

func sortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Duration != lines[j].Duration {
			return lines[i].Duration > lines[j].Duration
		}
		return lines[i].Key < lines[j].Key
	})
}

func percent(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return part.Seconds() / total.Seconds() * 100
}

func divide(total time.Duration, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return total / time.Duration(n)
}

func hours(d time.Duration) float64 {
	return d.Hours()
}

func absDiff(a, b time.Duration) time.Duration {
	if a > b {
		return a - b
	}
	return b - a
}
