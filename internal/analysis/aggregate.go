package analysis

import (
	"time"

	"github.com/antonio-leblanc/working-hours/internal/model"
)

// State accumulates clipped contributions. It has a single writer.
type State struct {
	TotalWork     time.Duration
	TotalPersonal time.Duration

	ByCategory map[string]time.Duration
	// ByWeekday is indexed Monday=0 .. Sunday=6.
	ByWeekday [7]time.Duration

	// WorkDates holds the Monday-Friday dates with at least one work contribution.
	WorkDates map[model.Date]struct{}
	// WorkByDate holds work time per calendar date of the clipped start.
	WorkByDate map[model.Date]time.Duration
}

// NewState returns an empty accumulator.
func NewState() *State {
	return &State{
		ByCategory: make(map[string]time.Duration),
		WorkDates:  make(map[model.Date]struct{}),
		WorkByDate: make(map[model.Date]time.Duration),
	}
}

// Add folds one contribution into the totals. Weekday and date come from the
// clipped start, not the original event start.
func (s *State) Add(c model.Contribution) {
	if c.Duration <= 0 {
		return
	}
	if c.Personal {
		s.TotalPersonal += c.Duration
		return
	}

	category := c.WorkCategory
	if category == "" {
		category = model.Uncategorized
	}

	s.TotalWork += c.Duration
	s.ByWeekday[c.Weekday()] += c.Duration
	s.ByCategory[category] += c.Duration

	date := c.Date()
	s.WorkByDate[date] += c.Duration
	if model.IsWorkingDay(c.EffectiveStart.Weekday()) {
		s.WorkDates[date] = struct{}{}
	}
}

// WeekdaySum returns the sum of ByWeekday.
func (s *State) WeekdaySum() time.Duration {
	var total time.Duration
	for _, d := range s.ByWeekday {
		total += d
	}
	return total
}

// CategorySum returns the sum of ByCategory.
func (s *State) CategorySum() time.Duration {
	var total time.Duration
	for _, d := range s.ByCategory {
		total += d
	}
	return total
}
