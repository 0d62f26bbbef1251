// Package analysis reconciles a start-sorted stream of calendar events
// against an analysis interval and accumulates work/personal durations.
package analysis

import (
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"

	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
	"github.com/antonio-leblanc/working-hours/internal/zone"
)

// Skip reasons reported through Stats and Observer.
const (
	SkipMissingField    = "missing-field"
	SkipLocalization    = "localization"
	SkipNonPositiveSpan = "non-positive-duration"
	SkipOutsideInterval = "outside-interval"
	SkipOther           = "other"
)

// DefaultPersonalTag is the category that marks an event as personal time.
const DefaultPersonalTag = "Pessoal"

// Observer receives per-event outcomes. Implementations must be cheap; they
// are called inline on the scan path.
type Observer interface {
	EventSkipped(reason string)
	EventContributed(personal bool, d time.Duration)
	RunFinished(stats Stats, elapsed time.Duration)
}

// Config holds the run-level collaborators.
type Config struct {
	Zone        zone.Zone
	PersonalTag string

	// FullScan disables the early exit on the first event starting after the
	// interval. Results are identical for start-sorted input.
	FullScan bool

	Logger   *appLog.Logger
	Observer Observer
}

// Stats counts what happened to each raw event.
type Stats struct {
	Seen        int
	Normalized  int
	Overlapping int
	Skipped     map[string]int
	EarlyExit   bool
}

// SkippedTotal returns the number of events dropped for errors.
func (s Stats) SkippedTotal() int {
	n := 0
	for reason, c := range s.Skipped {
		if reason == SkipOutsideInterval {
			continue
		}
		n += c
	}
	return n
}

// Result is the frozen output of one run.
type Result struct {
	RunID    string
	Interval model.Interval
	State    *State
	Stats    Stats
}

// Analyzer runs the normalize → reconcile → classify → aggregate pipeline.
// An Analyzer holds no per-run state and may be reused.
type Analyzer struct {
	cfg Config
}

// New returns an Analyzer. A nil Zone means UTC; an empty PersonalTag means
// DefaultPersonalTag.
func New(cfg Config) *Analyzer {
	if cfg.Zone == nil {
		cfg.Zone = zone.New(time.UTC)
	}
	if cfg.PersonalTag == "" {
		cfg.PersonalTag = DefaultPersonalTag
	}
	if cfg.Logger == nil {
		cfg.Logger = appLog.Default()
	}
	return &Analyzer{cfg: cfg}
}

// Run consumes events (which must be sorted ascending by start) and returns
// the aggregate for iv.
func (a *Analyzer) Run(iv model.Interval, events iter.Seq[model.RawEvent]) Result {
	began := time.Now()
	logger := a.cfg.Logger
	state := NewState()
	stats := Stats{Skipped: make(map[string]int)}
	runID := uuid.NewString()

	skip := func(reason string, raw model.RawEvent, err error) {
		stats.Skipped[reason]++
		if a.cfg.Observer != nil {
			a.cfg.Observer.EventSkipped(reason)
		}
		if reason == SkipOutsideInterval {
			return
		}
		tag := appLog.TagSkippedEvent
		if reason == SkipLocalization {
			tag = appLog.TagLocalizationError
		}
		logger.Warn("event skipped",
			"event", tag,
			"run_id", runID,
			"reason", reason,
			"uid", raw.UID,
			"subject", raw.Subject,
			"detail", errString(err),
		)
	}

	logger.Debug("analysis run start",
		"run_id", runID,
		"interval_start", iv.Start.Format(time.RFC3339Nano),
		"interval_end", iv.End.Format(time.RFC3339Nano),
		"personal_tag", a.cfg.PersonalTag,
	)

	for raw := range events {
		stats.Seen++

		ev, err := Normalize(raw, a.cfg.Zone)
		if err != nil {
			skip(skipReason(err), raw, err)
			continue
		}
		stats.Normalized++

		if !a.cfg.FullScan && PastInterval(ev, iv) {
			stats.EarlyExit = true
			logger.Debug("scan stopped at first event past interval",
				"event", appLog.TagEarlyExit,
				"run_id", runID,
				"subject", ev.Subject,
				"start", ev.StartLocal.Format(time.RFC3339),
			)
			break
		}

		if !Overlaps(ev, iv) {
			skip(SkipOutsideInterval, raw, nil)
			continue
		}
		stats.Overlapping++

		start, end, d, ok := Clip(ev, iv)
		if !ok {
			skip(SkipNonPositiveSpan, raw, errors.New("clipped duration is not positive"))
			continue
		}

		personal, category := Classify(ev.Categories, a.cfg.PersonalTag)
		state.Add(model.Contribution{
			Subject:        ev.Subject,
			EffectiveStart: start,
			EffectiveEnd:   end,
			Duration:       d,
			Personal:       personal,
			WorkCategory:   category,
		})
		if a.cfg.Observer != nil {
			a.cfg.Observer.EventContributed(personal, d)
		}
	}

	elapsed := time.Since(began)
	if a.cfg.Observer != nil {
		a.cfg.Observer.RunFinished(stats, elapsed)
	}
	logger.Info("analysis run finished",
		"run_id", runID,
		"seen", stats.Seen,
		"overlapping", stats.Overlapping,
		"skipped", stats.SkippedTotal(),
		"early_exit", stats.EarlyExit,
		"total_work", state.TotalWork,
		"total_personal", state.TotalPersonal,
	)

	return Result{
		RunID:    runID,
		Interval: iv,
		State:    state,
		Stats:    stats,
	}
}

// FromSlice adapts an already-materialized event list to the Run input.
func FromSlice(events []model.RawEvent) iter.Seq[model.RawEvent] {
	return func(yield func(model.RawEvent) bool) {
		for _, ev := range events {
			if !yield(ev) {
				return
			}
		}
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return SkipMissingField
	case errors.Is(err, zone.ErrLocalization):
		return SkipLocalization
	default:
		return SkipOther
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
