// Package pipeline wires configuration, the calendar source, the analysis
// engine and the report builder into one call per period.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/antonio-leblanc/working-hours/internal/analysis"
	"github.com/antonio-leblanc/working-hours/internal/config"
	"github.com/antonio-leblanc/working-hours/internal/ics"
	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
	"github.com/antonio-leblanc/working-hours/internal/observability"
	"github.com/antonio-leblanc/working-hours/internal/period"
	"github.com/antonio-leblanc/working-hours/internal/report"
	"github.com/antonio-leblanc/working-hours/internal/zone"
)

// EventLoader returns raw events for an interval, sorted ascending by start.
type EventLoader interface {
	Load(ctx context.Context, iv model.Interval) ([]model.RawEvent, error)
}

// EventLoaderFunc adapts a function to EventLoader.
type EventLoaderFunc func(ctx context.Context, iv model.Interval) ([]model.RawEvent, error)

func (f EventLoaderFunc) Load(ctx context.Context, iv model.Interval) ([]model.RawEvent, error) {
	return f(ctx, iv)
}

// Runner produces reports for period selections.
type Runner struct {
	Zone     *zone.Location
	Resolver *period.Resolver
	Loader   EventLoader
	Analyzer *analysis.Analyzer
	Logger   *appLog.Logger

	// Now is the reference clock for current-week/month periods.
	Now func() time.Time
}

// New builds a Runner from cfg, reading calendars through the ics loader.
// It fails with zone.ErrUnknownZone before any event is touched.
func New(cfg *config.Config, logger *appLog.Logger) (*Runner, error) {
	if logger == nil {
		logger = appLog.Default()
	}
	z, err := zone.Load(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	sources := cfg.ICSSources()
	loader := &ics.Loader{
		Fetcher:       ics.NewFetcher(cfg.CacheDir, logger),
		Location:      z.Location(),
		IncludeAllDay: cfg.IncludeAllDay,
		Logger:        logger,
	}

	return &Runner{
		Zone:     z,
		Resolver: &period.Resolver{Location: z.Location(), WeekStart: cfg.WeekStartDay()},
		Loader: EventLoaderFunc(func(ctx context.Context, iv model.Interval) ([]model.RawEvent, error) {
			return loader.Load(ctx, sources, iv)
		}),
		Analyzer: analysis.New(analysis.Config{
			Zone:        z,
			PersonalTag: cfg.PersonalCategory,
			Logger:      logger,
			Observer:    observability.Recorder{},
		}),
		Logger: logger,
		Now:    time.Now,
	}, nil
}

// Run resolves spec, loads events and builds the report. Period errors are
// returned before any calendar is read.
func (r *Runner) Run(ctx context.Context, spec period.Spec) (report.Report, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	iv, err := r.Resolver.Resolve(spec, now())
	if err != nil {
		return report.Report{}, err
	}

	events, err := r.Loader.Load(ctx, iv)
	if err != nil {
		return report.Report{}, fmt.Errorf("pipeline: load events: %w", err)
	}

	res := r.Analyzer.Run(iv, analysis.FromSlice(events))
	return report.Build(res, r.Logger), nil
}
