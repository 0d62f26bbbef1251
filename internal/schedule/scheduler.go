// Package schedule exports reports on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/antonio-leblanc/working-hours/internal/export"
	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/period"
	"github.com/antonio-leblanc/working-hours/internal/report"
)

// Runner produces a report for a period selection.
type Runner interface {
	Run(ctx context.Context, spec period.Spec) (report.Report, error)
}

// Config holds scheduler configuration.
type Config struct {
	// Schedule is a five-field cron expression.
	Schedule string
	// Period is exported on every tick.
	Period period.Spec
	// OutputDir receives one workbook per tick.
	OutputDir string
	// Location interprets the cron expression; time.Local when nil.
	Location *time.Location
	// Timeout bounds a single export; 2 minutes when zero.
	Timeout time.Duration
	// AfterExport, when set, runs after each successful export (for
	// example a report snapshot).
	AfterExport func(ctx context.Context, rep report.Report) error
}

// Scheduler runs report exports on cfg.Schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	cfg    Config
	logger *appLog.Logger

	mu       sync.Mutex
	entryID  cron.EntryID
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a Scheduler. It does not start it.
func New(cfg Config, runner Runner, logger *appLog.Logger) *Scheduler {
	if logger == nil {
		logger = appLog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner:  runner,
		cfg:     cfg,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start registers the export job and starts the cron loop. The scheduler
// stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runner == nil {
		return errors.New("schedule: no runner")
	}

	s.mu.Lock()
	id, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled export failed", err, "schedule", s.cfg.Schedule)
		}
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule: invalid cron expression %q: %w", s.cfg.Schedule, err)
	}
	s.entryID = id
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.cfg.Schedule, "period", s.cfg.Period.Kind.String(), "next", s.Next().Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running export to finish and stops the loop. Safe to
// call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		close(s.stopped)
		s.logger.Info("scheduler stopped")
	})
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// Next reports the next planned tick, or the zero time when not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunOnce builds the configured period's report and saves it as a
// workbook in OutputDir, returning the workbook path.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	rep, err := s.runner.Run(ctx, s.cfg.Period)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.cfg.OutputDir, export.FileName(rep))
	if err := export.SaveFile(path, rep); err != nil {
		return "", err
	}
	s.logger.Info("scheduled export written", "path", path, "run_id", rep.RunID, "work_hours", fmt.Sprintf("%.2f", rep.WorkHours))

	if s.cfg.AfterExport != nil {
		if err := s.cfg.AfterExport(ctx, rep); err != nil {
			s.logger.Warn("post-export hook failed", "error", err.Error(), "run_id", rep.RunID)
		}
	}
	return path, nil
}
