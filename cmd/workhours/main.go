package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/antonio-leblanc/working-hours/internal/capture"
	"github.com/antonio-leblanc/working-hours/internal/config"
	"github.com/antonio-leblanc/working-hours/internal/console"
	"github.com/antonio-leblanc/working-hours/internal/export"
	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/period"
	"github.com/antonio-leblanc/working-hours/internal/pipeline"
	"github.com/antonio-leblanc/working-hours/internal/report"
	"github.com/antonio-leblanc/working-hours/internal/schedule"
	"github.com/antonio-leblanc/working-hours/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	logLevel   string

	period string
	year   string
	week   string
	month  string
	from   string
	to     string

	xlsxPath string
	asJSON   bool
	days     bool
	weeks    bool
	months   bool

	serve    bool
	snapshot bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"personal_category", conf.PersonalCategory,
		"week_start", conf.WeekStart,
		"include_all_day", conf.IncludeAllDay,
		"sources", len(conf.Sources),
		"serve", flags.serve,
	)

	runner, err := pipeline.New(conf, appLog.Default())
	if err != nil {
		appLog.Error("failed to initialize pipeline", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.serve {
		if err := serve(ctx, conf, runner, flags.snapshot); err != nil {
			appLog.Error("server exited", err)
			os.Exit(1)
		}
		appLog.Info("workhours exiting")
		return
	}

	spec, err := period.Parse(flags.period, flags.periodArgs()...)
	if err != nil {
		appLog.Error("invalid period", err, "period", flags.period)
		os.Exit(2)
	}

	rep, err := runner.Run(ctx, spec)
	if err != nil {
		appLog.Error("report failed", err)
		if errors.Is(err, period.ErrInvalidPeriod) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if err := emit(rep, flags); err != nil {
		appLog.Error("failed to write report", err)
		os.Exit(1)
	}
}

func emit(rep report.Report, flags flagConfig) error {
	if flags.xlsxPath != "" {
		if err := export.SaveFile(flags.xlsxPath, rep); err != nil {
			return err
		}
	}
	if flags.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return console.Render(os.Stdout, rep, console.Options{
		Days:   flags.days,
		Weeks:  flags.weeks,
		Months: flags.months,
	})
}

// serve runs the HTTP API and the export scheduler until ctx is cancelled.
func serve(ctx context.Context, conf *config.Config, runner *pipeline.Runner, snapshot bool) error {
	query, err := schedulePeriodQuery(conf.SchedulePeriod)
	if err != nil {
		return err
	}
	spec, _, err := web.SpecFromQuery(query)
	if err != nil {
		return fmt.Errorf("schedule_period: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedCfg := schedule.Config{
		Schedule:  conf.Schedule,
		Period:    spec,
		OutputDir: conf.OutputDir,
		Location:  runner.Zone.Location(),
	}
	if snapshot {
		schedCfg.AfterExport = func(ctx context.Context, _ report.Report) error {
			return captureSnapshot(ctx, conf, query)
		}
	}

	sched := schedule.New(schedCfg, runner, appLog.Default())
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		cancel()
		<-sched.Done()
	}()

	return web.StartServer(ctx, conf, runner)
}

// schedulePeriodQuery accepts either a bare period kind ("week") or the
// /api/report query form ("period=isoweek&year=2024&week=11").
func schedulePeriodQuery(v string) (url.Values, error) {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, "=") {
		return url.Values{"period": {v}}, nil
	}
	q, err := url.ParseQuery(v)
	if err != nil {
		return nil, fmt.Errorf("schedule_period %q: %w", v, err)
	}
	return q, nil
}

func captureSnapshot(ctx context.Context, conf *config.Config, query url.Values) error {
	host, port, err := net.SplitHostPort(conf.Listen)
	if err != nil {
		return fmt.Errorf("snapshot: listen address %q: %w", conf.Listen, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	opts := capture.Options{
		URL:        "http://" + net.JoinHostPort(host, port) + "/report?" + query.Encode(),
		OutputPath: filepath.Join(conf.OutputDir, web.SnapshotFile),
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	if err := capture.CaptureReportPNG(ctx, opts); err != nil {
		return err
	}
	appLog.Info("report snapshot captured", "path", opts.OutputPath)
	return nil
}

func (f flagConfig) periodArgs() []string {
	switch f.period {
	case "isoweek":
		return []string{f.year, f.week}
	case "monthof":
		return []string{f.year, f.month}
	case "range":
		return []string{f.from, f.to}
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./workhours.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.period, "period", "week", "Period: week, month, isoweek, monthof, range")
	flag.StringVar(&cfg.year, "year", "", "Year for isoweek/monthof")
	flag.StringVar(&cfg.week, "week", "", "ISO week number for isoweek")
	flag.StringVar(&cfg.month, "month", "", "Month number (1-12) for monthof")
	flag.StringVar(&cfg.from, "from", "", "First date (YYYY-MM-DD) for range")
	flag.StringVar(&cfg.to, "to", "", "Last date (YYYY-MM-DD) for range")

	flag.StringVar(&cfg.xlsxPath, "xlsx", "", "Also write the report as an .xlsx workbook to this path")
	flag.BoolVar(&cfg.asJSON, "json", false, "Print the report as JSON instead of a table")
	flag.BoolVar(&cfg.days, "days", false, "Include the per-day breakdown")
	flag.BoolVar(&cfg.weeks, "weeks", false, "Include the ISO week breakdown")
	flag.BoolVar(&cfg.months, "months", false, "Include the month breakdown")

	flag.BoolVar(&cfg.serve, "serve", false, "Run the HTTP API and scheduled exports")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "In serve mode, capture a PNG of /report after each scheduled export")

	flag.Parse()

	return cfg
}
