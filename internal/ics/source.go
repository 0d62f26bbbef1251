package ics

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
)

// Loader produces the start-sorted raw event list for one analysis window
// from a set of calendar sources.
type Loader struct {
	Fetcher *Fetcher
	// Location is the analysis zone, used to order floating timestamps.
	Location *time.Location
	// IncludeAllDay keeps DATE-valued (all-day) events.
	IncludeAllDay bool
	Logger        *appLog.Logger
}

// Load fetches, parses and expands every source. A source that fails is
// logged and skipped; Load only fails when no source could be read.
func (l *Loader) Load(ctx context.Context, sources []Source, iv model.Interval) ([]model.RawEvent, error) {
	logger := l.Logger
	if logger == nil {
		logger = appLog.Default()
	}
	if l.Fetcher == nil {
		return nil, errors.New("ics: loader has no fetcher")
	}
	if len(sources) == 0 {
		return nil, nil
	}

	results, fetchErrs := l.Fetcher.FetchAll(ctx, sources)

	parsed := make([]ParsedEvent, 0)
	var parseErrs []error
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body, logger)
		if err != nil {
			parseErrs = append(parseErrs, err)
			logger.Error("ics parse failed for source", err, "id", res.Source.ID)
			continue
		}
		for _, ev := range events {
			if ev.AllDay && !l.IncludeAllDay {
				continue
			}
			parsed = append(parsed, ev)
		}
	}

	if len(results) == len(parseErrs) && (len(fetchErrs) > 0 || len(parseErrs) > 0) {
		return nil, fmt.Errorf("ics: no calendar source could be loaded: %w", errors.Join(append(fetchErrs, parseErrs...)...))
	}

	expanded, err := Expand(parsed, ExpandConfig{
		Location:   l.Location,
		RangeStart: iv.Start,
		RangeEnd:   iv.End,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("ics events loaded",
		"sources", len(sources),
		"parsed", len(parsed),
		"events", len(expanded.Events),
		"truncated_uids", len(expanded.TruncatedEvents),
	)
	return expanded.Events, nil
}
