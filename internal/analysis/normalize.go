package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonio-leblanc/working-hours/internal/model"
	"github.com/antonio-leblanc/working-hours/internal/zone"
)

// ErrMissingField marks raw events without a subject, start or end.
var ErrMissingField = errors.New("analysis: missing required field")

// Normalize resolves raw's boundaries into z and parses its categories.
// Floating timestamps are localized and may fail with zone.ErrLocalization;
// aware timestamps are converted.
func Normalize(raw model.RawEvent, z zone.Zone) (model.NormalizedEvent, error) {
	subject := strings.TrimSpace(raw.Subject)
	switch {
	case subject == "":
		return model.NormalizedEvent{}, fmt.Errorf("%w: subject", ErrMissingField)
	case raw.Start.IsZero():
		return model.NormalizedEvent{}, fmt.Errorf("%w: start", ErrMissingField)
	case raw.End.IsZero():
		return model.NormalizedEvent{}, fmt.Errorf("%w: end", ErrMissingField)
	}

	start, err := resolve(raw.Start, z)
	if err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("analysis: start: %w", err)
	}
	end, err := resolve(raw.End, z)
	if err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("analysis: end: %w", err)
	}

	return model.NormalizedEvent{
		Subject:    subject,
		StartLocal: start,
		EndLocal:   end,
		Categories: ParseCategories(raw.Categories),
	}, nil
}

func resolve(ts model.Timestamp, z zone.Zone) (time.Time, error) {
	if ts.Floating {
		return z.Localize(ts.Time)
	}
	return z.ToZone(ts.Time), nil
}

// ParseCategories splits a semicolon-delimited tag string, trimming each
// segment and dropping empties. Duplicates collapse onto their first
// occurrence so split order is preserved.
func ParseCategories(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
