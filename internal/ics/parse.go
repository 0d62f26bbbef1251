package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/model"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary    string
	Categories []string

	Start  model.Timestamp
	End    model.Timestamp
	AllDay bool

	RawRRule   string
	RDates     []model.Timestamp
	ExDates    []model.Timestamp
	Recurrence *model.Timestamp // RECURRENCE-ID, if this VEVENT overrides one instance
	IsOverride bool
}

// Duration returns End - Start, comparing floating wall clocks directly.
func (ev ParsedEvent) Duration() time.Duration {
	return ev.End.Time.Sub(ev.Start.Time)
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - DTSTART/DTEND with TZID or a trailing Z become aware timestamps.
//   - Values without either, and all-day DATE values, stay floating so the
//     analysis zone decides their instant.
//   - RRULE/RDATE/EXDATE/RECURRENCE-ID are recorded but not expanded;
//     expansion is done in expand.go.
//
// VEVENTs that cannot be parsed are logged and skipped.
func ParseICS(src Source, body []byte, logger *appLog.Logger) ([]ParsedEvent, error) {
	if logger == nil {
		logger = appLog.Default()
	}
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", src.ID, err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			logger.Warn("ics vevent skipped", "event", appLog.TagSkippedEvent, "id", src.ID, "detail", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	logger.Info("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	// A missing SUMMARY is left empty; the analysis skips such events.
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}

	for _, p := range ve.GetProperties("CATEGORIES") {
		out.Categories = append(out.Categories, splitTextList(p.Value)...)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("uid %s: missing DTSTART", out.UID)
	}
	start, allDay, err := parseProperty(dtStart.Value, dtStart.ICalParameters)
	if err != nil {
		return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
	}
	out.Start = start
	out.AllDay = allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		p := ve.GetProperty(ical.ComponentPropertyDtEnd)
		end, _, err := parseProperty(p.Value, p.ICalParameters)
		if err != nil {
			return out, fmt.Errorf("uid %s: DTEND: %w", out.UID, err)
		}
		out.End = end
	case ve.GetProperty("DURATION") != nil:
		d, err := parseDuration(ve.GetProperty("DURATION").Value)
		if err != nil {
			return out, fmt.Errorf("uid %s: DURATION: %w", out.UID, err)
		}
		out.End = model.Timestamp{Time: start.Time.Add(d), Floating: start.Floating}
	case allDay:
		out.End = model.Timestamp{Time: start.Time.AddDate(0, 0, 1), Floating: true}
	default:
		// RFC 5545: a DATE-TIME DTSTART without DTEND/DURATION ends at its start.
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties("RDATE") {
		out.RDates = append(out.RDates, parseList(p.Value, p.ICalParameters)...)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		out.ExDates = append(out.ExDates, parseList(p.Value, p.ICalParameters)...)
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if ts, _, err := parseProperty(p.Value, p.ICalParameters); err == nil {
			out.Recurrence = &ts
			out.IsOverride = true
		}
	}

	return out, nil
}

func parseList(value string, params map[string][]string) []model.Timestamp {
	var out []model.Timestamp
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if ts, _, err := parseProperty(part, params); err == nil {
			out = append(out, ts)
		}
	}
	return out
}

// parseProperty parses a DATE or DATE-TIME value honoring VALUE and TZID.
func parseProperty(value string, params map[string][]string) (model.Timestamp, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return model.Timestamp{}, false, errors.New("empty time value")
	}

	isDate := !strings.Contains(value, "T")
	if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.Parse("20060102", value)
		if err != nil {
			return model.Timestamp{}, true, err
		}
		return model.Timestamp{Time: t, Floating: true}, true, nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		if err != nil {
			return model.Timestamp{}, false, err
		}
		return model.Aware(t), false, nil
	}

	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 && tzs[0] != "" {
		loc, err := loadTZID(tzs[0])
		if err != nil {
			return model.Timestamp{}, false, err
		}
		t, err := time.ParseInLocation("20060102T150405", value, loc)
		if err != nil {
			return model.Timestamp{}, false, err
		}
		return model.Aware(t), false, nil
	}

	t, err := time.Parse("20060102T150405", value)
	if err != nil {
		return model.Timestamp{}, false, err
	}
	return model.Timestamp{Time: t, Floating: true}, false, nil
}

// loadTZID resolves a TZID parameter. Some producers prefix the IANA name
// with a path such as "/mozilla.org/20050126_1/Europe/Berlin".
func loadTZID(tzid string) (*time.Location, error) {
	tzid = strings.Trim(tzid, `"`)
	if loc, err := time.LoadLocation(tzid); err == nil {
		return loc, nil
	}
	parts := strings.Split(strings.Trim(tzid, "/"), "/")
	for i := range parts {
		if loc, err := time.LoadLocation(strings.Join(parts[i:], "/")); err == nil {
			return loc, nil
		}
	}
	return nil, fmt.Errorf("unknown TZID %q", tzid)
}

// parseDuration parses the RFC 5545 DURATION subset used in practice:
// [+-]P[nW] or [+-]P[nD][T[nH][nM][nS]].
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	sign := time.Duration(1)
	if strings.HasPrefix(v, "-") {
		sign = -1
		v = v[1:]
	} else if strings.HasPrefix(v, "+") {
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") || len(v) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range v[1:] {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		num = ""
		switch {
		case r == 'W' && !inTime:
			total += time.Duration(n) * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += time.Duration(n) * 24 * time.Hour
		case r == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case r == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case r == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return sign * total, nil
}

// splitTextList splits a comma-separated TEXT list, honoring "\," escapes.
func splitTextList(v string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\\' && i+1 < len(v) {
			cur.WriteByte(c)
			cur.WriteByte(v[i+1])
			i++
			continue
		}
		if c == ',' {
			out = appendText(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return appendText(out, cur.String())
}

func appendText(out []string, s string) []string {
	s = strings.TrimSpace(unescapeText(s))
	if s == "" {
		return out
	}
	return append(out, s)
}

var textUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, " ", `\N`, " ", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
