// Package console renders reports for a terminal.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/antonio-leblanc/working-hours/internal/report"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleSection = lipgloss.NewStyle().Bold(true)
	styleGray    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleKey     = lipgloss.NewStyle().Width(24)
	styleNum     = lipgloss.NewStyle().Width(10).Align(lipgloss.Right)
)

// Options selects the optional sections of the rendering.
type Options struct {
	Days   bool
	Weeks  bool
	Months bool
}

// Render writes a human-readable summary of rep to w.
func Render(w io.Writer, rep report.Report, opts Options) error {
	var b strings.Builder

	b.WriteString(styleTitle.Render("Working hours " + rep.Label))
	b.WriteString("\n")
	if rep.RunID != "" {
		b.WriteString(styleGray.Render("run " + rep.RunID))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(row("Work", fmtHours(rep.WorkHours), ""))
	b.WriteString(row("Personal", fmtHours(rep.PersonalHours), ""))
	b.WriteString(row("Calendar days", fmt.Sprint(rep.CalendarDays), fmtHours(rep.AvgHoursPerCalendarDay)+"/day"))
	b.WriteString(row("Potential working days", fmt.Sprint(rep.PotentialWorkingDays), fmtHours(rep.AvgHoursPerPotentialDay)+"/day"))
	b.WriteString(row("Logged working days", fmt.Sprint(rep.LoggedWorkingDays), fmtHours(rep.AvgHoursPerLoggedDay)+"/day"))

	section(&b, "Categories", rep.Categories)
	section(&b, "Weekdays", rep.Weekdays)
	if opts.Weeks {
		section(&b, "ISO weeks", rep.Weeks)
	}
	if opts.Months {
		section(&b, "Months", rep.Months)
	}
	if opts.Days && len(rep.Days) > 0 {
		b.WriteString("\n")
		b.WriteString(styleSection.Render("Days"))
		b.WriteString("\n")
		for _, d := range rep.Days {
			mark := ""
			if !d.WorkingDay {
				mark = styleGray.Render("weekend")
			}
			b.WriteString(row(d.Date+" "+abbrev(d.Weekday), fmtHours(d.Hours), mark))
		}
	}

	b.WriteString("\n")
	b.WriteString(styleGray.Render(fmt.Sprintf("%d events seen, %d skipped", rep.EventsSeen, rep.EventsSkipped)))
	b.WriteString("\n")
	for _, warn := range rep.Warnings {
		b.WriteString(styleWarn.Render("warning: " + warn))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title string, lines []report.Line) {
	b.WriteString("\n")
	b.WriteString(styleSection.Render(title))
	b.WriteString("\n")
	if len(lines) == 0 {
		b.WriteString(styleGray.Render("  none"))
		b.WriteString("\n")
		return
	}
	for _, l := range lines {
		b.WriteString(row(l.Key, fmtHours(l.Hours), fmt.Sprintf("%.1f%%", l.Percent)))
	}
}

func row(key, value, extra string) string {
	return "  " + styleKey.Render(key) + styleNum.Render(value) + "  " + extra + "\n"
}

func abbrev(day string) string {
	if len(day) > 3 {
		return day[:3]
	}
	return day
}

func fmtHours(h float64) string {
	return fmt.Sprintf("%.2fh", h)
}
