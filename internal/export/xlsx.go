// Package export writes reports as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/report"
)

// Sheet names, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetCategories = "Categories"
	SheetWeekdays   = "Weekdays"
	SheetDays       = "Days"
	SheetWeeks      = "Weeks"
	SheetMonths     = "Months"
)

// Workbook renders rep into a new in-memory workbook. The caller closes it.
func Workbook(rep report.Report) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("export: header style: %w", err)
	}
	w := &sheetWriter{f: f, header: header}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	w.table(SheetSummary, []string{"Field", "Value"}, summaryRows(rep))
	w.table(SheetCategories, []string{"Category", "Hours", "Percent"}, lineRows(rep.Categories))
	w.table(SheetWeekdays, []string{"Weekday", "Hours", "Percent"}, lineRows(rep.Weekdays))
	w.table(SheetDays, []string{"Date", "Weekday", "Working day", "Hours"}, dayRows(rep.Days))
	w.table(SheetWeeks, []string{"ISO week", "Hours", "Percent"}, lineRows(rep.Weeks))
	w.table(SheetMonths, []string{"Month", "Hours", "Percent"}, lineRows(rep.Months))

	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// Write streams the workbook for rep to out.
func Write(out io.Writer, rep report.Report) error {
	f, err := Workbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// SaveFile writes the workbook for rep to path, creating parent directories.
func SaveFile(path string, rep report.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: mkdir: %w", err)
	}
	f, err := Workbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	appLog.Info("report workbook saved", "path", path, "run_id", rep.RunID)
	return nil
}

// FileName derives a stable workbook name from the report's date range.
func FileName(rep report.Report) string {
	return fmt.Sprintf("workhours_%s_%s.xlsx", rep.Start.Format("20060102"), rep.End.Format("20060102"))
}

type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) table(sheet string, head []string, rows [][]any) {
	if w.err != nil {
		return
	}
	if sheet != SheetSummary {
		if _, err := w.f.NewSheet(sheet); err != nil {
			w.err = fmt.Errorf("export: new sheet %s: %w", sheet, err)
			return
		}
	}

	headRow := make([]any, len(head))
	for i, h := range head {
		headRow[i] = h
	}
	if err := w.f.SetSheetRow(sheet, "A1", &headRow); err != nil {
		w.err = fmt.Errorf("export: %s header: %w", sheet, err)
		return
	}
	last, _ := excelize.CoordinatesToCellName(len(head), 1)
	if err := w.f.SetCellStyle(sheet, "A1", last, w.header); err != nil {
		w.err = fmt.Errorf("export: %s header style: %w", sheet, err)
		return
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			w.err = fmt.Errorf("export: %s row %d: %w", sheet, i+2, err)
			return
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(head))
	if err := w.f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		w.err = fmt.Errorf("export: %s widths: %w", sheet, err)
	}
}

func summaryRows(rep report.Report) [][]any {
	rows := [][]any{
		{"Run", rep.RunID},
		{"Period", rep.Label},
		{"Start", rep.Start.Format(time.RFC3339)},
		{"End", rep.End.Format(time.RFC3339)},
		{"Work hours", round2(rep.WorkHours)},
		{"Personal hours", round2(rep.PersonalHours)},
		{"Calendar days", rep.CalendarDays},
		{"Potential working days", rep.PotentialWorkingDays},
		{"Logged working days", rep.LoggedWorkingDays},
		{"Avg hours per calendar day", round2(rep.AvgHoursPerCalendarDay)},
		{"Avg hours per potential working day", round2(rep.AvgHoursPerPotentialDay)},
		{"Avg hours per logged working day", round2(rep.AvgHoursPerLoggedDay)},
		{"Events seen", rep.EventsSeen},
		{"Events skipped", rep.EventsSkipped},
	}
	for _, warn := range rep.Warnings {
		rows = append(rows, []any{"Warning", warn})
	}
	return rows
}

func lineRows(lines []report.Line) [][]any {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{l.Key, round2(l.Hours), round2(l.Percent)})
	}
	return rows
}

func dayRows(days []report.DayLine) [][]any {
	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{d.Date, d.Weekday, d.WorkingDay, round2(d.Hours)})
	}
	return rows
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
