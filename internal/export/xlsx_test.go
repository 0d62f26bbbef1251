package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/antonio-leblanc/working-hours/internal/report"
)

func sampleReport() report.Report {
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	return report.Report{
		RunID:         "run-1",
		Label:         "2024-03-11 to 2024-03-17",
		Start:         start,
		End:           start.AddDate(0, 0, 7).Add(-time.Microsecond),
		TotalWork:     4*time.Hour + 30*time.Minute,
		WorkHours:     4.5,
		PersonalHours: 1,
		Categories: []report.Line{
			{Key: "Dev", Hours: 3, Percent: 66.666},
			{Key: "Meetings", Hours: 1.5, Percent: 33.333},
		},
		Weekdays: []report.Line{{Key: "Monday", Hours: 4.5, Percent: 100}},
		Days: []report.DayLine{
			{Date: "2024-03-11", Weekday: "Monday", WorkingDay: true, Hours: 4.5},
		},
		Weeks:             []report.Line{{Key: "2024-W11", Hours: 4.5, Percent: 100}},
		Months:            []report.Line{{Key: "2024-03", Hours: 4.5, Percent: 100}},
		CalendarDays:      7,
		LoggedWorkingDays: 1,
		Warnings:          []string{"category sum differs"},
	}
}

func TestWorkbookSheetsAndRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t,
		[]string{SheetSummary, SheetCategories, SheetWeekdays, SheetDays, SheetWeeks, SheetMonths},
		f.GetSheetList())

	cats, err := f.GetRows(SheetCategories)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	require.Equal(t, []string{"Category", "Hours", "Percent"}, cats[0])
	require.Equal(t, []string{"Dev", "3", "66.67"}, cats[1])
	require.Equal(t, []string{"Meetings", "1.5", "33.33"}, cats[2])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Equal(t, []string{"Period", "2024-03-11 to 2024-03-17"}, summary[2])
	require.Equal(t, []string{"Warning", "category sum differs"}, summary[len(summary)-1])

	weeks, err := f.GetRows(SheetWeeks)
	require.NoError(t, err)
	require.Equal(t, "2024-W11", weeks[1][0])
}

func TestSaveFileCreatesDirectories(t *testing.T) {
	rep := sampleReport()
	path := filepath.Join(t.TempDir(), "nested", FileName(rep))

	require.NoError(t, SaveFile(path, rep))
	require.Equal(t, "workhours_20240311_20240317.xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.Len(t, f.GetSheetList(), 6)
}

func TestEmptyReportStillHasHeaders(t *testing.T) {
	f, err := Workbook(report.Report{})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetMonths)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Month", "Hours", "Percent"}}, rows)
}
