/*
Package export writes completed timesheets to payroll workbooks.

PURPOSE:
  Downstream payroll only ever reads a finished PayrollCalculation; this
  package never recalculates. One row per record on the "Timesheets" sheet,
  one row per employee-week on the "Weekly Summary" sheet.

USAGE:
  records, _ := svc.List(ctx, timesheet.Filter{Status: timesheet.StatusApproved})
  err := export.WriteXLSX(w, records, export.Options{Deadline: svc.Deadline})
*/
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/timesheet"
)

const (
	TimesheetSheet = "Timesheets"
	SummarySheet   = "Weekly Summary"

	dateFormat = "2006-01-02"
	timeFormat = "2006-01-02 15:04"
)

// Options controls the workbook contents.
type Options struct {
	Deadline timesheet.DeadlineRule

	// EmployeeNames fills the name column; missing ids leave it blank.
	EmployeeNames map[string]string
}

var timesheetColumns = []string{
	"Employee ID", "Employee", "Work Date", "Day", "Start", "End", "Break (min)",
	"Regular Hours", "Overtime Hours", "Night Hours", "Sleep Deduction", "Total Hours",
	"Hourly Rate", "Regular Pay", "Overtime Pay", "Total Pay",
	"Status", "Late", "Notes", "Submitted At", "Approved By", "Approved At", "Rejection Notes",
}

var summaryColumns = []string{
	"Employee ID", "Employee", "Week Ending", "Records", "Late",
	"Regular Hours", "Overtime Hours", "Night Hours", "Sleep Deduction", "Total Hours",
	"Regular Pay", "Overtime Pay", "Total Pay",
}

// WriteXLSX renders records as a workbook and writes it to w.
func WriteXLSX(w io.Writer, records []*timesheet.Record, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TimesheetSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writeRows(f, TimesheetSheet, timesheetColumns, header, timesheetRows(records, opts)); err != nil {
		return err
	}
	if err := writeRows(f, SummarySheet, summaryColumns, header, summaryRows(records, opts)); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, columns []string, headerStyle int, rows [][]any) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}

	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 14); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func timesheetRows(records []*timesheet.Record, opts Options) [][]any {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		e := rec.Entry
		row := []any{
			rec.EmployeeID, opts.EmployeeNames[rec.EmployeeID],
			e.Date().Format(dateFormat), e.Date().Weekday().String(),
			e.Start.String(), e.End.String(), e.BreakMinutes,
		}

		if c := rec.Calculation; c != nil {
			b := c.Breakdown
			row = append(row,
				hours(b.Regular), hours(b.Overtime), hours(b.Night), hours(b.Sleep), hours(b.Total),
				money(c.HourlyRate), money(c.RegularPay), money(c.OvertimePay), money(c.TotalPay),
			)
		} else {
			row = append(row, nil, nil, nil, nil, nil, nil, nil, nil, nil)
		}

		row = append(row,
			string(rec.Status), yesNo(opts.Deadline.IsLate(rec)), rec.Notes,
			stamp(rec.SubmittedAt), deref(rec.ApprovedBy), stamp(rec.ApprovedAt), rec.RejectionNotes,
		)
		rows = append(rows, row)
	}
	return rows
}

func summaryRows(records []*timesheet.Record, opts Options) [][]any {
	sums := timesheet.Summarize(records, opts.Deadline)
	rows := make([][]any, 0, len(sums))
	for _, s := range sums {
		rows = append(rows, []any{
			s.EmployeeID, opts.EmployeeNames[s.EmployeeID], s.WeekEnding.Format(dateFormat), s.Records, s.Late,
			hours(s.Regular), hours(s.Overtime), hours(s.Night), hours(s.Sleep), hours(s.Total),
			money(s.RegularPay), money(s.OvertimePay), money(s.TotalPay),
		})
	}
	return rows
}

func hours(m payroll.Minutes) float64 { return m.Hours().Round(2).InexactFloat64() }

func money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
