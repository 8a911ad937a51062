package staff

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const reportSheet = "Daily Hours"

// WriteDailyHoursXLSX renders the daily rollup as a spreadsheet: one row per
// staff per date, minutes plus a decimal-hours column for payroll.
func WriteDailyHoursXLSX(w io.Writer, rows []DailyHoursReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(reportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Staff ID", "Name", "Role", "Minutes", "Hours"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	totalMinutes := 0
	for i, row := range rows {
		totalMinutes += row.Minutes
		values := []any{
			row.WorkDate.Format("2006-01-02"),
			row.StaffID,
			row.StaffName,
			row.Role,
			row.Minutes,
			float64(row.Minutes) / 60,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(reportSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	totals := []any{"Total", nil, nil, nil, totalMinutes, float64(totalMinutes) / 60}
	for j, v := range totals {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(j+1, len(rows)+2)
		if err := f.SetCellValue(reportSheet, cell, v); err != nil {
			return fmt.Errorf("write totals: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
