package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportUsageReport writes the usage report as an xlsx file under exportPath
// and returns the file path.
func (s *Service) ExportUsageReport(ctx context.Context, exportPath string, from, to time.Time) (string, error) {
	if err := os.MkdirAll(exportPath, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	report, err := s.BuildUsageReport(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error building usage report: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Lab usage"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format("2006-01-02"), to.Format("2006-01-02")))
	_ = f.MergeCell(sheetName, "A1", "F1")

	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)

	headers := []string{"Lab", "Reservations", "Approved hours", "Pending", "Utilization", "Busiest day"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	for i, lab := range report.Labs {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), lab.LabName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), lab.Reservations)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), lab.ApprovedHours)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), lab.PendingCount)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("%.1f%%", lab.Utilization*100))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), lab.BusiestDay)
	}
	_ = f.SetColWidth(sheetName, "A", "A", 25)
	_ = f.SetColWidth(sheetName, "B", "F", 18)

	instructorSheet := "Instructors"
	if _, err := f.NewSheet(instructorSheet); err == nil {
		headers := []string{"Instructor", "Reservations", "Booked hours"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(instructorSheet, cell, h)
		}
		for i, instr := range report.Instructors {
			row := i + 2
			name := instr.FullName
			if name == "" {
				name = fmt.Sprintf("user %d", instr.InstructorID)
			}
			_ = f.SetCellValue(instructorSheet, fmt.Sprintf("A%d", row), name)
			_ = f.SetCellValue(instructorSheet, fmt.Sprintf("B%d", row), instr.Reservations)
			_ = f.SetCellValue(instructorSheet, fmt.Sprintf("C%d", row), instr.BookedHours)
		}
		_ = f.SetColWidth(instructorSheet, "A", "A", 25)
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("usage_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(exportPath, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	s.logger.Info().Str("file_path", filePath).Msg("Usage report exported")
	return filePath, nil
}
