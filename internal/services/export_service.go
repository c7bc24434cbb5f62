package services

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	apperrors "costwise/internal/errors"
)

// exportService renders variance reports for download.
type exportService struct{}

// NewExportService creates a new ExportServicer.
func NewExportService() ExportServicer {
	return &exportService{}
}

var varianceHeader = []string{"Category", "Budget", "Actual", "Variance", "Classification"}

// VarianceReportCSV renders a variance report as CSV with one row per
// category and a trailing total row.
func (s *exportService) VarianceReportCSV(report *VarianceReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"Cost Center", report.CostCenterCode},
		{"Period", report.PeriodStart.Format("2006-01-02") + " to " + report.PeriodEnd.Format("2006-01-02")},
		{},
		varianceHeader,
	}
	for _, c := range report.Categories {
		rows = append(rows, []string{
			string(c.Category),
			c.Budget.StringFixed(2),
			c.Actual.StringFixed(2),
			c.Variance.StringFixed(2),
			c.Classification,
		})
	}
	rows = append(rows, []string{
		"total",
		report.Total.Budget.StringFixed(2),
		report.Total.Actual.StringFixed(2),
		report.Total.Variance.StringFixed(2),
		report.Total.Classification,
	})

	if err := w.WriteAll(rows); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

// VarianceReportXLSX renders a variance report as a single-sheet workbook.
func (s *exportService) VarianceReportXLSX(report *VarianceReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Variance"
	f.SetSheetName("Sheet1", sheet)
	f.SetColWidth(sheet, "A", "A", 16)
	f.SetColWidth(sheet, "B", "E", 14)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	totalStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})

	f.SetCellValue(sheet, "A1", "Cost Center")
	f.SetCellValue(sheet, "B1", report.CostCenterCode)
	f.SetCellValue(sheet, "A2", "Period")
	f.SetCellValue(sheet, "B2", report.PeriodStart.Format("2006-01-02")+" to "+report.PeriodEnd.Format("2006-01-02"))

	const headerRow = 4
	for i, title := range varianceHeader {
		cell := fmt.Sprintf("%c%d", 'A'+i, headerRow)
		f.SetCellValue(sheet, cell, title)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	row := headerRow
	for _, c := range report.Categories {
		row++
		s.writeVarianceRow(f, sheet, row, string(c.Category), c)
	}
	row++
	s.writeVarianceRow(f, sheet, row, "total", report.Total)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("E%d", row), totalStyle)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

func (s *exportService) writeVarianceRow(f *excelize.File, sheet string, row int, label string, c CategoryVariance) {
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), label)
	budget, _ := c.Budget.Float64()
	actual, _ := c.Actual.Float64()
	variance, _ := c.Variance.Float64()
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), budget)
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), actual)
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row), variance)
	f.SetCellValue(sheet, fmt.Sprintf("E%d", row), c.Classification)
}
