package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"costwise/internal/models"
	"costwise/internal/testutil"
)

func sampleVarianceReport(t *testing.T) *VarianceReport {
	t.Helper()
	return &VarianceReport{
		CostCenterID:   "cc-1",
		CostCenterCode: "ICU",
		PeriodStart:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		Categories: []CategoryVariance{
			{
				Category:       models.CostCategoryPersonnel,
				Budget:         testutil.MustDecimal(t, "10000"),
				Actual:         testutil.MustDecimal(t, "11000"),
				Variance:       testutil.MustDecimal(t, "1000"),
				Classification: "unfavorable",
			},
			{
				Category:       models.CostCategorySupplies,
				Budget:         testutil.MustDecimal(t, "2000"),
				Actual:         testutil.MustDecimal(t, "1900"),
				Variance:       testutil.MustDecimal(t, "-100"),
				Classification: "neutral",
			},
		},
		Total: CategoryVariance{
			Budget:         testutil.MustDecimal(t, "12000"),
			Actual:         testutil.MustDecimal(t, "12900"),
			Variance:       testutil.MustDecimal(t, "900"),
			Classification: "unfavorable",
		},
	}
}

func TestVarianceReportCSV(t *testing.T) {
	svc := NewExportService()

	out, err := svc.VarianceReportCSV(sampleVarianceReport(t))
	testutil.AssertNoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	testutil.AssertNoError(t, err)

	// Two header rows, a blank, the column header, two categories, and a total.
	if len(rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(rows))
	}
	if rows[0][1] != "ICU" {
		t.Errorf("expected cost center code in the header, got %v", rows[0])
	}
	if rows[4][0] != "personnel" || rows[4][3] != "1000.00" {
		t.Errorf("unexpected personnel row: %v", rows[4])
	}
	if rows[6][0] != "total" || rows[6][1] != "12000.00" {
		t.Errorf("unexpected total row: %v", rows[6])
	}
}

func TestVarianceReportXLSX(t *testing.T) {
	svc := NewExportService()

	out, err := svc.VarianceReportXLSX(sampleVarianceReport(t))
	testutil.AssertNoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	testutil.AssertNoError(t, err)
	defer f.Close()

	code, err := f.GetCellValue("Variance", "B1")
	testutil.AssertNoError(t, err)
	if code != "ICU" {
		t.Errorf("expected ICU in B1, got %s", code)
	}

	category, err := f.GetCellValue("Variance", "A5")
	testutil.AssertNoError(t, err)
	if category != "personnel" {
		t.Errorf("expected personnel in A5, got %s", category)
	}

	total, err := f.GetCellValue("Variance", "A7")
	testutil.AssertNoError(t, err)
	if total != "total" {
		t.Errorf("expected total in A7, got %s", total)
	}
}
