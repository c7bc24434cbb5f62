package services

import (
	"testing"
	"time"

	"costwise/internal/models"
	"costwise/internal/testutil"
)

func TestClassifyVariance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewVarianceService(db)

	cases := []struct {
		name     string
		variance string
		budget   string
		want     string
	}{
		{"within_threshold_positive", "400", "10000", "neutral"},
		{"exactly_at_threshold", "500", "10000", "neutral"},
		{"overrun_beyond_threshold", "501", "10000", "unfavorable"},
		{"underrun_beyond_threshold", "-501", "10000", "favorable"},
		{"zero_variance", "0", "10000", "neutral"},
		{"zero_budget_zero_actual", "0", "0", "neutral"},
		{"zero_budget_with_spend", "250", "0", "unfavorable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.ClassifyVariance(testutil.MustDecimal(t, tc.variance), testutil.MustDecimal(t, tc.budget))
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCalculateVariance(t *testing.T) {
	t.Run("per_category_breakdown", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewVarianceService(db)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		start, end := periodFor(2026, time.March)

		testutil.CreateTestBudget(t, db, cc.ID, 2026, 3, models.CostCategoryPersonnel, "10000")
		testutil.CreateTestBudget(t, db, cc.ID, 2026, 3, models.CostCategorySupplies, "2000")
		testutil.CreateTestTransactionAt(t, db, cc.ID, models.TransactionTypeDirectCost, models.CostCategoryPersonnel, "11000", start)
		testutil.CreateTestTransactionAt(t, db, cc.ID, models.TransactionTypeAllocatedCost, models.CostCategorySupplies, "1900", start)

		report, err := svc.CalculateVariance(cc.ID, start, end)
		testutil.AssertNoError(t, err)

		if len(report.Categories) != 2 {
			t.Fatalf("expected 2 categories, got %d", len(report.Categories))
		}
		personnel := report.Categories[0]
		if personnel.Category != models.CostCategoryPersonnel {
			t.Fatalf("expected personnel first, got %s", personnel.Category)
		}
		testutil.AssertDecimalEqual(t, personnel.Variance, "1000")
		if personnel.Classification != "unfavorable" {
			t.Errorf("expected unfavorable personnel variance, got %s", personnel.Classification)
		}

		supplies := report.Categories[1]
		testutil.AssertDecimalEqual(t, supplies.Variance, "-100")
		if supplies.Classification != "neutral" {
			t.Errorf("expected neutral supplies variance at 5%%, got %s", supplies.Classification)
		}

		testutil.AssertDecimalEqual(t, report.Total.Budget, "12000")
		testutil.AssertDecimalEqual(t, report.Total.Actual, "12900")
	})

	t.Run("uses_current_revision", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		varianceSvc := NewVarianceService(db)
		budgetSvc := NewBudgetService(db, NewNoopNotificationService(), 90)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		start, end := periodFor(2026, time.April)

		budget, err := budgetSvc.CreateBudget(cc.ID, 2026, 4, models.CostCategoryServices, testutil.MustDecimal(t, "5000"))
		testutil.AssertNoError(t, err)
		_, err = budgetSvc.ReviseBudget(budget.ID, testutil.MustDecimal(t, "8000"), "scope change")
		testutil.AssertNoError(t, err)

		testutil.CreateTestTransactionAt(t, db, cc.ID, models.TransactionTypeDirectCost, models.CostCategoryServices, "7000", start)

		report, err := varianceSvc.CalculateVariance(cc.ID, start, end)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, report.Categories[0].Budget, "8000")
		testutil.AssertDecimalEqual(t, report.Categories[0].Variance, "-1000")
	})

	t.Run("actual_without_budget_is_unfavorable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewVarianceService(db)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		start, end := periodFor(2026, time.May)
		testutil.CreateTestTransactionAt(t, db, cc.ID, models.TransactionTypeDirectCost, models.CostCategoryOverhead, "300", start)

		report, err := svc.CalculateVariance(cc.ID, start, end)
		testutil.AssertNoError(t, err)
		if len(report.Categories) != 1 {
			t.Fatalf("expected 1 category, got %d", len(report.Categories))
		}
		if report.Categories[0].Classification != "unfavorable" {
			t.Errorf("expected unfavorable, got %s", report.Categories[0].Classification)
		}
	})

	t.Run("unknown_cost_center", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewVarianceService(db)

		start, end := periodFor(2026, time.May)
		_, err := svc.CalculateVariance("no-such-id", start, end)
		testutil.AssertAppError(t, err, "COST_CENTER_NOT_FOUND")
	})
}

func TestGetTrendAnalysis(t *testing.T) {
	t.Run("one_point_per_month_oldest_first", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewVarianceService(db)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		asOf := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

		testutil.CreateTestBudget(t, db, cc.ID, 2026, 5, models.CostCategoryPersonnel, "1000")
		testutil.CreateTestBudget(t, db, cc.ID, 2026, 6, models.CostCategoryPersonnel, "1000")
		testutil.CreateTestTransactionAt(t, db, cc.ID, models.TransactionTypeDirectCost, models.CostCategoryPersonnel, "900",
			time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC))
		testutil.CreateTestTransactionAt(t, db, cc.ID, models.TransactionTypeDirectCost, models.CostCategoryPersonnel, "1200",
			time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC))

		points, err := svc.GetTrendAnalysis(cc.ID, 3, asOf)
		testutil.AssertNoError(t, err)

		if len(points) != 3 {
			t.Fatalf("expected 3 points, got %d", len(points))
		}
		if points[0].Period != "2026-04" || points[2].Period != "2026-06" {
			t.Errorf("expected periods 2026-04..2026-06, got %s..%s", points[0].Period, points[2].Period)
		}
		testutil.AssertDecimalEqual(t, points[0].Actual, "0")
		testutil.AssertDecimalEqual(t, points[1].Variance, "-100")
		testutil.AssertDecimalEqual(t, points[2].Variance, "200")
	})

	t.Run("month_end_as_of", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewVarianceService(db)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		// Day 31 would overflow when stepping back through shorter months.
		asOf := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)

		testutil.CreateTestTransactionAt(t, db, cc.ID, models.TransactionTypeDirectCost, models.CostCategoryPersonnel, "700",
			time.Date(2026, time.February, 14, 0, 0, 0, 0, time.UTC))

		points, err := svc.GetTrendAnalysis(cc.ID, 3, asOf)
		testutil.AssertNoError(t, err)

		if len(points) != 3 {
			t.Fatalf("expected 3 points, got %d", len(points))
		}
		for i, want := range []string{"2026-01", "2026-02", "2026-03"} {
			if points[i].Period != want {
				t.Errorf("point %d: expected period %s, got %s", i, want, points[i].Period)
			}
		}
		testutil.AssertDecimalEqual(t, points[1].Actual, "700")
	})

	t.Run("month_count_must_be_positive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewVarianceService(db)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		_, err := svc.GetTrendAnalysis(cc.ID, 0, time.Now())
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}

func TestCompareServiceLines(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewVarianceService(db)

	start, end := periodFor(2026, time.July)

	// Cardiology: revenue 10000, cost 6000, fully attributed.
	cardioCC := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeProfitCenter)
	testutil.CreateTestTransactionAt(t, db, cardioCC.ID, models.TransactionTypeRevenue, models.CostCategoryServices, "10000", start)
	testutil.CreateTestTransactionAt(t, db, cardioCC.ID, models.TransactionTypeDirectCost, models.CostCategoryPersonnel, "6000", start)
	cardio := testutil.CreateTestServiceLine(t, db, []string{cardioCC.ID}, "100")

	// Imaging: figures attributed at 50%.
	imagingCC := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeProfitCenter)
	testutil.CreateTestTransactionAt(t, db, imagingCC.ID, models.TransactionTypeRevenue, models.CostCategoryServices, "8000", start)
	testutil.CreateTestTransactionAt(t, db, imagingCC.ID, models.TransactionTypeDirectCost, models.CostCategoryPersonnel, "2000", start)
	imaging := testutil.CreateTestServiceLine(t, db, []string{imagingCC.ID}, "50")

	// No revenue at all: margin pinned to zero.
	idleCC := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
	testutil.CreateTestTransactionAt(t, db, idleCC.ID, models.TransactionTypeDirectCost, models.CostCategoryPersonnel, "500", start)
	idle := testutil.CreateTestServiceLine(t, db, []string{idleCC.ID}, "100")

	results, err := svc.CompareServiceLines([]string{cardio.ID, imaging.ID, idle.ID}, start, end)
	testutil.AssertNoError(t, err)

	if len(results) != 3 {
		t.Fatalf("expected 3 service lines, got %d", len(results))
	}
	// Imaging margin 75% sorts ahead of cardiology's 40%.
	if results[0].ServiceLineID != imaging.ID {
		t.Errorf("expected imaging first, got %s", results[0].Code)
	}
	testutil.AssertDecimalEqual(t, results[0].Revenue, "4000")
	testutil.AssertDecimalEqual(t, results[0].Cost, "1000")
	testutil.AssertDecimalEqual(t, results[0].ProfitMargin, "75")

	if results[1].ServiceLineID != cardio.ID {
		t.Errorf("expected cardiology second, got %s", results[1].Code)
	}
	testutil.AssertDecimalEqual(t, results[1].ProfitMargin, "40")

	if results[2].ServiceLineID != idle.ID {
		t.Errorf("expected the revenue-less line last, got %s", results[2].Code)
	}
	testutil.AssertDecimalEqual(t, results[2].ProfitMargin, "0")
	testutil.AssertDecimalEqual(t, results[2].Profit, "-500")
}
