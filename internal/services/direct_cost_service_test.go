package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"costwise/internal/models"
	"costwise/internal/testutil"
)

func newDirectCostService(db *gorm.DB) DirectCostServicer {
	return NewDirectCostService(db, NewBudgetService(db, NewNoopNotificationService(), 90))
}

func TestAssignSalaryCost(t *testing.T) {
	t.Run("splits_by_assignment_percentage", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		cc1 := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		cc2 := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		d1 := testutil.CreateTestDepartment(t, db, cc1.ID)
		d2 := testutil.CreateTestDepartment(t, db, cc2.ID)
		staff := testutil.CreateTestStaffMember(t, db)
		testutil.CreateTestStaffAssignment(t, db, staff.ID, d1.ID, "60", 0)
		testutil.CreateTestStaffAssignment(t, db, staff.ID, d2.ID, "40", 1)

		records, err := svc.AssignSalaryCost(staff.ID, testutil.MustDecimal(t, "10000"), time.Now(), "March salary")
		testutil.AssertNoError(t, err)

		if len(records) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(records))
		}
		testutil.AssertDecimalEqual(t, records[0].Amount, "6000")
		testutil.AssertDecimalEqual(t, records[1].Amount, "4000")
		if records[0].CostCenterID != cc1.ID {
			t.Error("expected first share posted to the first assignment's cost center")
		}
		if records[0].Category != models.CostCategoryPersonnel {
			t.Errorf("expected personnel category, got %s", records[0].Category)
		}
		if records[0].ReferenceType != models.ReferenceTypeSalary || records[0].ReferenceID != staff.ID {
			t.Error("expected salary reference back to the staff member")
		}
	})

	t.Run("last_assignment_absorbs_remainder", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		staff := testutil.CreateTestStaffMember(t, db)
		for i, p := range []string{"33.33", "33.33", "33.34"} {
			cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
			dept := testutil.CreateTestDepartment(t, db, cc.ID)
			testutil.CreateTestStaffAssignment(t, db, staff.ID, dept.ID, p, i)
		}

		records, err := svc.AssignSalaryCost(staff.ID, testutil.MustDecimal(t, "10000000"), time.Now(), "")
		testutil.AssertNoError(t, err)

		sum := decimal.Zero
		for _, r := range records {
			sum = sum.Add(r.Amount)
		}
		testutil.AssertDecimalEqual(t, sum, "10000000")
	})

	t.Run("no_active_assignment", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		staff := testutil.CreateTestStaffMember(t, db)
		_, err := svc.AssignSalaryCost(staff.ID, testutil.MustDecimal(t, "5000"), time.Now(), "")
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("inactive_staff", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		staff := testutil.CreateTestStaffMember(t, db)
		db.Model(staff).Update("is_active", false)

		_, err := svc.AssignSalaryCost(staff.ID, testutil.MustDecimal(t, "5000"), time.Now(), "")
		testutil.AssertAppError(t, err, "INACTIVE_STAFF")
	})

	t.Run("inactive_cost_center_rolls_back_whole_split", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		active := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		inactive := testutil.CreateTestInactiveCostCenter(t, db)
		d1 := testutil.CreateTestDepartment(t, db, active.ID)
		d2 := testutil.CreateTestDepartment(t, db, inactive.ID)
		staff := testutil.CreateTestStaffMember(t, db)
		testutil.CreateTestStaffAssignment(t, db, staff.ID, d1.ID, "50", 0)
		testutil.CreateTestStaffAssignment(t, db, staff.ID, d2.ID, "50", 1)

		_, err := svc.AssignSalaryCost(staff.ID, testutil.MustDecimal(t, "8000"), time.Now(), "")
		testutil.AssertAppError(t, err, "INACTIVE_COST_CENTER")

		var count int64
		db.Model(&models.CostCenterTransaction{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no transactions after rollback, got %d", count)
		}
	})
}

func TestAssignDepreciationCost(t *testing.T) {
	t.Run("posts_to_location_cost_center", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		dept := testutil.CreateTestDepartment(t, db, cc.ID)
		asset := testutil.CreateTestAsset(t, db, &dept.ID)

		record, err := svc.AssignDepreciationCost(asset.ID, testutil.MustDecimal(t, "1250.50"), time.Now(), "Monthly depreciation")
		testutil.AssertNoError(t, err)

		if record.CostCenterID != cc.ID {
			t.Error("expected posting against the department's cost center")
		}
		if record.Category != models.CostCategoryDepreciation {
			t.Errorf("expected depreciation category, got %s", record.Category)
		}
		testutil.AssertDecimalEqual(t, record.Amount, "1250.50")
	})

	t.Run("asset_without_location", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		asset := testutil.CreateTestAsset(t, db, nil)
		_, err := svc.AssignDepreciationCost(asset.ID, testutil.MustDecimal(t, "100"), time.Now(), "")
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("unknown_asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		_, err := svc.AssignDepreciationCost("no-such-asset", testutil.MustDecimal(t, "100"), time.Now(), "")
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})
}

func TestAssignMaterialCost(t *testing.T) {
	t.Run("posts_supplies_transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		record, err := svc.AssignMaterialCost(cc.ID, testutil.MustDecimal(t, "430.75"), time.Now(), "requisition", "REQ-17", "Gauze and syringes")
		testutil.AssertNoError(t, err)

		if record.Category != models.CostCategorySupplies {
			t.Errorf("expected supplies category, got %s", record.Category)
		}
		if record.ReferenceID != "REQ-17" {
			t.Errorf("expected reference REQ-17, got %s", record.ReferenceID)
		}
	})

	t.Run("inactive_cost_center_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDirectCostService(db)

		inactive := testutil.CreateTestInactiveCostCenter(t, db)
		_, err := svc.AssignMaterialCost(inactive.ID, testutil.MustDecimal(t, "100"), time.Now(), "", "", "")
		testutil.AssertAppError(t, err, "INACTIVE_COST_CENTER")

		var count int64
		db.Model(&models.CostCenterTransaction{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no transaction records, got %d", count)
		}
	})
}
