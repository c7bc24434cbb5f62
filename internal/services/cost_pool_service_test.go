package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"costwise/internal/allocation"
	"costwise/internal/models"
	"costwise/internal/testutil"
)

func newCostPoolService(db *gorm.DB) CostPoolServicer {
	return NewCostPoolService(db, newDirectCostService(db), NewNoopNotificationService())
}

func TestCreatePool(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool, err := svc.CreatePool(PoolInput{Code: "FAC", Name: "Facilities", PoolType: models.PoolTypeFacilities})
		testutil.AssertNoError(t, err)

		if pool.AllocationBase != models.AllocationBaseEqual {
			t.Errorf("expected default equal base, got %s", pool.AllocationBase)
		}
		if !pool.IsActive {
			t.Error("expected pool to be active")
		}
	})

	t.Run("duplicate_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		_, err := svc.CreatePool(PoolInput{Code: "OH", Name: "Overhead", PoolType: models.PoolTypeOverhead})
		testutil.AssertNoError(t, err)
		_, err = svc.CreatePool(PoolInput{Code: "OH", Name: "Overhead again", PoolType: models.PoolTypeOverhead})
		testutil.AssertAppError(t, err, "DUPLICATE_CODE")
	})
}

func TestAddMember(t *testing.T) {
	t.Run("contributor_and_target_roles", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)

		// The same cost center may hold both roles.
		_, err := svc.AddMember(pool.ID, cc.ID, true)
		testutil.AssertNoError(t, err)
		_, err = svc.AddMember(pool.ID, cc.ID, false)
		testutil.AssertNoError(t, err)

		// But not the same role twice.
		_, err = svc.AddMember(pool.ID, cc.ID, true)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("inactive_cost_center", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		inactive := testutil.CreateTestInactiveCostCenter(t, db)
		_, err := svc.AddMember(pool.ID, inactive.ID, true)
		testutil.AssertAppError(t, err, "INACTIVE_COST_CENTER")
	})
}

func TestAccumulateCosts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newCostPoolService(db)

	pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
	c1 := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
	c2 := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
	target := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
	testutil.CreateTestPoolMember(t, db, pool.ID, c1.ID, true, 0)
	testutil.CreateTestPoolMember(t, db, pool.ID, c2.ID, true, 1)
	testutil.CreateTestPoolMember(t, db, pool.ID, target.ID, false, 0)

	start, end := periodFor(2026, time.March)
	testutil.CreateTestTransactionAt(t, db, c1.ID, models.TransactionTypeDirectCost, models.CostCategoryOverhead, "1200.50", start)
	testutil.CreateTestTransactionAt(t, db, c2.ID, models.TransactionTypeDirectCost, models.CostCategoryServices, "799.50", start)
	// The target's own costs never feed the pool.
	testutil.CreateTestTransactionAt(t, db, target.ID, models.TransactionTypeDirectCost, models.CostCategoryOverhead, "5000", start)

	total, err := svc.AccumulateCosts(pool.ID, start, end)
	testutil.AssertNoError(t, err)
	testutil.AssertDecimalEqual(t, total, "2000")
}

func TestAllocatePool(t *testing.T) {
	t.Run("equal_distribution_zero_sum", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		contrib := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
		testutil.CreateTestPoolMember(t, db, pool.ID, contrib.ID, true, 0)
		var targets []*models.CostCenter
		for i := 0; i < 3; i++ {
			cc := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
			testutil.CreateTestPoolMember(t, db, pool.ID, cc.ID, false, i)
			targets = append(targets, cc)
		}

		start, end := periodFor(2026, time.April)
		testutil.CreateTestTransactionAt(t, db, contrib.ID, models.TransactionTypeDirectCost, models.CostCategoryOverhead, "10000", start)

		batchID, err := svc.AllocatePool(pool.ID, start, end)
		testutil.AssertNoError(t, err)

		var lines []models.AllocationJournal
		db.Where("batch_id = ?", batchID).Find(&lines)
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d", len(lines))
		}

		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.AllocatedAmount)
			if l.PoolID == nil || *l.PoolID != pool.ID {
				t.Error("expected line to reference the pool")
			}
			if l.SourceCostCenterID != nil {
				t.Error("expected pool lines to carry no source cost center")
			}
			// Equal split keeps amounts within a cent of each other.
			diff := l.AllocatedAmount.Sub(testutil.MustDecimal(t, "3333.33")).Abs()
			if diff.GreaterThan(testutil.MustDecimal(t, "0.02")) {
				t.Errorf("expected near-even share, got %s", l.AllocatedAmount)
			}
		}
		testutil.AssertDecimalEqual(t, total, "10000")
	})

	t.Run("headcount_distribution", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseHeadcount)
		contrib := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
		t1 := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		t2 := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		db.Model(t1).Update("headcount", 75)
		db.Model(t2).Update("headcount", 25)
		testutil.CreateTestPoolMember(t, db, pool.ID, contrib.ID, true, 0)
		testutil.CreateTestPoolMember(t, db, pool.ID, t1.ID, false, 0)
		testutil.CreateTestPoolMember(t, db, pool.ID, t2.ID, false, 1)

		start, end := periodFor(2026, time.May)
		testutil.CreateTestTransactionAt(t, db, contrib.ID, models.TransactionTypeDirectCost, models.CostCategoryOverhead, "4000", start)

		batchID, err := svc.AllocatePool(pool.ID, start, end)
		testutil.AssertNoError(t, err)

		var lines []models.AllocationJournal
		db.Where("batch_id = ?", batchID).Find(&lines)
		amounts := map[string]decimal.Decimal{}
		for _, l := range lines {
			amounts[l.TargetCostCenterID] = l.AllocatedAmount
		}
		testutil.AssertDecimalEqual(t, amounts[t1.ID], "3000")
		testutil.AssertDecimalEqual(t, amounts[t2.ID], "1000")
	})

	t.Run("detail_records_pool_context", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		contrib := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
		target := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		testutil.CreateTestPoolMember(t, db, pool.ID, contrib.ID, true, 0)
		testutil.CreateTestPoolMember(t, db, pool.ID, target.ID, false, 0)

		start, end := periodFor(2026, time.June)
		testutil.CreateTestTransactionAt(t, db, contrib.ID, models.TransactionTypeDirectCost, models.CostCategoryOverhead, "500", start)

		batchID, err := svc.AllocatePool(pool.ID, start, end)
		testutil.AssertNoError(t, err)

		var line models.AllocationJournal
		db.Where("batch_id = ?", batchID).First(&line)
		var detail allocation.Detail
		testutil.AssertNoError(t, json.Unmarshal([]byte(line.CalculationDetail), &detail))
		if detail.Method != "cost_pool" {
			t.Errorf("expected cost_pool method, got %s", detail.Method)
		}
		if detail.PoolCode != pool.Code {
			t.Errorf("expected pool code %s, got %s", pool.Code, detail.PoolCode)
		}
		if detail.AllocationBase != "equal" {
			t.Errorf("expected equal base, got %s", detail.AllocationBase)
		}
	})

	t.Run("no_contributors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		target := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		testutil.CreateTestPoolMember(t, db, pool.ID, target.ID, false, 0)

		start, end := periodFor(2026, time.June)
		_, err := svc.AllocatePool(pool.ID, start, end)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("no_targets", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		contrib := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
		testutil.CreateTestPoolMember(t, db, pool.ID, contrib.ID, true, 0)

		start, end := periodFor(2026, time.June)
		_, err := svc.AllocatePool(pool.ID, start, end)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("inactive_pool", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		db.Model(pool).Update("is_active", false)

		start, end := periodFor(2026, time.June)
		_, err := svc.AllocatePool(pool.ID, start, end)
		testutil.AssertAppError(t, err, "INACTIVE_POOL")
	})
}

func TestValidatePoolAllocationRule(t *testing.T) {
	t.Run("allocatable_pool", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		contrib := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
		target := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		testutil.CreateTestPoolMember(t, db, pool.ID, contrib.ID, true, 0)
		testutil.CreateTestPoolMember(t, db, pool.ID, target.ID, false, 0)

		testutil.AssertNoError(t, svc.ValidatePoolAllocationRule(pool.ID))
	})

	t.Run("inactive_pool", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		db.Model(pool).Update("is_active", false)

		testutil.AssertAppError(t, svc.ValidatePoolAllocationRule(pool.ID), "INACTIVE_POOL")
	})

	t.Run("no_contributors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		target := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
		testutil.CreateTestPoolMember(t, db, pool.ID, target.ID, false, 0)

		testutil.AssertAppError(t, svc.ValidatePoolAllocationRule(pool.ID), "VALIDATION_ERROR")
	})

	t.Run("no_targets", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
		contrib := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
		testutil.CreateTestPoolMember(t, db, pool.ID, contrib.ID, true, 0)

		testutil.AssertAppError(t, svc.ValidatePoolAllocationRule(pool.ID), "VALIDATION_ERROR")
	})

	t.Run("unknown_pool", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newCostPoolService(db)

		testutil.AssertAppError(t, svc.ValidatePoolAllocationRule("00000000-0000-0000-0000-000000000000"), "POOL_NOT_FOUND")
	})
}

func TestGetPoolBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newCostPoolService(db)

	pool := testutil.CreateTestPool(t, db, models.AllocationBaseEqual)
	contrib := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeNonMedical)
	target := testutil.CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
	testutil.CreateTestPoolMember(t, db, pool.ID, contrib.ID, true, 0)
	testutil.CreateTestPoolMember(t, db, pool.ID, target.ID, false, 0)

	start, end := periodFor(2026, time.July)
	testutil.CreateTestTransactionAt(t, db, contrib.ID, models.TransactionTypeDirectCost, models.CostCategoryOverhead, "3000", start)

	// Before any allocation, the full accumulation is outstanding.
	balance, err := svc.GetPoolBalance(pool.ID, end)
	testutil.AssertNoError(t, err)
	testutil.AssertDecimalEqual(t, balance, "3000")

	_, err = svc.AllocatePool(pool.ID, start, end)
	testutil.AssertNoError(t, err)

	// The allocated-out transaction lands on the target, not a contributor,
	// so after distribution the balance returns to zero.
	balance, err = svc.GetPoolBalance(pool.ID, end)
	testutil.AssertNoError(t, err)
	testutil.AssertDecimalEqual(t, balance, "0")
}
