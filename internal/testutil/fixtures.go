package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"costwise/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    fmt.Sprintf("user%d@test.com", nextID()),
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCostCenter creates an active root cost center of the given type.
func CreateTestCostCenter(t *testing.T, db *gorm.DB, ccType models.CostCenterType) *models.CostCenter {
	t.Helper()

	code := fmt.Sprintf("CC%03d", nextID())
	cc := &models.CostCenter{
		Code:          code,
		Name:          fmt.Sprintf("Test Cost Center %s", code),
		Type:          ccType,
		IsActive:      true,
		HierarchyPath: code,
		Level:         0,
	}
	if err := db.Create(cc).Error; err != nil {
		t.Fatalf("failed to create test cost center: %v", err)
	}
	return cc
}

// CreateTestChildCostCenter creates an active cost center under the parent.
func CreateTestChildCostCenter(t *testing.T, db *gorm.DB, parent *models.CostCenter) *models.CostCenter {
	t.Helper()

	code := fmt.Sprintf("CC%03d", nextID())
	cc := &models.CostCenter{
		Code:          code,
		Name:          fmt.Sprintf("Test Cost Center %s", code),
		Type:          parent.Type,
		IsActive:      true,
		ParentID:      &parent.ID,
		HierarchyPath: parent.HierarchyPath + "/" + code,
		Level:         parent.Level + 1,
	}
	if err := db.Create(cc).Error; err != nil {
		t.Fatalf("failed to create test child cost center: %v", err)
	}
	return cc
}

// CreateTestInactiveCostCenter creates a deactivated cost center.
func CreateTestInactiveCostCenter(t *testing.T, db *gorm.DB) *models.CostCenter {
	t.Helper()

	cc := CreateTestCostCenter(t, db, models.CostCenterTypeMedical)
	if err := db.Model(cc).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate test cost center: %v", err)
	}
	cc.IsActive = false
	return cc
}

// CreateTestTransaction posts a direct cost of the given amount against the
// cost center, dated now.
func CreateTestTransaction(t *testing.T, db *gorm.DB, costCenterID string, category models.CostCategory, amount string) *models.CostCenterTransaction {
	t.Helper()
	return CreateTestTransactionAt(t, db, costCenterID, models.TransactionTypeDirectCost, category, amount, time.Now())
}

// CreateTestTransactionAt posts a transaction of the given type, category,
// amount, and date.
func CreateTestTransactionAt(t *testing.T, db *gorm.DB, costCenterID string, txType models.TransactionType, category models.CostCategory, amount string, date time.Time) *models.CostCenterTransaction {
	t.Helper()

	tx := &models.CostCenterTransaction{
		CostCenterID:    costCenterID,
		TransactionDate: date,
		Type:            txType,
		Category:        category,
		Amount:          MustDecimal(t, amount),
		Description:     fmt.Sprintf("Test transaction %d", nextID()),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestApprovedPercentageRule creates an approved, active percentage
// rule from source to the given targets. Percentages must have the same
// length as targetIDs.
func CreateTestApprovedPercentageRule(t *testing.T, db *gorm.DB, sourceID string, targetIDs []string, percentages []string) *models.AllocationRule {
	t.Helper()

	if len(targetIDs) != len(percentages) {
		t.Fatalf("fixture mismatch: %d targets, %d percentages", len(targetIDs), len(percentages))
	}

	rule := &models.AllocationRule{
		Code:               fmt.Sprintf("RULE%03d", nextID()),
		Name:               "Test Rule",
		SourceCostCenterID: sourceID,
		Basis:              models.AllocationBasisPercentage,
		IsActive:           true,
		ApprovalStatus:     models.ApprovalStatusApproved,
		EffectiveDate:      time.Now(),
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create test rule: %v", err)
	}
	for i, targetID := range targetIDs {
		pct := MustDecimal(t, percentages[i])
		target := &models.AllocationRuleTarget{
			RuleID:               rule.ID,
			TargetCostCenterID:   targetID,
			AllocationPercentage: &pct,
			Position:             i,
		}
		if err := db.Create(target).Error; err != nil {
			t.Fatalf("failed to create test rule target: %v", err)
		}
		rule.Targets = append(rule.Targets, *target)
	}
	return rule
}

// CreateTestPool creates an active cost pool with the given allocation base.
func CreateTestPool(t *testing.T, db *gorm.DB, base models.AllocationBase) *models.CostPool {
	t.Helper()

	pool := &models.CostPool{
		Code:           fmt.Sprintf("POOL%03d", nextID()),
		Name:           "Test Pool",
		PoolType:       models.PoolTypeOverhead,
		AllocationBase: base,
		IsActive:       true,
	}
	if err := db.Create(pool).Error; err != nil {
		t.Fatalf("failed to create test pool: %v", err)
	}
	return pool
}

// CreateTestPoolMember attaches a cost center to a pool.
func CreateTestPoolMember(t *testing.T, db *gorm.DB, poolID, costCenterID string, isContributor bool, position int) *models.CostPoolMember {
	t.Helper()

	member := &models.CostPoolMember{
		PoolID:        poolID,
		CostCenterID:  costCenterID,
		IsContributor: isContributor,
		Position:      position,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test pool member: %v", err)
	}
	return member
}

// CreateTestDepartment creates a department posting to the given cost center.
func CreateTestDepartment(t *testing.T, db *gorm.DB, costCenterID string) *models.Department {
	t.Helper()

	dept := &models.Department{
		Code:         fmt.Sprintf("DEPT%03d", nextID()),
		Name:         "Test Department",
		CostCenterID: costCenterID,
		IsActive:     true,
	}
	if err := db.Create(dept).Error; err != nil {
		t.Fatalf("failed to create test department: %v", err)
	}
	return dept
}

// CreateTestStaffMember creates an active staff member.
func CreateTestStaffMember(t *testing.T, db *gorm.DB) *models.StaffMember {
	t.Helper()

	staff := &models.StaffMember{
		EmployeeNo: fmt.Sprintf("EMP%04d", nextID()),
		Name:       "Test Staff",
		IsActive:   true,
	}
	if err := db.Create(staff).Error; err != nil {
		t.Fatalf("failed to create test staff member: %v", err)
	}
	return staff
}

// CreateTestStaffAssignment assigns a staff member to a department with the
// given percentage of their time.
func CreateTestStaffAssignment(t *testing.T, db *gorm.DB, staffID, departmentID, percentage string, position int) *models.StaffAssignment {
	t.Helper()

	assignment := &models.StaffAssignment{
		StaffMemberID:        staffID,
		DepartmentID:         departmentID,
		AllocationPercentage: MustDecimal(t, percentage),
		IsActive:             true,
		Position:             position,
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("failed to create test staff assignment: %v", err)
	}
	return assignment
}

// CreateTestAsset creates an active asset located in the given department.
func CreateTestAsset(t *testing.T, db *gorm.DB, departmentID *string) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		Code:         fmt.Sprintf("AST%04d", nextID()),
		Name:         "Test Asset",
		DepartmentID: departmentID,
		IsActive:     true,
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestBudget creates revision 1 of a budget row.
func CreateTestBudget(t *testing.T, db *gorm.DB, costCenterID string, fiscalYear, periodMonth int, category models.CostCategory, amount string) *models.CostCenterBudget {
	t.Helper()

	budget := &models.CostCenterBudget{
		CostCenterID:   costCenterID,
		FiscalYear:     fiscalYear,
		PeriodMonth:    periodMonth,
		Category:       category,
		BudgetAmount:   MustDecimal(t, amount),
		RevisionNumber: 1,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestServiceLine creates a service line with members attributing the
// given percentage of each cost center.
func CreateTestServiceLine(t *testing.T, db *gorm.DB, costCenterIDs []string, percentage string) *models.ServiceLine {
	t.Helper()

	line := &models.ServiceLine{
		Code:     fmt.Sprintf("SL%03d", nextID()),
		Name:     "Test Service Line",
		IsActive: true,
	}
	if err := db.Create(line).Error; err != nil {
		t.Fatalf("failed to create test service line: %v", err)
	}
	for _, ccID := range costCenterIDs {
		member := &models.ServiceLineMember{
			ServiceLineID:        line.ID,
			CostCenterID:         ccID,
			AllocationPercentage: MustDecimal(t, percentage),
		}
		if err := db.Create(member).Error; err != nil {
			t.Fatalf("failed to create test service line member: %v", err)
		}
		line.Members = append(line.Members, *member)
	}
	return line
}

// MustDecimal parses a decimal literal or fails the test.
func MustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}
