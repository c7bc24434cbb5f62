package models

import "github.com/shopspring/decimal"

// CostCategory buckets budgets and transactions for variance reporting.
type CostCategory string

const (
	CostCategoryPersonnel    CostCategory = "personnel"
	CostCategorySupplies     CostCategory = "supplies"
	CostCategoryDepreciation CostCategory = "depreciation"
	CostCategoryServices     CostCategory = "services"
	CostCategoryOverhead     CostCategory = "overhead"
)

// CostCenterBudget is one budget row for a (cost center, fiscal year, month,
// category). Revisions are additive: revising creates a new row with
// RevisionNumber+1 and the prior row is kept unmutated; the current budget is
// the row with the highest revision number.
type CostCenterBudget struct {
	Base
	CostCenterID          string          `gorm:"type:uuid;not null;index:idx_budget_period" json:"cost_center_id"`
	FiscalYear            int             `gorm:"not null;index:idx_budget_period" json:"fiscal_year"`
	PeriodMonth           int             `gorm:"not null;index:idx_budget_period" json:"period_month"`
	Category              CostCategory    `gorm:"not null;index:idx_budget_period" json:"category"`
	BudgetAmount          decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"budget_amount"`
	RevisionNumber        int             `gorm:"not null;default:1" json:"revision_number"`
	RevisionJustification string          `json:"revision_justification,omitempty"`

	CostCenter CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center"`
}
