package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationBasis determines how a rule distributes its source amount.
type AllocationBasis string

const (
	AllocationBasisPercentage AllocationBasis = "percentage"
	AllocationBasisFormula    AllocationBasis = "formula"
	AllocationBasisDirect     AllocationBasis = "direct"
	AllocationBasisEqual      AllocationBasis = "equal"
)

// ApprovalStatus is the lifecycle state of an allocation rule.
// Rules move draft -> pending -> approved|rejected; only draft rules are
// editable and only approved, active rules participate in execution.
type ApprovalStatus string

const (
	ApprovalStatusDraft    ApprovalStatus = "draft"
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// AllocationRule describes how one source cost center's cost is redistributed
// to target cost centers.
type AllocationRule struct {
	Base
	Code               string          `gorm:"uniqueIndex;not null" json:"code"`
	Name               string          `gorm:"not null" json:"name"`
	SourceCostCenterID string          `gorm:"type:uuid;not null;index" json:"source_cost_center_id"`
	Basis              AllocationBasis `gorm:"not null" json:"basis"`
	FormulaExpression  string          `json:"formula_expression,omitempty"`
	IsActive           bool            `gorm:"default:true" json:"is_active"`
	ApprovalStatus     ApprovalStatus  `gorm:"not null;default:'draft'" json:"approval_status"`
	EffectiveDate      time.Time       `json:"effective_date"`
	CreatedByID        string          `gorm:"type:uuid" json:"created_by_id"`
	ApprovedByID       *string         `gorm:"type:uuid" json:"approved_by_id,omitempty"`

	SourceCostCenter CostCenter             `gorm:"foreignKey:SourceCostCenterID" json:"source_cost_center"`
	Targets          []AllocationRuleTarget `gorm:"foreignKey:RuleID" json:"targets,omitempty"`
}

// AllocationRuleTarget is one (rule, target cost center) pair carrying either
// a percentage (basis=percentage, the set must sum to 100.00) or a positive
// weight (basis=formula). Direct/equal bases carry neither.
type AllocationRuleTarget struct {
	Base
	RuleID               string           `gorm:"type:uuid;not null;index" json:"rule_id"`
	TargetCostCenterID   string           `gorm:"type:uuid;not null" json:"target_cost_center_id"`
	AllocationPercentage *decimal.Decimal `gorm:"type:numeric(8,2)" json:"allocation_percentage,omitempty"`
	AllocationWeight     *decimal.Decimal `gorm:"type:numeric(18,4)" json:"allocation_weight,omitempty"`
	Position             int              `gorm:"not null;default:0" json:"position"`

	TargetCostCenter CostCenter `gorm:"foreignKey:TargetCostCenterID" json:"target_cost_center"`
}
