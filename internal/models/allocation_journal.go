package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalStatus is the posting status of an allocation journal line.
type JournalStatus string

const (
	JournalStatusPosted     JournalStatus = "posted"
	JournalStatusSuperseded JournalStatus = "superseded"
)

// AllocationJournal is an immutable record of one completed distribution
// line. All lines written by one execution run share a BatchID, and the
// allocated amounts of a batch sum back to the source amount (the zero-sum
// property). Rule batches carry the rule's source cost center; pool batches
// carry the pool instead. Lines are never mutated, only superseded by a new
// batch.
type AllocationJournal struct {
	Base
	BatchID            string          `gorm:"not null;index" json:"batch_id"`
	RuleID             *string         `gorm:"type:uuid;index" json:"rule_id,omitempty"`
	PoolID             *string         `gorm:"type:uuid;index" json:"pool_id,omitempty"`
	SourceCostCenterID *string         `gorm:"type:uuid;index" json:"source_cost_center_id,omitempty"`
	TargetCostCenterID string          `gorm:"type:uuid;not null;index" json:"target_cost_center_id"`
	PeriodStart        time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd          time.Time       `gorm:"not null" json:"period_end"`
	SourceAmount       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"source_amount"`
	AllocatedAmount    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"allocated_amount"`
	CalculationDetail  string          `gorm:"type:text" json:"calculation_detail"`
	Status             JournalStatus   `gorm:"not null;default:'posted'" json:"status"`

	SourceCostCenter *CostCenter `gorm:"foreignKey:SourceCostCenterID" json:"source_cost_center,omitempty"`
	TargetCostCenter CostCenter  `gorm:"foreignKey:TargetCostCenterID" json:"target_cost_center"`
}
