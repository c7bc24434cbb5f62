package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of a cost center transaction.
// Only direct_cost and allocated_cost feed cost aggregation; revenue is
// excluded from cost totals and used only in profitability calculations.
type TransactionType string

const (
	TransactionTypeDirectCost    TransactionType = "direct_cost"
	TransactionTypeAllocatedCost TransactionType = "allocated_cost"
	TransactionTypeRevenue       TransactionType = "revenue"
)

// Reference types linking a transaction back to its source event.
const (
	ReferenceTypeSalary       = "salary"
	ReferenceTypeDepreciation = "depreciation"
	ReferenceTypeAllocation   = "allocation"
)

// CostCenterTransaction is one cost or revenue posting against a cost center.
type CostCenterTransaction struct {
	Base
	CostCenterID    string          `gorm:"type:uuid;not null;index" json:"cost_center_id"`
	TransactionDate time.Time       `gorm:"not null;index" json:"transaction_date"`
	Type            TransactionType `gorm:"not null" json:"type"`
	Category        CostCategory    `gorm:"not null" json:"category"`
	Amount          decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Description     string          `json:"description"`
	ReferenceType   string          `gorm:"index:idx_tx_reference" json:"reference_type,omitempty"`
	ReferenceID     string          `gorm:"index:idx_tx_reference" json:"reference_id,omitempty"`

	CostCenter CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center"`
}

// IsCost reports whether the transaction counts toward cost aggregation.
func (t *CostCenterTransaction) IsCost() bool {
	return t.Type == TransactionTypeDirectCost || t.Type == TransactionTypeAllocatedCost
}
