package models

import "github.com/shopspring/decimal"

// ServiceLine groups cost centers into a clinical service (e.g. cardiology)
// for profitability comparison.
type ServiceLine struct {
	Base
	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	Name     string `gorm:"not null" json:"name"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Members []ServiceLineMember `gorm:"foreignKey:ServiceLineID" json:"members,omitempty"`
}

// ServiceLineMember attributes a share of a cost center's costs and revenue
// to a service line.
type ServiceLineMember struct {
	Base
	ServiceLineID        string          `gorm:"type:uuid;not null;index" json:"service_line_id"`
	CostCenterID         string          `gorm:"type:uuid;not null" json:"cost_center_id"`
	AllocationPercentage decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"allocation_percentage"`

	CostCenter CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center"`
}
