package models

import "github.com/shopspring/decimal"

// CostCenterType classifies an organizational cost-bearing unit.
type CostCenterType string

const (
	CostCenterTypeMedical        CostCenterType = "medical"
	CostCenterTypeNonMedical     CostCenterType = "non_medical"
	CostCenterTypeAdministrative CostCenterType = "administrative"
	CostCenterTypeProfitCenter   CostCenterType = "profit_center"
)

// CostCenter represents an organizational unit that incurs costs and/or
// receives allocated costs. HierarchyPath encodes the ordered ancestor chain
// ("A/B/C") and Level is the depth with roots at 0; both are maintained by the
// cost center service whenever a parent link changes.
type CostCenter struct {
	Base
	Code          string         `gorm:"uniqueIndex;not null" json:"code"`
	Name          string         `gorm:"not null" json:"name"`
	Type          CostCenterType `gorm:"not null" json:"type"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	ParentID      *string        `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	HierarchyPath string         `gorm:"index" json:"hierarchy_path"`
	Level         int            `gorm:"default:0" json:"level"`

	// Allocation driver statistics used by weighted bases and formula
	// variables (headcount, square_footage, patient_days, service_volume).
	Headcount     decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"headcount"`
	SquareFootage decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"square_footage"`
	PatientDays   decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"patient_days"`
	ServiceVolume decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"service_volume"`

	Parent *CostCenter `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
}

// Driver returns the named driver statistic, or false if unknown.
func (c *CostCenter) Driver(name string) (decimal.Decimal, bool) {
	switch name {
	case "headcount":
		return c.Headcount, true
	case "square_footage":
		return c.SquareFootage, true
	case "patient_days":
		return c.PatientDays, true
	case "service_volume":
		return c.ServiceVolume, true
	}
	return decimal.Zero, false
}
