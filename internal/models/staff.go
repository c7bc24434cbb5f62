package models

import "github.com/shopspring/decimal"

// Department is an organizational unit. Each department maps to exactly one
// cost center, which is how staff assignments and asset locations resolve to
// a posting target.
type Department struct {
	Base
	Code         string `gorm:"uniqueIndex;not null" json:"code"`
	Name         string `gorm:"not null" json:"name"`
	CostCenterID string `gorm:"type:uuid;not null" json:"cost_center_id"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	CostCenter CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center"`
}

// StaffMember is a human resource whose salary cost is split across
// departments by assignment percentage.
type StaffMember struct {
	Base
	EmployeeNo string `gorm:"uniqueIndex;not null" json:"employee_no"`
	Name       string `gorm:"not null" json:"name"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	Assignments []StaffAssignment `gorm:"foreignKey:StaffMemberID" json:"assignments,omitempty"`
}

// StaffAssignment links a staff member to a department with the share of
// their time (and salary) that department carries.
type StaffAssignment struct {
	Base
	StaffMemberID        string          `gorm:"type:uuid;not null;index" json:"staff_member_id"`
	DepartmentID         string          `gorm:"type:uuid;not null" json:"department_id"`
	AllocationPercentage decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"allocation_percentage"`
	IsActive             bool            `gorm:"default:true" json:"is_active"`
	Position             int             `gorm:"not null;default:0" json:"position"`

	Department Department `gorm:"foreignKey:DepartmentID" json:"department"`
}

// Asset is a depreciable asset located in a department.
type Asset struct {
	Base
	Code         string  `gorm:"uniqueIndex;not null" json:"code"`
	Name         string  `gorm:"not null" json:"name"`
	DepartmentID *string `gorm:"type:uuid" json:"department_id,omitempty"`
	IsActive     bool    `gorm:"default:true" json:"is_active"`

	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}
