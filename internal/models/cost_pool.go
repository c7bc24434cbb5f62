package models

// PoolType groups cost pools for reporting (e.g. overhead, facilities).
type PoolType string

const (
	PoolTypeOverhead   PoolType = "overhead"
	PoolTypeFacilities PoolType = "facilities"
	PoolTypeSupport    PoolType = "support"
	PoolTypeClinical   PoolType = "clinical"
)

// AllocationBase names how a pooled total is spread across target members:
// "equal" or one of the cost center driver statistics.
type AllocationBase string

const (
	AllocationBaseEqual         AllocationBase = "equal"
	AllocationBaseHeadcount     AllocationBase = "headcount"
	AllocationBaseSquareFootage AllocationBase = "square_footage"
	AllocationBasePatientDays   AllocationBase = "patient_days"
	AllocationBaseServiceVolume AllocationBase = "service_volume"
)

// CostPool is an intermediate bucket aggregating costs from contributor
// members before redistributing the pooled total to target members.
type CostPool struct {
	Base
	Code           string         `gorm:"uniqueIndex;not null" json:"code"`
	Name           string         `gorm:"not null" json:"name"`
	PoolType       PoolType       `gorm:"not null" json:"pool_type"`
	AllocationBase AllocationBase `gorm:"not null;default:'equal'" json:"allocation_base"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`

	Members []CostPoolMember `gorm:"foreignKey:PoolID" json:"members,omitempty"`
}

// CostPoolMember associates a cost center with a pool either as a
// contributor (feeds the pool) or a target (receives pool distribution).
type CostPoolMember struct {
	Base
	PoolID        string `gorm:"type:uuid;not null;index" json:"pool_id"`
	CostCenterID  string `gorm:"type:uuid;not null" json:"cost_center_id"`
	IsContributor bool   `gorm:"not null" json:"is_contributor"`
	Position      int    `gorm:"not null;default:0" json:"position"`

	CostCenter CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center"`
}
