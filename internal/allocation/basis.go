// Package allocation implements the distribution engine: given a source
// amount and an allocation basis it computes per-target amounts whose sum
// equals the source amount exactly. Rounding residue is absorbed by the last
// target in insertion order rather than treated as an error.
package allocation

import "github.com/shopspring/decimal"

// Basis is the sealed set of distribution methods. Dispatch in Allocate is an
// exhaustive type switch over these variants.
type Basis interface {
	method() string
}

// PercentTarget is one target's share under a percentage basis.
type PercentTarget struct {
	TargetID string
	Percent  decimal.Decimal
}

// Percentage distributes source_amount * percent/100 per target. The
// percentages are validated upstream to sum to 100.00.
type Percentage struct {
	Targets []PercentTarget
}

func (Percentage) method() string { return "percentage" }

// WeightTarget is one target's share under a weighted basis.
type WeightTarget struct {
	TargetID string
	Weight   decimal.Decimal
}

// Weighted distributes source_amount * weight/total_weight per target. Name
// overrides the recorded method ("formula" by default; cost pools record
// "cost_pool").
type Weighted struct {
	Name    string
	Targets []WeightTarget
}

func (b Weighted) method() string {
	if b.Name != "" {
		return b.Name
	}
	return "formula"
}

// Equal splits the source amount evenly across the targets. Name overrides
// the recorded method ("equal" by default; the direct basis records
// "direct").
type Equal struct {
	Name      string
	TargetIDs []string
}

func (b Equal) method() string {
	if b.Name != "" {
		return b.Name
	}
	return "equal"
}

// Detail is the audit payload recorded with every computed line. It carries
// the method, the source amount, and the basis-specific input that produced
// the target's amount, and marshals into the journal's calculation_detail.
type Detail struct {
	Method       string           `json:"method"`
	SourceAmount decimal.Decimal  `json:"source_amount"`
	Percentage   *decimal.Decimal `json:"percentage,omitempty"`
	Weight       *decimal.Decimal `json:"weight,omitempty"`
	TotalWeight  *decimal.Decimal `json:"total_weight,omitempty"`
	TargetCount  int              `json:"target_count,omitempty"`

	// Populated by the cost pool aggregator.
	PoolID         string `json:"pool_id,omitempty"`
	PoolCode       string `json:"pool_code,omitempty"`
	PoolType       string `json:"pool_type,omitempty"`
	AllocationBase string `json:"allocation_base,omitempty"`
}

// Line is one target's computed share of a distribution.
type Line struct {
	TargetID string
	Amount   decimal.Decimal
	Detail   Detail
}
