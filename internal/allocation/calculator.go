package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrZeroTotalWeight is returned when a weighted basis carries no positive
// total weight to divide by.
var ErrZeroTotalWeight = errors.New("total weight must be positive")

var oneHundred = decimal.NewFromInt(100)

// Allocate distributes sourceAmount across the basis targets. The returned
// lines preserve target insertion order and their amounts sum to
// sourceAmount exactly: every line but the last is rounded half-up to two
// places and the last line receives sourceAmount minus the sum of the
// others. An empty target set yields an empty result; a zero source amount
// yields zero lines with the audit detail still populated.
func Allocate(sourceAmount decimal.Decimal, basis Basis) ([]Line, error) {
	switch b := basis.(type) {
	case Percentage:
		return allocatePercentage(sourceAmount, b)
	case Weighted:
		return allocateWeighted(sourceAmount, b)
	case Equal:
		return allocateEqual(sourceAmount, b)
	default:
		return nil, fmt.Errorf("unsupported allocation basis %T", basis)
	}
}

func allocatePercentage(source decimal.Decimal, b Percentage) ([]Line, error) {
	n := len(b.Targets)
	if n == 0 {
		return []Line{}, nil
	}

	lines := make([]Line, 0, n)
	allocated := decimal.Zero
	for i, t := range b.Targets {
		var amount decimal.Decimal
		if i == n-1 {
			amount = source.Sub(allocated)
		} else {
			amount = source.Mul(t.Percent).Div(oneHundred).Round(2)
			allocated = allocated.Add(amount)
		}
		pct := t.Percent
		lines = append(lines, Line{
			TargetID: t.TargetID,
			Amount:   amount,
			Detail: Detail{
				Method:       b.method(),
				SourceAmount: source,
				Percentage:   &pct,
			},
		})
	}
	return lines, nil
}

func allocateWeighted(source decimal.Decimal, b Weighted) ([]Line, error) {
	n := len(b.Targets)
	if n == 0 {
		return []Line{}, nil
	}

	totalWeight := decimal.Zero
	for _, t := range b.Targets {
		totalWeight = totalWeight.Add(t.Weight)
	}
	if !totalWeight.IsPositive() {
		return nil, ErrZeroTotalWeight
	}

	lines := make([]Line, 0, n)
	allocated := decimal.Zero
	for i, t := range b.Targets {
		var amount decimal.Decimal
		if i == n-1 {
			amount = source.Sub(allocated)
		} else {
			amount = source.Mul(t.Weight).Div(totalWeight).Round(2)
			allocated = allocated.Add(amount)
		}
		w := t.Weight
		tw := totalWeight
		lines = append(lines, Line{
			TargetID: t.TargetID,
			Amount:   amount,
			Detail: Detail{
				Method:       b.method(),
				SourceAmount: source,
				Weight:       &w,
				TotalWeight:  &tw,
			},
		})
	}
	return lines, nil
}

func allocateEqual(source decimal.Decimal, b Equal) ([]Line, error) {
	n := len(b.TargetIDs)
	if n == 0 {
		return []Line{}, nil
	}

	count := decimal.NewFromInt(int64(n))
	lines := make([]Line, 0, n)
	allocated := decimal.Zero
	for i, id := range b.TargetIDs {
		var amount decimal.Decimal
		if i == n-1 {
			amount = source.Sub(allocated)
		} else {
			amount = source.Div(count).Round(2)
			allocated = allocated.Add(amount)
		}
		lines = append(lines, Line{
			TargetID: id,
			Amount:   amount,
			Detail: Detail{
				Method:       b.method(),
				SourceAmount: source,
				TargetCount:  n,
			},
		})
	}
	return lines, nil
}

// SplitProportional distributes total across len(weights) shares in weight
// proportion with the same last-share remainder correction used by Allocate.
// It is the primitive reused by salary splits and pool distributions.
func SplitProportional(total decimal.Decimal, weights []decimal.Decimal) ([]decimal.Decimal, error) {
	n := len(weights)
	if n == 0 {
		return nil, nil
	}

	totalWeight := decimal.Zero
	for _, w := range weights {
		totalWeight = totalWeight.Add(w)
	}
	if !totalWeight.IsPositive() {
		return nil, ErrZeroTotalWeight
	}

	shares := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i, w := range weights {
		if i == n-1 {
			shares[i] = total.Sub(allocated)
			break
		}
		shares[i] = total.Mul(w).Div(totalWeight).Round(2)
		allocated = allocated.Add(shares[i])
	}
	return shares, nil
}
