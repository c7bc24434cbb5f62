package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "costwise/internal/errors"
	"costwise/internal/models"
)

// costTypes are the transaction types that feed cost aggregation. Revenue is
// deliberately excluded; it only participates in profitability figures.
var costTypes = []models.TransactionType{
	models.TransactionTypeDirectCost,
	models.TransactionTypeAllocatedCost,
}

// sumTransactionAmounts loads the matching transaction amounts and adds them
// with decimal arithmetic. Summation happens in Go rather than SQL so no
// precision is lost to the driver's numeric handling.
func sumTransactionAmounts(db *gorm.DB, costCenterIDs []string, types []models.TransactionType, categories []models.CostCategory, from, to *time.Time) (decimal.Decimal, error) {
	if len(costCenterIDs) == 0 {
		return decimal.Zero, nil
	}

	q := db.Model(&models.CostCenterTransaction{}).
		Where("cost_center_id IN ?", costCenterIDs).
		Where("type IN ?", types)
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}
	if from != nil {
		q = q.Where("transaction_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("transaction_date <= ?", *to)
	}

	var amounts []decimal.Decimal
	if err := q.Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

// sumCosts is sumTransactionAmounts restricted to cost-bearing types.
func sumCosts(db *gorm.DB, costCenterIDs []string, from, to *time.Time) (decimal.Decimal, error) {
	return sumTransactionAmounts(db, costCenterIDs, costTypes, nil, from, to)
}

// monthBounds returns the first and last instant of the month containing t.
func monthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
