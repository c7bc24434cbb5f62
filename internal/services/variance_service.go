package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "costwise/internal/errors"
	"costwise/internal/models"
)

// materialityThreshold is the variance fraction at or under which a
// variance is classified neutral regardless of sign.
var materialityThreshold = decimal.NewFromFloat(0.05)

// reportCategories fixes the category order of variance reports.
var reportCategories = []models.CostCategory{
	models.CostCategoryPersonnel,
	models.CostCategorySupplies,
	models.CostCategoryDepreciation,
	models.CostCategoryServices,
	models.CostCategoryOverhead,
}

// varianceService compares budgets against actual transaction sums.
type varianceService struct {
	db *gorm.DB
}

// NewVarianceService creates a new VarianceServicer.
func NewVarianceService(db *gorm.DB) VarianceServicer {
	return &varianceService{db: db}
}

// CalculateVariance builds the per-category budget-vs-actual breakdown for a
// cost center and period. A category appears when it has a budget or a
// nonzero actual; variance is actual minus budget, so overruns are positive.
func (s *varianceService) CalculateVariance(costCenterID string, periodStart, periodEnd time.Time) (*VarianceReport, error) {
	var costCenter models.CostCenter
	if err := s.db.First(&costCenter, "id = ?", costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCostCenterNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	budgets, err := s.currentBudgets(costCenterID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	report := &VarianceReport{
		CostCenterID:   costCenter.ID,
		CostCenterCode: costCenter.Code,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
	}
	totalBudget, totalActual := decimal.Zero, decimal.Zero
	for _, category := range reportCategories {
		budget := budgets[category]
		actual, err := sumTransactionAmounts(s.db, []string{costCenterID}, costTypes, []models.CostCategory{category}, &periodStart, &periodEnd)
		if err != nil {
			return nil, err
		}
		if budget.IsZero() && actual.IsZero() {
			continue
		}

		variance := actual.Sub(budget)
		report.Categories = append(report.Categories, CategoryVariance{
			Category:       category,
			Budget:         budget,
			Actual:         actual,
			Variance:       variance,
			Classification: s.ClassifyVariance(variance, budget),
		})
		totalBudget = totalBudget.Add(budget)
		totalActual = totalActual.Add(actual)
	}

	totalVariance := totalActual.Sub(totalBudget)
	report.Total = CategoryVariance{
		Budget:         totalBudget,
		Actual:         totalActual,
		Variance:       totalVariance,
		Classification: s.ClassifyVariance(totalVariance, totalBudget),
	}
	return report, nil
}

// ClassifyVariance labels a variance favorable, unfavorable, or neutral. A
// variance within the materiality threshold (5% of budget, inclusive) is
// neutral regardless of sign. With a zero budget any positive actual is an
// overrun, so a positive variance is unfavorable and anything else neutral.
func (s *varianceService) ClassifyVariance(variance, budget decimal.Decimal) string {
	if budget.IsZero() {
		if variance.IsPositive() {
			return "unfavorable"
		}
		return "neutral"
	}

	fraction := variance.Abs().Div(budget.Abs())
	if fraction.LessThanOrEqual(materialityThreshold) {
		return "neutral"
	}
	if variance.IsPositive() {
		return "unfavorable"
	}
	return "favorable"
}

// GetTrendAnalysis returns one point per calendar month for the monthCount
// months ending at the month containing asOf, oldest first. Each point is
// computed independently with the same budget/actual aggregation as
// CalculateVariance.
func (s *varianceService) GetTrendAnalysis(costCenterID string, monthCount int, asOf time.Time) ([]TrendPoint, error) {
	if monthCount < 1 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "month count must be at least 1")
	}

	var costCenter models.CostCenter
	if err := s.db.First(&costCenter, "id = ?", costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCostCenterNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Step from the first of the month: AddDate on day 29-31 normalizes the
	// overflow into the next month and would skip or duplicate periods.
	anchor := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())

	points := make([]TrendPoint, 0, monthCount)
	for i := monthCount - 1; i >= 0; i-- {
		monthStart, monthEnd := monthBounds(anchor.AddDate(0, -i, 0))

		budgets, err := s.currentBudgets(costCenterID, monthStart, monthEnd)
		if err != nil {
			return nil, err
		}
		budget := decimal.Zero
		for _, b := range budgets {
			budget = budget.Add(b)
		}

		actual, err := sumCosts(s.db, []string{costCenterID}, &monthStart, &monthEnd)
		if err != nil {
			return nil, err
		}

		points = append(points, TrendPoint{
			Period:   fmt.Sprintf("%04d-%02d", monthStart.Year(), int(monthStart.Month())),
			Budget:   budget,
			Actual:   actual,
			Variance: actual.Sub(budget),
		})
	}
	return points, nil
}

// CompareServiceLines returns each service line's attributed cost, revenue
// and profit for the period, sorted by profit margin descending. A member
// contributes its cost center's figures scaled by its allocation percentage.
func (s *varianceService) CompareServiceLines(serviceLineIDs []string, periodStart, periodEnd time.Time) ([]ServiceLineProfit, error) {
	hundred := decimal.NewFromInt(100)

	results := make([]ServiceLineProfit, 0, len(serviceLineIDs))
	for _, id := range serviceLineIDs {
		var line models.ServiceLine
		err := s.db.Preload("Members").First(&line, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrServiceLineNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		cost, revenue := decimal.Zero, decimal.Zero
		for _, member := range line.Members {
			share := member.AllocationPercentage.Div(hundred)

			memberCost, err := sumCosts(s.db, []string{member.CostCenterID}, &periodStart, &periodEnd)
			if err != nil {
				return nil, err
			}
			memberRevenue, err := sumTransactionAmounts(s.db, []string{member.CostCenterID},
				[]models.TransactionType{models.TransactionTypeRevenue}, nil, &periodStart, &periodEnd)
			if err != nil {
				return nil, err
			}

			cost = cost.Add(memberCost.Mul(share))
			revenue = revenue.Add(memberRevenue.Mul(share))
		}
		cost = cost.Round(2)
		revenue = revenue.Round(2)

		profit := revenue.Sub(cost)
		margin := decimal.Zero
		if !revenue.IsZero() {
			margin = profit.Div(revenue).Mul(hundred).Round(2)
		}

		results = append(results, ServiceLineProfit{
			ServiceLineID: line.ID,
			Code:          line.Code,
			Name:          line.Name,
			Cost:          cost,
			Revenue:       revenue,
			Profit:        profit,
			ProfitMargin:  margin,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ProfitMargin.GreaterThan(results[j].ProfitMargin)
	})
	return results, nil
}

// currentBudgets sums the current (highest revision) budget per category for
// every month the period touches.
func (s *varianceService) currentBudgets(costCenterID string, periodStart, periodEnd time.Time) (map[models.CostCategory]decimal.Decimal, error) {
	var rows []models.CostCenterBudget
	if err := s.db.
		Where("cost_center_id = ? AND fiscal_year BETWEEN ? AND ?", costCenterID, periodStart.Year(), periodEnd.Year()).
		Order("revision_number").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	type monthKey struct {
		year, month int
		category    models.CostCategory
	}
	firstMonth := periodStart.Year()*12 + int(periodStart.Month()) - 1
	lastMonth := periodEnd.Year()*12 + int(periodEnd.Month()) - 1

	// Rows are ordered by revision, so later rows overwrite earlier ones and
	// each key ends up holding its current revision.
	current := make(map[monthKey]decimal.Decimal)
	for _, row := range rows {
		ordinal := row.FiscalYear*12 + row.PeriodMonth - 1
		if ordinal < firstMonth || ordinal > lastMonth {
			continue
		}
		current[monthKey{row.FiscalYear, row.PeriodMonth, row.Category}] = row.BudgetAmount
	}

	totals := make(map[models.CostCategory]decimal.Decimal)
	for key, amount := range current {
		totals[key.category] = totals[key.category].Add(amount)
	}
	return totals, nil
}
