package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "costwise/internal/errors"
	"costwise/internal/logger"
	"costwise/internal/models"
	"costwise/internal/pagination"
)

// budgetService manages budget rows, their additive revisions, and the
// utilization threshold check.
type budgetService struct {
	db        *gorm.DB
	notifier  NotificationServicer
	threshold decimal.Decimal
}

// NewBudgetService creates a new BudgetServicer. threshold is the
// utilization percentage above which CheckThreshold notifies, e.g. 90.
func NewBudgetService(db *gorm.DB, notifier NotificationServicer, threshold float64) BudgetServicer {
	return &budgetService{
		db:        db,
		notifier:  notifier,
		threshold: decimal.NewFromFloat(threshold),
	}
}

// CreateBudget creates revision 1 of a budget row. Each (cost center, fiscal
// year, month, category) starts with exactly one revision.
func (s *budgetService) CreateBudget(costCenterID string, fiscalYear, periodMonth int, category models.CostCategory, amount decimal.Decimal) (*models.CostCenterBudget, error) {
	if periodMonth < 1 || periodMonth > 12 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "period month must be between 1 and 12")
	}
	if amount.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "budget amount cannot be negative")
	}

	var costCenter models.CostCenter
	if err := s.db.First(&costCenter, "id = ?", costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCostCenterNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !costCenter.IsActive {
		return nil, apperrors.ErrInactiveCostCenter
	}

	var existing int64
	if err := s.db.Model(&models.CostCenterBudget{}).
		Where("cost_center_id = ? AND fiscal_year = ? AND period_month = ? AND category = ?",
			costCenterID, fiscalYear, periodMonth, category).
		Count(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if existing > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "budget already exists for this period; revise it instead")
	}

	budget := &models.CostCenterBudget{
		CostCenterID:   costCenterID,
		FiscalYear:     fiscalYear,
		PeriodMonth:    periodMonth,
		Category:       category,
		BudgetAmount:   amount,
		RevisionNumber: 1,
	}
	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budget, nil
}

// ReviseBudget creates the next revision of a budget row. Prior revisions
// stay untouched; the current budget is always the highest revision.
func (s *budgetService) ReviseBudget(budgetID string, amount decimal.Decimal, justification string) (*models.CostCenterBudget, error) {
	if amount.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "budget amount cannot be negative")
	}
	if justification == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "revision justification is required")
	}

	var prior models.CostCenterBudget
	if err := s.db.First(&prior, "id = ?", budgetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	revision := &models.CostCenterBudget{
		CostCenterID:          prior.CostCenterID,
		FiscalYear:            prior.FiscalYear,
		PeriodMonth:           prior.PeriodMonth,
		Category:              prior.Category,
		BudgetAmount:          amount,
		RevisionJustification: justification,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Number off the latest revision, not the row passed in, so revising
		// an older row still appends to the end of the chain.
		var latest models.CostCenterBudget
		if err := tx.Where("cost_center_id = ? AND fiscal_year = ? AND period_month = ? AND category = ?",
			prior.CostCenterID, prior.FiscalYear, prior.PeriodMonth, prior.Category).
			Order("revision_number DESC").First(&latest).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		revision.RevisionNumber = latest.RevisionNumber + 1
		if err := tx.Create(revision).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revision, nil
}

// GetCurrentBudget returns the highest revision for a budget period.
func (s *budgetService) GetCurrentBudget(costCenterID string, fiscalYear, periodMonth int, category models.CostCategory) (*models.CostCenterBudget, error) {
	var budget models.CostCenterBudget
	err := s.db.Where("cost_center_id = ? AND fiscal_year = ? AND period_month = ? AND category = ?",
		costCenterID, fiscalYear, periodMonth, category).
		Order("revision_number DESC").First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// GetBudgets returns a page of budget rows (all revisions) for a cost
// center and fiscal year.
func (s *budgetService) GetBudgets(costCenterID string, fiscalYear int, page pagination.PageRequest) (*pagination.PageResponse[models.CostCenterBudget], error) {
	page.Defaults()

	query := s.db.Model(&models.CostCenterBudget{}).
		Where("cost_center_id = ? AND fiscal_year = ?", costCenterID, fiscalYear)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.CostCenterBudget
	if err := query.Order("period_month, category, revision_number").
		Scopes(pagination.Paginate(page)).
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, total)
	return &result, nil
}

// GetUtilization compares a month's actual cost against its current budget
// across all categories. Utilization is a percentage rounded to 2 decimals;
// it is 0 when no budget exists.
func (s *budgetService) GetUtilization(costCenterID string, fiscalYear, periodMonth int) (*BudgetUtilization, error) {
	if periodMonth < 1 || periodMonth > 12 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "period month must be between 1 and 12")
	}

	var rows []models.CostCenterBudget
	if err := s.db.Where("cost_center_id = ? AND fiscal_year = ? AND period_month = ?",
		costCenterID, fiscalYear, periodMonth).
		Order("revision_number").Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	currentByCategory := make(map[models.CostCategory]decimal.Decimal)
	for _, row := range rows {
		currentByCategory[row.Category] = row.BudgetAmount
	}
	budget := decimal.Zero
	for _, amount := range currentByCategory {
		budget = budget.Add(amount)
	}

	monthStart, monthEnd := monthBounds(time.Date(fiscalYear, time.Month(periodMonth), 1, 0, 0, 0, 0, time.UTC))
	actual, err := sumCosts(s.db, []string{costCenterID}, &monthStart, &monthEnd)
	if err != nil {
		return nil, err
	}

	utilization := decimal.Zero
	if !budget.IsZero() {
		utilization = actual.Div(budget).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return &BudgetUtilization{
		CostCenterID: costCenterID,
		FiscalYear:   fiscalYear,
		PeriodMonth:  periodMonth,
		Budget:       budget,
		Actual:       actual,
		Utilization:  utilization,
	}, nil
}

// CheckThreshold notifies when the month containing date has crossed the
// utilization threshold. It is fire-and-forget: failures are logged, never
// returned, and posting flows call it after their own writes committed.
func (s *budgetService) CheckThreshold(costCenterID string, date time.Time) {
	util, err := s.GetUtilization(costCenterID, date.Year(), int(date.Month()))
	if err != nil {
		logger.Named("budget").Warnw("threshold check failed",
			"cost_center_id", costCenterID,
			"error", err,
		)
		return
	}
	if util.Budget.IsZero() || util.Utilization.LessThan(s.threshold) {
		return
	}
	s.notifier.BudgetThresholdExceeded(util)
}
