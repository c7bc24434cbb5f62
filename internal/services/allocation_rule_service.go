package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"costwise/internal/allocation"
	apperrors "costwise/internal/errors"
	"costwise/internal/models"
	"costwise/internal/pagination"
)

// percentageTolerance is how far a percentage set may drift from 100.00.
var percentageTolerance = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// allocationRuleService owns rule lifecycle and construction-time validation.
type allocationRuleService struct {
	db                *gorm.DB
	costCenterService CostCenterServicer
}

// NewAllocationRuleService creates a new AllocationRuleServicer.
func NewAllocationRuleService(db *gorm.DB, costCenterService CostCenterServicer) AllocationRuleServicer {
	return &allocationRuleService{db: db, costCenterService: costCenterService}
}

// CreateRule creates a draft allocation rule after validating the full rule
// contract. Nothing is written when validation fails.
func (s *allocationRuleService) CreateRule(userID string, input RuleInput) (*models.AllocationRule, error) {
	if err := s.validateRuleInput(input); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.AllocationRule{}).Where("code = ?", input.Code).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateCode
	}

	rule := &models.AllocationRule{
		Code:               input.Code,
		Name:               input.Name,
		SourceCostCenterID: input.SourceCostCenterID,
		Basis:              input.Basis,
		FormulaExpression:  input.FormulaExpression,
		IsActive:           true,
		ApprovalStatus:     models.ApprovalStatusDraft,
		EffectiveDate:      input.EffectiveDate,
		CreatedByID:        userID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rule).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.replaceTargets(tx, rule, input.Targets)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRuleByID(rule.ID)
}

// UpdateRule replaces a draft rule's definition. Non-draft rules are
// immutable.
func (s *allocationRuleService) UpdateRule(userID, ruleID string, input RuleInput) (*models.AllocationRule, error) {
	rule, err := s.GetRuleByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule.ApprovalStatus != models.ApprovalStatusDraft {
		return nil, apperrors.ErrRuleNotDraft
	}
	if err := s.validateRuleInput(input); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":                  input.Name,
			"source_cost_center_id": input.SourceCostCenterID,
			"basis":                 input.Basis,
			"formula_expression":    input.FormulaExpression,
			"effective_date":        input.EffectiveDate,
		}
		if err := tx.Model(rule).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("rule_id = ?", rule.ID).Delete(&models.AllocationRuleTarget{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.replaceTargets(tx, rule, input.Targets)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRuleByID(ruleID)
}

// replaceTargets writes the rule's targets preserving insertion order, which
// fixes the deterministic "last target" for remainder absorption.
func (s *allocationRuleService) replaceTargets(tx *gorm.DB, rule *models.AllocationRule, targets []RuleTargetInput) error {
	for i, t := range targets {
		target := &models.AllocationRuleTarget{
			RuleID:               rule.ID,
			TargetCostCenterID:   t.TargetCostCenterID,
			AllocationPercentage: t.Percentage,
			AllocationWeight:     t.Weight,
			Position:             i,
		}
		if err := tx.Create(target).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// validateRuleInput enforces the rule contract before anything is persisted.
func (s *allocationRuleService) validateRuleInput(input RuleInput) error {
	if input.Code == "" || input.Name == "" {
		return apperrors.WithMessage(apperrors.ErrValidation, "rule code and name are required")
	}
	if len(input.Targets) == 0 {
		return apperrors.WithMessage(apperrors.ErrValidation, "rule needs at least one target")
	}

	source, err := s.costCenterService.GetCostCenterByID(input.SourceCostCenterID)
	if err != nil {
		return err
	}
	if !source.IsActive {
		return apperrors.ErrInactiveCostCenter
	}

	percentSum := decimal.Zero
	seen := make(map[string]bool, len(input.Targets))
	for _, t := range input.Targets {
		if t.TargetCostCenterID == input.SourceCostCenterID {
			return apperrors.ErrSelfAllocation
		}
		if seen[t.TargetCostCenterID] {
			return apperrors.WithMessage(apperrors.ErrValidation, "duplicate target cost center")
		}
		seen[t.TargetCostCenterID] = true

		target, err := s.costCenterService.GetCostCenterByID(t.TargetCostCenterID)
		if err != nil {
			return err
		}
		if !target.IsActive {
			return apperrors.ErrInactiveCostCenter
		}

		switch input.Basis {
		case models.AllocationBasisPercentage:
			if t.Percentage == nil {
				return apperrors.WithMessage(apperrors.ErrValidation, "percentage basis requires a percentage per target")
			}
			if t.Percentage.IsNegative() || t.Percentage.GreaterThan(hundred) {
				return apperrors.WithMessage(apperrors.ErrValidation, "percentages must be between 0 and 100")
			}
			percentSum = percentSum.Add(*t.Percentage)
		case models.AllocationBasisFormula:
			if input.FormulaExpression == "" && (t.Weight == nil || !t.Weight.IsPositive()) {
				return apperrors.WithMessage(apperrors.ErrValidation, "formula basis requires a positive weight per target")
			}
		}
	}

	switch input.Basis {
	case models.AllocationBasisPercentage:
		if percentSum.Sub(hundred).Abs().GreaterThan(percentageTolerance) {
			return apperrors.ErrPercentageSum
		}
	case models.AllocationBasisFormula:
		if input.FormulaExpression != "" {
			if err := allocation.ValidateFormula(input.FormulaExpression); err != nil {
				return apperrors.WithMessage(apperrors.ErrInvalidFormula, err.Error())
			}
		}
	case models.AllocationBasisDirect, models.AllocationBasisEqual:
		// Even split, nothing further to check.
	default:
		return apperrors.WithMessage(apperrors.ErrValidation, "unknown allocation basis")
	}
	return nil
}

// GetRules returns a paginated, filtered rule list.
func (s *allocationRuleService) GetRules(page pagination.PageRequest, filter RuleFilter) (*pagination.PageResponse[models.AllocationRule], error) {
	page.Defaults()

	base := s.db.Model(&models.AllocationRule{})
	if filter.Status != nil {
		base = base.Where("approval_status = ?", *filter.Status)
	}
	if filter.IsActive != nil {
		base = base.Where("is_active = ?", *filter.IsActive)
	}
	if filter.SourceID != nil {
		base = base.Where("source_cost_center_id = ?", *filter.SourceID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.AllocationRule
	if err := base.Preload("Targets", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).Scopes(pagination.Paginate(page)).Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rules, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetRuleByID returns a rule with its targets in insertion order.
func (s *allocationRuleService) GetRuleByID(ruleID string) (*models.AllocationRule, error) {
	var rule models.AllocationRule
	err := s.db.Preload("Targets", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).Where("id = ?", ruleID).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRuleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rule, nil
}

// SubmitRule moves a draft rule to pending.
func (s *allocationRuleService) SubmitRule(userID, ruleID string) (*models.AllocationRule, error) {
	rule, err := s.GetRuleByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule.ApprovalStatus != models.ApprovalStatusDraft {
		return nil, apperrors.WithMessage(apperrors.ErrStateTransition, "only draft rules can be submitted")
	}

	if err := s.db.Model(rule).Update("approval_status", models.ApprovalStatusPending).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// ApproveRule moves a pending rule to approved. The author may not approve
// their own rule.
func (s *allocationRuleService) ApproveRule(userID, ruleID string) (*models.AllocationRule, error) {
	return s.resolveRule(userID, ruleID, models.ApprovalStatusApproved)
}

// RejectRule moves a pending rule to rejected.
func (s *allocationRuleService) RejectRule(userID, ruleID string) (*models.AllocationRule, error) {
	return s.resolveRule(userID, ruleID, models.ApprovalStatusRejected)
}

func (s *allocationRuleService) resolveRule(userID, ruleID string, status models.ApprovalStatus) (*models.AllocationRule, error) {
	rule, err := s.GetRuleByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule.ApprovalStatus != models.ApprovalStatusPending {
		return nil, apperrors.ErrRuleNotPending
	}
	if rule.CreatedByID == userID {
		return nil, apperrors.ErrRuleSelfApproval
	}

	updates := map[string]interface{}{
		"approval_status": status,
		"approved_by_id":  userID,
	}
	if err := s.db.Model(rule).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// DeleteRule soft-deletes a draft rule.
func (s *allocationRuleService) DeleteRule(userID, ruleID string) error {
	rule, err := s.GetRuleByID(ruleID)
	if err != nil {
		return err
	}
	if rule.ApprovalStatus != models.ApprovalStatusDraft {
		return apperrors.ErrRuleNotDraft
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", rule.ID).Delete(&models.AllocationRuleTarget{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(rule).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	return err
}
