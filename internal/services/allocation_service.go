package services

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"costwise/internal/allocation"
	apperrors "costwise/internal/errors"
	"costwise/internal/logger"
	"costwise/internal/models"
	"costwise/internal/uuid"
)

// allocationService executes approved rules and writes journal batches.
type allocationService struct {
	db                *gorm.DB
	ruleService       AllocationRuleServicer
	directCostService DirectCostServicer
	notifier          NotificationServicer
}

// NewAllocationService creates a new AllocationServicer.
func NewAllocationService(db *gorm.DB, ruleService AllocationRuleServicer, directCostService DirectCostServicer, notifier NotificationServicer) AllocationServicer {
	return &allocationService{
		db:                db,
		ruleService:       ruleService,
		directCostService: directCostService,
		notifier:          notifier,
	}
}

// ExecuteRule runs one approved, active rule for a period. The source amount
// is the source cost center's cost (direct + allocated) in the period. One
// journal line and one allocated-cost transaction are written per target,
// all inside a single database transaction sharing a fresh batch id.
// Serialization of concurrent runs for the same (source, period) is the
// caller's responsibility.
func (s *allocationService) ExecuteRule(ruleID string, periodStart, periodEnd time.Time) (string, error) {
	rule, err := s.ruleService.GetRuleByID(ruleID)
	if err != nil {
		return "", err
	}
	if rule.ApprovalStatus != models.ApprovalStatusApproved || !rule.IsActive {
		return "", apperrors.ErrRuleNotExecutable
	}

	sourceAmount, err := sumCosts(s.db, []string{rule.SourceCostCenterID}, &periodStart, &periodEnd)
	if err != nil {
		return "", err
	}

	basis, err := s.buildBasis(rule, sourceAmount)
	if err != nil {
		return "", err
	}

	lines, err := allocation.Allocate(sourceAmount, basis)
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrValidation, err.Error())
	}

	batchID := uuid.NewBatchID("ALLOC")
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return writeJournalBatch(tx, s.directCostService, journalBatch{
			BatchID:            batchID,
			RuleID:             &rule.ID,
			SourceCostCenterID: &rule.SourceCostCenterID,
			PeriodStart:        periodStart,
			PeriodEnd:          periodEnd,
			SourceAmount:       sourceAmount,
			Lines:              lines,
		})
	})
	if err != nil {
		return "", err
	}

	s.notifier.BatchCompleted(batchID, rule.Code, sourceAmount, len(lines))
	return batchID, nil
}

// buildBasis converts the stored rule into an allocation basis. For formula
// rules with an expression, each target's weight is the expression evaluated
// against that target's driver statistics; otherwise the stored weights are
// used.
func (s *allocationService) buildBasis(rule *models.AllocationRule, sourceAmount decimal.Decimal) (allocation.Basis, error) {
	switch rule.Basis {
	case models.AllocationBasisPercentage:
		targets := make([]allocation.PercentTarget, 0, len(rule.Targets))
		for _, t := range rule.Targets {
			if t.AllocationPercentage == nil {
				return nil, apperrors.WithMessage(apperrors.ErrValidation, "target is missing its percentage")
			}
			targets = append(targets, allocation.PercentTarget{
				TargetID: t.TargetCostCenterID,
				Percent:  *t.AllocationPercentage,
			})
		}
		return allocation.Percentage{Targets: targets}, nil

	case models.AllocationBasisFormula:
		if rule.FormulaExpression != "" {
			return s.buildFormulaBasis(rule, sourceAmount)
		}
		targets := make([]allocation.WeightTarget, 0, len(rule.Targets))
		for _, t := range rule.Targets {
			if t.AllocationWeight == nil {
				return nil, apperrors.WithMessage(apperrors.ErrValidation, "target is missing its weight")
			}
			targets = append(targets, allocation.WeightTarget{
				TargetID: t.TargetCostCenterID,
				Weight:   *t.AllocationWeight,
			})
		}
		return allocation.Weighted{Targets: targets}, nil

	case models.AllocationBasisDirect, models.AllocationBasisEqual:
		ids := make([]string, 0, len(rule.Targets))
		for _, t := range rule.Targets {
			ids = append(ids, t.TargetCostCenterID)
		}
		return allocation.Equal{Name: string(rule.Basis), TargetIDs: ids}, nil
	}
	return nil, apperrors.WithMessage(apperrors.ErrValidation, "unknown allocation basis")
}

func (s *allocationService) buildFormulaBasis(rule *models.AllocationRule, sourceAmount decimal.Decimal) (allocation.Basis, error) {
	expr, err := allocation.ParseFormula(rule.FormulaExpression)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidFormula, err.Error())
	}

	var centers []models.CostCenter
	ids := make([]string, 0, len(rule.Targets))
	for _, t := range rule.Targets {
		ids = append(ids, t.TargetCostCenterID)
	}
	if err := s.db.Where("id IN ?", ids).Find(&centers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	byID := make(map[string]*models.CostCenter, len(centers))
	totals := map[string]decimal.Decimal{
		"total_headcount":      decimal.Zero,
		"total_square_footage": decimal.Zero,
		"total_patient_days":   decimal.Zero,
		"total_service_volume": decimal.Zero,
	}
	for i := range centers {
		cc := &centers[i]
		byID[cc.ID] = cc
		totals["total_headcount"] = totals["total_headcount"].Add(cc.Headcount)
		totals["total_square_footage"] = totals["total_square_footage"].Add(cc.SquareFootage)
		totals["total_patient_days"] = totals["total_patient_days"].Add(cc.PatientDays)
		totals["total_service_volume"] = totals["total_service_volume"].Add(cc.ServiceVolume)
	}

	targets := make([]allocation.WeightTarget, 0, len(rule.Targets))
	for _, t := range rule.Targets {
		cc, ok := byID[t.TargetCostCenterID]
		if !ok {
			return nil, apperrors.ErrCostCenterNotFound
		}
		vars := map[string]decimal.Decimal{
			"source_amount":  sourceAmount,
			"headcount":      cc.Headcount,
			"square_footage": cc.SquareFootage,
			"patient_days":   cc.PatientDays,
			"service_volume": cc.ServiceVolume,
		}
		for k, v := range totals {
			vars[k] = v
		}
		weight, err := expr.Evaluate(vars)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidFormula, err.Error())
		}
		targets = append(targets, allocation.WeightTarget{
			TargetID: t.TargetCostCenterID,
			Weight:   weight,
		})
	}
	return allocation.Weighted{Targets: targets}, nil
}

// journalBatch carries everything writeJournalBatch needs to persist one
// execution run.
type journalBatch struct {
	BatchID            string
	RuleID             *string
	PoolID             *string
	SourceCostCenterID *string
	PeriodStart        time.Time
	PeriodEnd          time.Time
	SourceAmount       decimal.Decimal
	Lines              []allocation.Line
}

// writeJournalBatch persists the journal lines of one execution run and
// posts the matching allocated-cost transactions. Shared by the rule and
// cost pool allocation paths.
func writeJournalBatch(tx *gorm.DB, poster DirectCostServicer, batch journalBatch) error {
	for _, line := range batch.Lines {
		detail, err := json.Marshal(line.Detail)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		journal := &models.AllocationJournal{
			BatchID:            batch.BatchID,
			RuleID:             batch.RuleID,
			PoolID:             batch.PoolID,
			SourceCostCenterID: batch.SourceCostCenterID,
			TargetCostCenterID: line.TargetID,
			PeriodStart:        batch.PeriodStart,
			PeriodEnd:          batch.PeriodEnd,
			SourceAmount:       batch.SourceAmount,
			AllocatedAmount:    line.Amount,
			CalculationDetail:  string(detail),
			Status:             models.JournalStatusPosted,
		}
		if err := tx.Create(journal).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if _, err := poster.PostTransaction(tx,
			line.TargetID, batch.PeriodEnd,
			models.TransactionTypeAllocatedCost, models.CostCategoryOverhead,
			line.Amount, models.ReferenceTypeAllocation, batch.BatchID,
			"Allocated from batch "+batch.BatchID,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetBatch returns all journal lines of one batch.
func (s *allocationService) GetBatch(batchID string) ([]models.AllocationJournal, error) {
	var lines []models.AllocationJournal
	if err := s.db.Where("batch_id = ?", batchID).Order("created_at").Find(&lines).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(lines) == 0 {
		return nil, apperrors.ErrBatchNotFound
	}
	return lines, nil
}

// GetBatchSummary aggregates one batch for reporting.
func (s *allocationService) GetBatchSummary(batchID string) (*BatchSummary, error) {
	lines, err := s.GetBatch(batchID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.AllocatedAmount)
	}
	summary := &BatchSummary{
		BatchID:      batchID,
		LineCount:    len(lines),
		TotalAmount:  total,
		SourceAmount: lines[0].SourceAmount,
		PeriodStart:  lines[0].PeriodStart,
		PeriodEnd:    lines[0].PeriodEnd,
	}
	if !total.Equal(lines[0].SourceAmount) {
		// The writer guarantees zero-sum; log loudly if a batch ever drifts.
		logger.Named("allocation").Errorw("batch total does not match source amount",
			"batch_id", batchID,
			"total", total.String(),
			"source_amount", lines[0].SourceAmount.String(),
		)
	}
	return summary, nil
}
