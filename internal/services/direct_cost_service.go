package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"costwise/internal/allocation"
	apperrors "costwise/internal/errors"
	"costwise/internal/models"
)

// directCostService posts salary, depreciation, and material costs as cost
// center transactions.
type directCostService struct {
	db            *gorm.DB
	budgetService BudgetServicer
}

// NewDirectCostService creates a new DirectCostServicer.
func NewDirectCostService(db *gorm.DB, budgetService BudgetServicer) DirectCostServicer {
	return &directCostService{db: db, budgetService: budgetService}
}

// PostTransaction is the single construction point for cost center
// transactions. It loads the cost center inside the caller's database
// transaction and refuses to post against an inactive one, so no code path
// can bypass the check.
func (s *directCostService) PostTransaction(
	tx *gorm.DB,
	costCenterID string,
	date time.Time,
	txType models.TransactionType,
	category models.CostCategory,
	amount decimal.Decimal,
	referenceType, referenceID, description string,
) (*models.CostCenterTransaction, error) {
	var cc models.CostCenter
	if err := tx.Where("id = ?", costCenterID).First(&cc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCostCenterNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !cc.IsActive {
		return nil, apperrors.ErrInactiveCostCenter
	}

	record := &models.CostCenterTransaction{
		CostCenterID:    costCenterID,
		TransactionDate: date,
		Type:            txType,
		Category:        category,
		Amount:          amount,
		Description:     description,
		ReferenceType:   referenceType,
		ReferenceID:     referenceID,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return record, nil
}

// AssignSalaryCost splits a salary across the staff member's active
// assignments proportionally to their assignment percentages. The produced
// transaction amounts sum to salaryAmount exactly; the last assignment
// absorbs the rounding remainder.
func (s *directCostService) AssignSalaryCost(
	staffMemberID string,
	salaryAmount decimal.Decimal,
	date time.Time,
	description string,
) ([]models.CostCenterTransaction, error) {
	var staff models.StaffMember
	if err := s.db.Where("id = ?", staffMemberID).First(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStaffNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !staff.IsActive {
		return nil, apperrors.ErrInactiveStaff
	}

	var assignments []models.StaffAssignment
	if err := s.db.Preload("Department").
		Where("staff_member_id = ? AND is_active = ?", staffMemberID, true).
		Order("position").Find(&assignments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(assignments) == 0 {
		return nil, apperrors.ErrNoActiveAssignment
	}

	weights := make([]decimal.Decimal, len(assignments))
	for i, a := range assignments {
		weights[i] = a.AllocationPercentage
	}
	shares, err := allocation.SplitProportional(salaryAmount, weights)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, err.Error())
	}

	var produced []models.CostCenterTransaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i, a := range assignments {
			record, err := s.PostTransaction(tx,
				a.Department.CostCenterID, date,
				models.TransactionTypeDirectCost, models.CostCategoryPersonnel,
				shares[i], models.ReferenceTypeSalary, staffMemberID, description,
			)
			if err != nil {
				return err
			}
			produced = append(produced, *record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, record := range produced {
		s.budgetService.CheckThreshold(record.CostCenterID, date)
	}
	return produced, nil
}

// AssignDepreciationCost posts one depreciation transaction against the
// asset's current location's cost center.
func (s *directCostService) AssignDepreciationCost(
	assetID string,
	amount decimal.Decimal,
	date time.Time,
	description string,
) (*models.CostCenterTransaction, error) {
	var asset models.Asset
	if err := s.db.Preload("Department").Where("id = ?", assetID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !asset.IsActive {
		return nil, apperrors.ErrInactiveAsset
	}
	if asset.DepartmentID == nil || asset.Department == nil {
		return nil, apperrors.ErrAssetNoLocation
	}

	var record *models.CostCenterTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		record, txErr = s.PostTransaction(tx,
			asset.Department.CostCenterID, date,
			models.TransactionTypeDirectCost, models.CostCategoryDepreciation,
			amount, models.ReferenceTypeDepreciation, assetID, description,
		)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.budgetService.CheckThreshold(record.CostCenterID, date)
	return record, nil
}

// AssignMaterialCost posts one supplies transaction against the given cost
// center.
func (s *directCostService) AssignMaterialCost(
	costCenterID string,
	amount decimal.Decimal,
	date time.Time,
	referenceType, referenceID, description string,
) (*models.CostCenterTransaction, error) {
	var record *models.CostCenterTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		record, txErr = s.PostTransaction(tx,
			costCenterID, date,
			models.TransactionTypeDirectCost, models.CostCategorySupplies,
			amount, referenceType, referenceID, description,
		)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.budgetService.CheckThreshold(costCenterID, date)
	return record, nil
}
