package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "costwise/internal/errors"
	"costwise/internal/models"
	"costwise/internal/pagination"
)

// costCenterService handles cost center business logic, including hierarchy
// path maintenance and cycle prevention.
type costCenterService struct {
	db *gorm.DB
}

// NewCostCenterService creates a new CostCenterServicer.
func NewCostCenterService(db *gorm.DB) CostCenterServicer {
	return &costCenterService{db: db}
}

// CreateCostCenter creates a cost center under the optional parent and
// computes its hierarchy path and level.
func (s *costCenterService) CreateCostCenter(
	code, name string,
	ccType models.CostCenterType,
	parentID *string,
	drivers DriverStats,
) (*models.CostCenter, error) {
	if code == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "cost center code is required")
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "cost center name is required")
	}

	var count int64
	if err := s.db.Model(&models.CostCenter{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateCode
	}

	var parent *models.CostCenter
	if parentID != nil {
		found, err := s.GetCostCenterByID(*parentID)
		if err != nil {
			return nil, err
		}
		parent = found
	}

	cc := &models.CostCenter{
		Code:          code,
		Name:          name,
		Type:          ccType,
		IsActive:      true,
		ParentID:      parentID,
		Headcount:     drivers.Headcount,
		SquareFootage: drivers.SquareFootage,
		PatientDays:   drivers.PatientDays,
		ServiceVolume: drivers.ServiceVolume,
	}
	if parent != nil {
		cc.HierarchyPath = parent.HierarchyPath + "/" + code
		cc.Level = parent.Level + 1
	} else {
		cc.HierarchyPath = code
		cc.Level = 0
	}

	if err := s.db.Create(cc).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return cc, nil
}

// GetCostCenters returns a paginated list of cost centers with optional filters.
func (s *costCenterService) GetCostCenters(page pagination.PageRequest, filter CostCenterFilter) (*pagination.PageResponse[models.CostCenter], error) {
	page.Defaults()

	base := s.db.Model(&models.CostCenter{})
	if filter.Type != nil {
		base = base.Where("type = ?", *filter.Type)
	}
	if filter.IsActive != nil {
		base = base.Where("is_active = ?", *filter.IsActive)
	}
	if filter.ParentID != nil {
		base = base.Where("parent_id = ?", *filter.ParentID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var centers []models.CostCenter
	if err := base.Scopes(pagination.Paginate(page)).Order("hierarchy_path").Find(&centers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(centers, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCostCenterByID returns a cost center by ID.
func (s *costCenterService) GetCostCenterByID(id string) (*models.CostCenter, error) {
	var cc models.CostCenter
	if err := s.db.Where("id = ?", id).First(&cc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCostCenterNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &cc, nil
}

// UpdateCostCenter updates name, active flag, and driver statistics.
// Re-parenting goes through ReparentCostCenter so path maintenance always runs.
func (s *costCenterService) UpdateCostCenter(id, name string, isActive *bool, drivers *DriverStats) (*models.CostCenter, error) {
	cc, err := s.GetCostCenterByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}
	if drivers != nil {
		updates["headcount"] = drivers.Headcount
		updates["square_footage"] = drivers.SquareFootage
		updates["patient_days"] = drivers.PatientDays
		updates["service_volume"] = drivers.ServiceVolume
	}

	if len(updates) > 0 {
		if err := s.db.Model(cc).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return cc, nil
}

// ValidateNoCircularReference reports whether nodeID may adopt
// proposedParentID as its parent. It returns false when the proposed parent
// is the node itself or any of its descendants. A nil proposed parent or an
// id outside the node's subtree (including unknown ids, which are caught by
// foreign keys) is allowed.
func (s *costCenterService) ValidateNoCircularReference(nodeID string, proposedParentID *string) (bool, error) {
	if proposedParentID == nil {
		return true, nil
	}
	if *proposedParentID == nodeID {
		return false, nil
	}

	descendants, err := s.GetDescendants(nodeID)
	if err != nil {
		return false, err
	}
	for _, d := range descendants {
		if d.ID == *proposedParentID {
			return false, nil
		}
	}
	return true, nil
}

// ReparentCostCenter moves a cost center under a new parent (or to the root
// when newParentID is nil) and recomputes hierarchy paths and levels for the
// node and its whole subtree atomically. Cycle validation runs before any
// write.
func (s *costCenterService) ReparentCostCenter(id string, newParentID *string) (*models.CostCenter, error) {
	cc, err := s.GetCostCenterByID(id)
	if err != nil {
		return nil, err
	}

	ok, err := s.ValidateNoCircularReference(id, newParentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrCircularReference
	}

	var parent *models.CostCenter
	if newParentID != nil {
		parent, err = s.GetCostCenterByID(*newParentID)
		if err != nil {
			return nil, err
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		cc.ParentID = newParentID
		if err := tx.Model(&models.CostCenter{}).Where("id = ?", cc.ID).
			Update("parent_id", newParentID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.updateHierarchyPath(tx, cc, parent)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCostCenterByID(id)
}

// updateHierarchyPath recomputes the node's path and level from its parent,
// then walks every direct and transitive child top-down applying the same
// recomputation. Idempotent: re-running without an intervening change leaves
// paths untouched.
func (s *costCenterService) updateHierarchyPath(tx *gorm.DB, node, parent *models.CostCenter) error {
	if parent != nil {
		node.HierarchyPath = parent.HierarchyPath + "/" + node.Code
		node.Level = parent.Level + 1
	} else {
		node.HierarchyPath = node.Code
		node.Level = 0
	}

	if err := tx.Model(&models.CostCenter{}).Where("id = ?", node.ID).
		Updates(map[string]interface{}{
			"hierarchy_path": node.HierarchyPath,
			"level":          node.Level,
		}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var children []models.CostCenter
	if err := tx.Where("parent_id = ?", node.ID).Find(&children).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for i := range children {
		if err := s.updateHierarchyPath(tx, &children[i], node); err != nil {
			return err
		}
	}
	return nil
}

// GetDescendants returns all cost centers whose hierarchy path sits below
// the given node's path, excluding the node itself.
func (s *costCenterService) GetDescendants(nodeID string) ([]models.CostCenter, error) {
	cc, err := s.GetCostCenterByID(nodeID)
	if err != nil {
		return nil, err
	}

	var descendants []models.CostCenter
	if err := s.db.Where("hierarchy_path LIKE ? AND id <> ?", cc.HierarchyPath+"/%", cc.ID).
		Order("hierarchy_path").Find(&descendants).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return descendants, nil
}

// CanDelete reports whether the cost center has no children.
func (s *costCenterService) CanDelete(id string) (bool, error) {
	if _, err := s.GetCostCenterByID(id); err != nil {
		return false, err
	}

	var childCount int64
	if err := s.db.Model(&models.CostCenter{}).Where("parent_id = ?", id).Count(&childCount).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return childCount == 0, nil
}

// DeleteCostCenter soft-deletes a cost center. A cost center with children
// may not be deleted.
func (s *costCenterService) DeleteCostCenter(id string) error {
	cc, err := s.GetCostCenterByID(id)
	if err != nil {
		return err
	}

	ok, err := s.CanDelete(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrCostCenterHasChildren
	}

	if err := s.db.Delete(cc).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
