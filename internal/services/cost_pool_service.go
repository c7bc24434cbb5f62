package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"costwise/internal/allocation"
	apperrors "costwise/internal/errors"
	"costwise/internal/models"
	"costwise/internal/pagination"
	"costwise/internal/uuid"
)

// costPoolService accumulates contributor costs into pools and redistributes
// the pooled total across target members.
type costPoolService struct {
	db                *gorm.DB
	directCostService DirectCostServicer
	notifier          NotificationServicer
}

// NewCostPoolService creates a new CostPoolServicer.
func NewCostPoolService(db *gorm.DB, directCostService DirectCostServicer, notifier NotificationServicer) CostPoolServicer {
	return &costPoolService{
		db:                db,
		directCostService: directCostService,
		notifier:          notifier,
	}
}

// CreatePool creates a cost pool. Pool codes are unique.
func (s *costPoolService) CreatePool(input PoolInput) (*models.CostPool, error) {
	if input.Code == "" || input.Name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "pool code and name are required")
	}

	var existing models.CostPool
	err := s.db.Where("code = ?", input.Code).First(&existing).Error
	if err == nil {
		return nil, apperrors.ErrDuplicateCode
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	base := input.AllocationBase
	if base == "" {
		base = models.AllocationBaseEqual
	}
	pool := &models.CostPool{
		Code:           input.Code,
		Name:           input.Name,
		PoolType:       input.PoolType,
		AllocationBase: base,
		IsActive:       true,
	}
	if err := s.db.Create(pool).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return pool, nil
}

// AddMember attaches a cost center to a pool as a contributor or a target.
// A cost center may hold both roles through two memberships.
func (s *costPoolService) AddMember(poolID, costCenterID string, isContributor bool) (*models.CostPoolMember, error) {
	pool, err := s.GetPoolByID(poolID)
	if err != nil {
		return nil, err
	}
	if !pool.IsActive {
		return nil, apperrors.ErrInactivePool
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

	var duplicate int64
	if err := s.db.Model(&models.CostPoolMember{}).
		Where("pool_id = ? AND cost_center_id = ? AND is_contributor = ?", poolID, costCenterID, isContributor).
		Count(&duplicate).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if duplicate > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "cost center already holds this pool role")
	}

	var position int64
	if err := s.db.Model(&models.CostPoolMember{}).
		Where("pool_id = ? AND is_contributor = ?", poolID, isContributor).
		Count(&position).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	member := &models.CostPoolMember{
		PoolID:        poolID,
		CostCenterID:  costCenterID,
		IsContributor: isContributor,
		Position:      int(position),
	}
	if err := s.db.Create(member).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return member, nil
}

// GetPools returns a page of cost pools ordered by code.
func (s *costPoolService) GetPools(page pagination.PageRequest) (*pagination.PageResponse[models.CostPool], error) {
	page.Defaults()

	var total int64
	if err := s.db.Model(&models.CostPool{}).Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var pools []models.CostPool
	if err := s.db.Order("code").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&pools).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	result := pagination.NewPageResponse(pools, page.Page, page.PageSize, total)
	return &result, nil
}

// GetPoolByID returns one pool with its members, contributors first.
func (s *costPoolService) GetPoolByID(poolID string) (*models.CostPool, error) {
	var pool models.CostPool
	err := s.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("is_contributor DESC, position")
	}).Preload("Members.CostCenter").First(&pool, "id = ?", poolID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPoolNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &pool, nil
}

// AccumulateCosts sums the contributors' costs for the period. It reads, it
// does not write: the pooled total is derived on demand, never stored.
func (s *costPoolService) AccumulateCosts(poolID string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	pool, err := s.GetPoolByID(poolID)
	if err != nil {
		return decimal.Zero, err
	}
	contributors, _ := splitMembers(pool)
	if len(contributors) == 0 {
		return decimal.Zero, apperrors.ErrPoolNoContributors
	}
	return sumCosts(s.db, contributors, &periodStart, &periodEnd)
}

// ValidatePoolAllocationRule checks that the pool is in a state that can
// allocate: active, with at least one contributor and one target.
func (s *costPoolService) ValidatePoolAllocationRule(poolID string) error {
	pool, err := s.GetPoolByID(poolID)
	if err != nil {
		return err
	}
	return validatePoolAllocation(pool)
}

func validatePoolAllocation(pool *models.CostPool) error {
	if !pool.IsActive {
		return apperrors.ErrInactivePool
	}
	contributors, targets := splitMembers(pool)
	if len(contributors) == 0 {
		return apperrors.ErrPoolNoContributors
	}
	if len(targets) == 0 {
		return apperrors.ErrPoolNoTargets
	}
	return nil
}

// AllocatePool accumulates the period's contributor costs and distributes
// the total across the pool's targets using the pool's allocation base. The
// journal batch records the pool, not a source cost center.
func (s *costPoolService) AllocatePool(poolID string, periodStart, periodEnd time.Time) (string, error) {
	pool, err := s.GetPoolByID(poolID)
	if err != nil {
		return "", err
	}
	if err := validatePoolAllocation(pool); err != nil {
		return "", err
	}
	contributors, targets := splitMembers(pool)

	pooledTotal, err := sumCosts(s.db, contributors, &periodStart, &periodEnd)
	if err != nil {
		return "", err
	}

	basis, err := s.buildPoolBasis(pool, targets)
	if err != nil {
		return "", err
	}

	lines, err := allocation.Allocate(pooledTotal, basis)
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrValidation, err.Error())
	}
	for i := range lines {
		lines[i].Detail.PoolID = pool.ID
		lines[i].Detail.PoolCode = pool.Code
		lines[i].Detail.PoolType = string(pool.PoolType)
		lines[i].Detail.AllocationBase = string(pool.AllocationBase)
	}

	batchID := uuid.NewBatchID("POOL")
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return writeJournalBatch(tx, s.directCostService, journalBatch{
			BatchID:      batchID,
			PoolID:       &pool.ID,
			PeriodStart:  periodStart,
			PeriodEnd:    periodEnd,
			SourceAmount: pooledTotal,
			Lines:        lines,
		})
	})
	if err != nil {
		return "", err
	}

	s.notifier.BatchCompleted(batchID, pool.Code, pooledTotal, len(lines))
	return batchID, nil
}

// buildPoolBasis turns the pool's allocation base into a basis over the
// target cost centers. Driver bases weight each target by its statistic;
// a target missing the statistic weighs zero.
func (s *costPoolService) buildPoolBasis(pool *models.CostPool, targetIDs []string) (allocation.Basis, error) {
	if pool.AllocationBase == models.AllocationBaseEqual {
		weights := make([]allocation.WeightTarget, 0, len(targetIDs))
		for _, id := range targetIDs {
			weights = append(weights, allocation.WeightTarget{TargetID: id, Weight: decimal.NewFromInt(1)})
		}
		return allocation.Weighted{Name: "cost_pool", Targets: weights}, nil
	}

	var centers []models.CostCenter
	if err := s.db.Where("id IN ?", targetIDs).Find(&centers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	byID := make(map[string]*models.CostCenter, len(centers))
	for i := range centers {
		byID[centers[i].ID] = &centers[i]
	}

	weights := make([]allocation.WeightTarget, 0, len(targetIDs))
	for _, id := range targetIDs {
		cc, ok := byID[id]
		if !ok {
			return nil, apperrors.ErrCostCenterNotFound
		}
		value, known := cc.Driver(string(pool.AllocationBase))
		if !known {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "unknown allocation base "+string(pool.AllocationBase))
		}
		weights = append(weights, allocation.WeightTarget{TargetID: id, Weight: value})
	}
	return allocation.Weighted{Name: "cost_pool", Targets: weights}, nil
}

// GetPoolBalance returns what the pool has accumulated but not yet
// distributed as of a date: contributor costs up to asOf minus amounts
// already allocated out in posted batches.
func (s *costPoolService) GetPoolBalance(poolID string, asOf time.Time) (decimal.Decimal, error) {
	pool, err := s.GetPoolByID(poolID)
	if err != nil {
		return decimal.Zero, err
	}
	contributors, _ := splitMembers(pool)
	if len(contributors) == 0 {
		return decimal.Zero, apperrors.ErrPoolNoContributors
	}

	accumulated, err := sumCosts(s.db, contributors, nil, &asOf)
	if err != nil {
		return decimal.Zero, err
	}

	var allocated []decimal.Decimal
	if err := s.db.Model(&models.AllocationJournal{}).
		Where("pool_id = ? AND status = ? AND period_end <= ?", poolID, models.JournalStatusPosted, asOf).
		Pluck("allocated_amount", &allocated).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	balance := accumulated
	for _, amount := range allocated {
		balance = balance.Sub(amount)
	}
	return balance, nil
}

// splitMembers partitions a pool's members into contributor and target
// cost center ids, preserving position order.
func splitMembers(pool *models.CostPool) (contributors, targets []string) {
	for _, m := range pool.Members {
		if m.IsContributor {
			contributors = append(contributors, m.CostCenterID)
		} else {
			targets = append(targets, m.CostCenterID)
		}
	}
	return contributors, targets
}
