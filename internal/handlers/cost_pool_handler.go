package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "costwise/internal/errors"
	"costwise/internal/models"
	"costwise/internal/pagination"
	"costwise/internal/services"
)

// CostPoolHandler handles cost pool requests.
type CostPoolHandler struct {
	poolService  services.CostPoolServicer
	auditService services.AuditServicer
}

// NewCostPoolHandler creates a new CostPoolHandler.
func NewCostPoolHandler(poolService services.CostPoolServicer, auditService services.AuditServicer) *CostPoolHandler {
	return &CostPoolHandler{poolService: poolService, auditService: auditService}
}

// CreatePoolRequest represents the request payload for creating a cost pool.
type CreatePoolRequest struct {
	Code           string                `json:"code" binding:"required,min=1,max=30"`
	Name           string                `json:"name" binding:"required,min=1,max=100"`
	PoolType       models.PoolType       `json:"pool_type" binding:"required,pool_type"`
	AllocationBase models.AllocationBase `json:"allocation_base" binding:"omitempty,allocation_base"`
}

// AddMemberRequest represents the request payload for adding a pool member.
type AddMemberRequest struct {
	CostCenterID  string `json:"cost_center_id" binding:"required"`
	IsContributor *bool  `json:"is_contributor" binding:"required"`
}

// CreatePool handles the creation of a new cost pool.
// @Summary     Create a cost pool
// @Description Create a new cost pool; allocation base defaults to equal
// @Tags        cost-pools
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreatePoolRequest true "Pool details"
// @Success     201 {object} models.CostPool "Pool created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate code"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-pools [post]
func (h *CostPoolHandler) CreatePool(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	pool, err := h.poolService.CreatePool(services.PoolInput{
		Code:           req.Code,
		Name:           req.Name,
		PoolType:       req.PoolType,
		AllocationBase: req.AllocationBase,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_POOL", "cost_pool", pool.ID, c.ClientIP(),
		map[string]interface{}{"code": req.Code, "pool_type": req.PoolType})

	c.JSON(http.StatusCreated, gin.H{"pool": pool})
}

// AddMember handles adding a cost center to a pool.
// @Summary     Add pool member
// @Description Add a cost center to a pool as a contributor or a target
// @Tags        cost-pools
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string           true "Pool ID"
// @Param       request body AddMemberRequest true "Member details"
// @Success     201 {object} models.CostPoolMember "Member added"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Pool or cost center not found"
// @Failure     422 {object} ErrorResponse "Pool or cost center is inactive"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-pools/{id}/members [post]
func (h *CostPoolHandler) AddMember(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	poolID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	member, err := h.poolService.AddMember(poolID, req.CostCenterID, *req.IsContributor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ADD_POOL_MEMBER", "cost_pool", poolID, c.ClientIP(),
		map[string]interface{}{"cost_center_id": req.CostCenterID, "is_contributor": *req.IsContributor})

	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// GetPools handles listing cost pools.
// @Summary     Get cost pools
// @Description Get a paginated list of cost pools in code order
// @Tags        cost-pools
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.CostPool] "Paginated pools"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-pools [get]
func (h *CostPoolHandler) GetPools(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.poolService.GetPools(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPool handles retrieving a specific cost pool with its members.
// @Summary     Get cost pool by ID
// @Description Get a specific cost pool with its members in role order
// @Tags        cost-pools
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Pool ID"
// @Success     200 {object} models.CostPool "Pool details"
// @Failure     400 {object} ErrorResponse "Invalid pool ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Pool not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-pools/{id} [get]
func (h *CostPoolHandler) GetPool(c *gin.Context) {
	poolID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	pool, err := h.poolService.GetPoolByID(poolID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pool": pool})
}

// AccumulateCosts handles computing the pooled total for a period.
// @Summary     Accumulate pool costs
// @Description Compute the pooled contributor total for a period without writing anything
// @Tags        cost-pools
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id           path  string true "Pool ID"
// @Param       period_start query string true "Period start (YYYY-MM-DD)"
// @Param       period_end   query string true "Period end (YYYY-MM-DD)"
// @Success     200 {object} map[string]string "Pooled total"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Pool not found"
// @Failure     422 {object} ErrorResponse "Pool has no contributors"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-pools/{id}/accumulate [get]
func (h *CostPoolHandler) AccumulateCosts(c *gin.Context) {
	poolID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	periodStart, periodEnd, err := periodFromQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	total, err := h.poolService.AccumulateCosts(poolID, periodStart, periodEnd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pool_id": poolID, "total": total})
}

// AllocatePool handles distributing a pool's costs to its targets.
// @Summary     Allocate pool
// @Description Accumulate contributor costs for a period and distribute them to targets
// @Tags        cost-pools
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id           path  string true "Pool ID"
// @Param       period_start query string true "Period start (YYYY-MM-DD)"
// @Param       period_end   query string true "Period end (YYYY-MM-DD)"
// @Success     201 {object} map[string]string "Journal batch written"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Pool not found"
// @Failure     422 {object} ErrorResponse "Pool is inactive or missing members"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-pools/{id}/allocate [post]
func (h *CostPoolHandler) AllocatePool(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	poolID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	periodStart, periodEnd, err := periodFromQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	batchID, err := h.poolService.AllocatePool(poolID, periodStart, periodEnd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ALLOCATE_POOL", "cost_pool", poolID, c.ClientIP(),
		map[string]interface{}{"batch_id": batchID, "period_start": periodStart, "period_end": periodEnd})

	c.JSON(http.StatusCreated, gin.H{"batch_id": batchID})
}

// GetPoolBalance handles retrieving a pool's unallocated balance.
// @Summary     Get pool balance
// @Description Get accumulated minus allocated pool costs as of a date
// @Tags        cost-pools
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Pool ID"
// @Param       as_of query string false "Balance date (YYYY-MM-DD, default today)"
// @Success     200 {object} map[string]string "Pool balance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Pool not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-pools/{id}/balance [get]
func (h *CostPoolHandler) GetPoolBalance(c *gin.Context) {
	poolID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "as_of must be a YYYY-MM-DD date"))
			return
		}
		asOf = parsed
	}

	balance, err := h.poolService.GetPoolBalance(poolID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pool_id": poolID, "as_of": asOf.Format("2006-01-02"), "balance": balance})
}
