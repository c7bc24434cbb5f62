package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "costwise/internal/errors"
	"costwise/internal/models"
	"costwise/internal/pagination"
	"costwise/internal/services"
)

// CostCenterHandler handles cost center hierarchy requests.
type CostCenterHandler struct {
	costCenterService services.CostCenterServicer
	auditService      services.AuditServicer
}

// NewCostCenterHandler creates a new CostCenterHandler.
func NewCostCenterHandler(costCenterService services.CostCenterServicer, auditService services.AuditServicer) *CostCenterHandler {
	return &CostCenterHandler{costCenterService: costCenterService, auditService: auditService}
}

// DriverStatsRequest carries the allocation driver statistics of a cost center.
type DriverStatsRequest struct {
	Headcount     decimal.Decimal `json:"headcount" binding:"omitempty"`
	SquareFootage decimal.Decimal `json:"square_footage" binding:"omitempty"`
	PatientDays   decimal.Decimal `json:"patient_days" binding:"omitempty"`
	ServiceVolume decimal.Decimal `json:"service_volume" binding:"omitempty"`
}

func (r DriverStatsRequest) toStats() services.DriverStats {
	return services.DriverStats{
		Headcount:     r.Headcount,
		SquareFootage: r.SquareFootage,
		PatientDays:   r.PatientDays,
		ServiceVolume: r.ServiceVolume,
	}
}

// CreateCostCenterRequest represents the request payload for creating a cost center.
type CreateCostCenterRequest struct {
	Code     string                `json:"code" binding:"required,min=1,max=20"`
	Name     string                `json:"name" binding:"required,min=1,max=100"`
	Type     models.CostCenterType `json:"type" binding:"required,cost_center_type"`
	ParentID *string               `json:"parent_id"`
	Drivers  DriverStatsRequest    `json:"drivers"`
}

// UpdateCostCenterRequest represents the request payload for updating a cost center.
type UpdateCostCenterRequest struct {
	Name     string              `json:"name" binding:"omitempty,min=1,max=100"`
	IsActive *bool               `json:"is_active"`
	Drivers  *DriverStatsRequest `json:"drivers"`
}

// ReparentRequest represents the request payload for moving a cost center.
type ReparentRequest struct {
	NewParentID *string `json:"new_parent_id"`
}

// CreateCostCenter handles the creation of a new cost center.
// @Summary     Create a cost center
// @Description Create a new cost center, optionally under a parent
// @Tags        cost-centers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCostCenterRequest true "Cost center details"
// @Success     201 {object} models.CostCenter "Cost center created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate code"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers [post]
func (h *CostCenterHandler) CreateCostCenter(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	costCenter, err := h.costCenterService.CreateCostCenter(req.Code, req.Name, req.Type, req.ParentID, req.Drivers.toStats())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_COST_CENTER", "cost_center", costCenter.ID, c.ClientIP(),
		map[string]interface{}{"code": req.Code, "name": req.Name, "type": req.Type})

	c.JSON(http.StatusCreated, gin.H{"cost_center": costCenter})
}

// GetCostCenters handles listing cost centers.
// @Summary     Get cost centers
// @Description Get a paginated list of cost centers in hierarchy path order
// @Tags        cost-centers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       type      query string false "Filter by type"
// @Param       is_active query bool   false "Filter by active status"
// @Param       parent_id query string false "Filter by direct parent"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.CostCenter] "Paginated cost centers"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers [get]
func (h *CostCenterHandler) GetCostCenters(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	var filter services.CostCenterFilter
	if v := c.Query("type"); v != "" {
		t := models.CostCenterType(v)
		switch t {
		case models.CostCenterTypeMedical, models.CostCenterTypeNonMedical,
			models.CostCenterTypeAdministrative, models.CostCenterTypeProfitCenter:
			filter.Type = &t
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "invalid cost center type"))
			return
		}
	}
	if v := c.Query("is_active"); v != "" {
		switch v {
		case "true":
			b := true
			filter.IsActive = &b
		case "false":
			b := false
			filter.IsActive = &b
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "is_active must be 'true' or 'false'"))
			return
		}
	}
	if v := c.Query("parent_id"); v != "" {
		filter.ParentID = &v
	}

	result, err := h.costCenterService.GetCostCenters(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCostCenter handles retrieving a specific cost center.
// @Summary     Get cost center by ID
// @Description Get a specific cost center by ID
// @Tags        cost-centers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Cost center ID"
// @Success     200 {object} models.CostCenter "Cost center details"
// @Failure     400 {object} ErrorResponse "Invalid cost center ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id} [get]
func (h *CostCenterHandler) GetCostCenter(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	costCenter, err := h.costCenterService.GetCostCenterByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cost_center": costCenter})
}

// UpdateCostCenter handles updating a cost center.
// @Summary     Update cost center
// @Description Update a cost center's name, active flag, or driver statistics
// @Tags        cost-centers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Cost center ID"
// @Param       request body UpdateCostCenterRequest true "Updated details"
// @Success     200 {object} models.CostCenter "Updated cost center"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id} [put]
func (h *CostCenterHandler) UpdateCostCenter(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	var drivers *services.DriverStats
	if req.Drivers != nil {
		d := req.Drivers.toStats()
		drivers = &d
	}

	costCenter, err := h.costCenterService.UpdateCostCenter(id, req.Name, req.IsActive, drivers)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_COST_CENTER", "cost_center", id, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "is_active": req.IsActive})

	c.JSON(http.StatusOK, gin.H{"cost_center": costCenter})
}

// ReparentCostCenter handles moving a cost center to a new parent.
// @Summary     Re-parent cost center
// @Description Move a cost center (and its subtree) under a new parent, or to the root
// @Tags        cost-centers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Cost center ID"
// @Param       request body ReparentRequest true "New parent"
// @Success     200 {object} models.CostCenter "Moved cost center"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     409 {object} ErrorResponse "Move would create a cycle"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id}/parent [put]
func (h *CostCenterHandler) ReparentCostCenter(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ReparentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	costCenter, err := h.costCenterService.ReparentCostCenter(id, req.NewParentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REPARENT_COST_CENTER", "cost_center", id, c.ClientIP(),
		map[string]interface{}{"new_parent_id": req.NewParentID})

	c.JSON(http.StatusOK, gin.H{"cost_center": costCenter})
}

// GetDescendants handles listing a cost center's subtree.
// @Summary     Get descendants
// @Description Get every descendant of a cost center in hierarchy path order
// @Tags        cost-centers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Cost center ID"
// @Success     200 {array} models.CostCenter "Descendants"
// @Failure     400 {object} ErrorResponse "Invalid cost center ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id}/descendants [get]
func (h *CostCenterHandler) GetDescendants(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	descendants, err := h.costCenterService.GetDescendants(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"descendants": descendants})
}

// DeleteCostCenter handles deleting a cost center.
// @Summary     Delete cost center
// @Description Delete a leaf cost center (soft delete); fails when children exist
// @Tags        cost-centers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Cost center ID"
// @Success     200 {object} MessageResponse "Cost center deleted"
// @Failure     400 {object} ErrorResponse "Invalid cost center ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     409 {object} ErrorResponse "Cost center has children"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id} [delete]
func (h *CostCenterHandler) DeleteCostCenter(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.costCenterService.DeleteCostCenter(id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_COST_CENTER", "cost_center", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Cost center deleted successfully"})
}
