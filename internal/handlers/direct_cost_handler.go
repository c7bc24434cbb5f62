package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "costwise/internal/errors"
	"costwise/internal/services"
)

// DirectCostHandler handles direct cost assignment requests.
type DirectCostHandler struct {
	directCostService services.DirectCostServicer
	budgetService     services.BudgetServicer
	auditService      services.AuditServicer
}

// NewDirectCostHandler creates a new DirectCostHandler.
func NewDirectCostHandler(directCostService services.DirectCostServicer, budgetService services.BudgetServicer, auditService services.AuditServicer) *DirectCostHandler {
	return &DirectCostHandler{
		directCostService: directCostService,
		budgetService:     budgetService,
		auditService:      auditService,
	}
}

// AssignSalaryRequest represents the request payload for a salary assignment.
type AssignSalaryRequest struct {
	StaffMemberID string          `json:"staff_member_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Date          time.Time       `json:"date" binding:"required"`
	Description   string          `json:"description" binding:"max=255"`
}

// AssignDepreciationRequest represents the request payload for a depreciation charge.
type AssignDepreciationRequest struct {
	AssetID     string          `json:"asset_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Date        time.Time       `json:"date" binding:"required"`
	Description string          `json:"description" binding:"max=255"`
}

// AssignMaterialRequest represents the request payload for a material cost.
type AssignMaterialRequest struct {
	CostCenterID  string          `json:"cost_center_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Date          time.Time       `json:"date" binding:"required"`
	ReferenceType string          `json:"reference_type" binding:"required,max=30"`
	ReferenceID   string          `json:"reference_id" binding:"required,max=64"`
	Description   string          `json:"description" binding:"max=255"`
}

// AssignSalary handles splitting a salary across a staff member's assignments.
// @Summary     Assign salary cost
// @Description Split a salary across the staff member's department assignments
// @Tags        direct-costs
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AssignSalaryRequest true "Salary details"
// @Success     201 {array} models.CostCenterTransaction "Posted transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Staff member not found"
// @Failure     422 {object} ErrorResponse "Staff inactive or no assignments"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /direct-costs/salary [post]
func (h *DirectCostHandler) AssignSalary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AssignSalaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	transactions, err := h.directCostService.AssignSalaryCost(req.StaffMemberID, req.Amount, req.Date, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ASSIGN_SALARY", "staff_member", req.StaffMemberID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount, "splits": len(transactions)})
	for _, tx := range transactions {
		h.budgetService.CheckThreshold(tx.CostCenterID, req.Date)
	}

	c.JSON(http.StatusCreated, gin.H{"transactions": transactions})
}

// AssignDepreciation handles charging an asset's depreciation to its location.
// @Summary     Assign depreciation cost
// @Description Charge an asset's periodic depreciation to its location cost center
// @Tags        direct-costs
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AssignDepreciationRequest true "Depreciation details"
// @Success     201 {object} models.CostCenterTransaction "Posted transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     422 {object} ErrorResponse "Asset inactive or without location"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /direct-costs/depreciation [post]
func (h *DirectCostHandler) AssignDepreciation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AssignDepreciationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	transaction, err := h.directCostService.AssignDepreciationCost(req.AssetID, req.Amount, req.Date, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ASSIGN_DEPRECIATION", "asset", req.AssetID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount})
	h.budgetService.CheckThreshold(transaction.CostCenterID, req.Date)

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// AssignMaterial handles posting a material cost to a cost center.
// @Summary     Assign material cost
// @Description Post a supplies cost directly to a cost center
// @Tags        direct-costs
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AssignMaterialRequest true "Material cost details"
// @Success     201 {object} models.CostCenterTransaction "Posted transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     422 {object} ErrorResponse "Cost center is inactive"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /direct-costs/material [post]
func (h *DirectCostHandler) AssignMaterial(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AssignMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	transaction, err := h.directCostService.AssignMaterialCost(req.CostCenterID, req.Amount, req.Date,
		req.ReferenceType, req.ReferenceID, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ASSIGN_MATERIAL", "cost_center", req.CostCenterID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount, "reference_id": req.ReferenceID})
	h.budgetService.CheckThreshold(req.CostCenterID, req.Date)

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}
