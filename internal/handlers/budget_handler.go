package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "costwise/internal/errors"
	"costwise/internal/models"
	"costwise/internal/pagination"
	"costwise/internal/services"
)

// BudgetHandler handles budget requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	CostCenterID string              `json:"cost_center_id" binding:"required"`
	FiscalYear   int                 `json:"fiscal_year" binding:"required,gte=2000,lte=2100"`
	PeriodMonth  int                 `json:"period_month" binding:"required,gte=1,lte=12"`
	Category     models.CostCategory `json:"category" binding:"required,cost_category"`
	Amount       decimal.Decimal     `json:"amount" binding:"required"`
}

// ReviseBudgetRequest represents the request payload for revising a budget.
type ReviseBudgetRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Justification string          `json:"justification" binding:"required,min=1,max=500"`
}

// CreateBudget handles the creation of a new budget row.
// @Summary     Create a budget
// @Description Create revision 1 of a budget for a cost center month and category
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.CostCenterBudget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	budget, err := h.budgetService.CreateBudget(req.CostCenterID, req.FiscalYear, req.PeriodMonth, req.Category, req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"fiscal_year": req.FiscalYear, "period_month": req.PeriodMonth, "category": req.Category, "amount": req.Amount})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// ReviseBudget handles creating the next revision of a budget.
// @Summary     Revise budget
// @Description Create the next revision of a budget; prior revisions stay untouched
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body ReviseBudgetRequest true "Revision details"
// @Success     201 {object} models.CostCenterBudget "Revision created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/revisions [post]
func (h *BudgetHandler) ReviseBudget(c *gin.Context) {
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

	var req ReviseBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	revision, err := h.budgetService.ReviseBudget(id, req.Amount, req.Justification)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REVISE_BUDGET", "budget", id, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount, "revision": revision.RevisionNumber, "justification": req.Justification})

	c.JSON(http.StatusCreated, gin.H{"budget": revision})
}

// GetBudgets handles listing budget rows for a cost center and fiscal year.
// @Summary     Get budgets
// @Description Get a paginated list of budget rows, all revisions included
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       cost_center_id query string true  "Cost center ID"
// @Param       fiscal_year    query int    true  "Fiscal year"
// @Param       page           query int    false "Page number (default 1)"
// @Param       page_size      query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.CostCenterBudget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	costCenterID := c.Query("cost_center_id")
	if costCenterID == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "cost_center_id is required"))
		return
	}
	fiscalYear, err := strconv.Atoi(c.Query("fiscal_year"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "fiscal_year must be an integer"))
		return
	}

	result, err := h.budgetService.GetBudgets(costCenterID, fiscalYear, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUtilization handles retrieving budget utilization for one month.
// @Summary     Get budget utilization
// @Description Compare a month's actual cost against its current budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       cost_center_id query string true "Cost center ID"
// @Param       fiscal_year    query int    true "Fiscal year"
// @Param       period_month   query int    true "Period month (1-12)"
// @Success     200 {object} services.BudgetUtilization "Utilization"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/utilization [get]
func (h *BudgetHandler) GetUtilization(c *gin.Context) {
	costCenterID := c.Query("cost_center_id")
	if costCenterID == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "cost_center_id is required"))
		return
	}
	fiscalYear, err := strconv.Atoi(c.Query("fiscal_year"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "fiscal_year must be an integer"))
		return
	}
	periodMonth, err := strconv.Atoi(c.Query("period_month"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "period_month must be an integer"))
		return
	}

	util, err := h.budgetService.GetUtilization(costCenterID, fiscalYear, periodMonth)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"utilization": util})
}
