package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "costwise/internal/errors"
	"costwise/internal/services"
)

// AllocationHandler handles allocation execution and journal batch requests.
type AllocationHandler struct {
	allocationService services.AllocationServicer
	auditService      services.AuditServicer
}

// NewAllocationHandler creates a new AllocationHandler.
func NewAllocationHandler(allocationService services.AllocationServicer, auditService services.AuditServicer) *AllocationHandler {
	return &AllocationHandler{allocationService: allocationService, auditService: auditService}
}

// ExecuteRule handles executing an approved allocation rule for a period.
// @Summary     Execute allocation rule
// @Description Run an approved, active rule over a period and write a journal batch
// @Tags        allocations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id           path  string true "Rule ID"
// @Param       period_start query string true "Period start (YYYY-MM-DD)"
// @Param       period_end   query string true "Period end (YYYY-MM-DD)"
// @Success     201 {object} services.BatchSummary "Journal batch written"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     409 {object} ErrorResponse "Rule is not executable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules/{id}/execute [post]
func (h *AllocationHandler) ExecuteRule(c *gin.Context) {
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

	periodStart, periodEnd, err := periodFromQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	batchID, err := h.allocationService.ExecuteRule(id, periodStart, periodEnd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "EXECUTE_RULE", "allocation_rule", id, c.ClientIP(),
		map[string]interface{}{"batch_id": batchID, "period_start": periodStart, "period_end": periodEnd})

	summary, err := h.allocationService.GetBatchSummary(batchID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"batch": summary})
}

// GetBatch handles retrieving the journal lines of a batch.
// @Summary     Get journal batch
// @Description Get every journal line written by one allocation run
// @Tags        allocations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Batch ID"
// @Success     200 {array} models.AllocationJournal "Journal lines"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Batch not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-batches/{id} [get]
func (h *AllocationHandler) GetBatch(c *gin.Context) {
	batchID := c.Param("id")
	if batchID == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "Invalid batch id"))
		return
	}

	lines, err := h.allocationService.GetBatch(batchID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

// GetBatchSummary handles retrieving the summary of a batch.
// @Summary     Get journal batch summary
// @Description Get the line count and totals of one allocation batch
// @Tags        allocations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Batch ID"
// @Success     200 {object} services.BatchSummary "Batch summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Batch not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-batches/{id}/summary [get]
func (h *AllocationHandler) GetBatchSummary(c *gin.Context) {
	batchID := c.Param("id")
	if batchID == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "Invalid batch id"))
		return
	}

	summary, err := h.allocationService.GetBatchSummary(batchID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch": summary})
}
