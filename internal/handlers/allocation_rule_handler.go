package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "costwise/internal/errors"
	"costwise/internal/models"
	"costwise/internal/pagination"
	"costwise/internal/services"
)

// AllocationRuleHandler handles allocation rule lifecycle requests.
type AllocationRuleHandler struct {
	ruleService  services.AllocationRuleServicer
	auditService services.AuditServicer
}

// NewAllocationRuleHandler creates a new AllocationRuleHandler.
func NewAllocationRuleHandler(ruleService services.AllocationRuleServicer, auditService services.AuditServicer) *AllocationRuleHandler {
	return &AllocationRuleHandler{ruleService: ruleService, auditService: auditService}
}

// RuleTargetRequest represents one target in a rule payload.
type RuleTargetRequest struct {
	TargetCostCenterID string           `json:"target_cost_center_id" binding:"required"`
	Percentage         *decimal.Decimal `json:"percentage"`
	Weight             *decimal.Decimal `json:"weight"`
}

// RuleRequest represents the request payload for creating or editing a rule.
type RuleRequest struct {
	Code               string                 `json:"code" binding:"required,min=1,max=30"`
	Name               string                 `json:"name" binding:"required,min=1,max=100"`
	SourceCostCenterID string                 `json:"source_cost_center_id" binding:"required"`
	Basis              models.AllocationBasis `json:"basis" binding:"required,allocation_basis"`
	FormulaExpression  string                 `json:"formula_expression"`
	EffectiveDate      time.Time              `json:"effective_date" binding:"required"`
	Targets            []RuleTargetRequest    `json:"targets" binding:"required,min=1,dive"`
}

func (r RuleRequest) toInput() services.RuleInput {
	input := services.RuleInput{
		Code:               r.Code,
		Name:               r.Name,
		SourceCostCenterID: r.SourceCostCenterID,
		Basis:              r.Basis,
		FormulaExpression:  r.FormulaExpression,
		EffectiveDate:      r.EffectiveDate,
	}
	for _, t := range r.Targets {
		input.Targets = append(input.Targets, services.RuleTargetInput{
			TargetCostCenterID: t.TargetCostCenterID,
			Percentage:         t.Percentage,
			Weight:             t.Weight,
		})
	}
	return input
}

// CreateRule handles the creation of a new allocation rule.
// @Summary     Create an allocation rule
// @Description Create a new allocation rule in draft state
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RuleRequest true "Rule details"
// @Success     201 {object} models.AllocationRule "Rule created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Self-allocation or duplicate code"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules [post]
func (h *AllocationRuleHandler) CreateRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	rule, err := h.ruleService.CreateRule(userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RULE", "allocation_rule", rule.ID, c.ClientIP(),
		map[string]interface{}{"code": req.Code, "basis": req.Basis, "targets": len(req.Targets)})

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// GetRules handles listing allocation rules.
// @Summary     Get allocation rules
// @Description Get a paginated list of allocation rules
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "Filter by approval status"
// @Param       is_active query bool   false "Filter by active status"
// @Param       source_id query string false "Filter by source cost center"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.AllocationRule] "Paginated rules"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules [get]
func (h *AllocationRuleHandler) GetRules(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	var filter services.RuleFilter
	if v := c.Query("status"); v != "" {
		s := models.ApprovalStatus(v)
		switch s {
		case models.ApprovalStatusDraft, models.ApprovalStatusPending,
			models.ApprovalStatusApproved, models.ApprovalStatusRejected:
			filter.Status = &s
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "invalid approval status"))
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
	if v := c.Query("source_id"); v != "" {
		filter.SourceID = &v
	}

	result, err := h.ruleService.GetRules(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRule handles retrieving a specific allocation rule.
// @Summary     Get allocation rule by ID
// @Description Get a specific allocation rule with its targets
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} models.AllocationRule "Rule details"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules/{id} [get]
func (h *AllocationRuleHandler) GetRule(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	rule, err := h.ruleService.GetRuleByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// UpdateRule handles editing a draft allocation rule.
// @Summary     Update allocation rule
// @Description Replace a draft rule's definition and targets
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string      true "Rule ID"
// @Param       request body RuleRequest true "Updated rule details"
// @Success     200 {object} models.AllocationRule "Updated rule"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     409 {object} ErrorResponse "Rule is not a draft"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules/{id} [put]
func (h *AllocationRuleHandler) UpdateRule(c *gin.Context) {
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

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	rule, err := h.ruleService.UpdateRule(userID, id, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RULE", "allocation_rule", id, c.ClientIP(),
		map[string]interface{}{"code": req.Code, "targets": len(req.Targets)})

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// SubmitRule handles submitting a draft rule for approval.
// @Summary     Submit rule for approval
// @Description Move a draft rule to pending state
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} models.AllocationRule "Submitted rule"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     409 {object} ErrorResponse "Rule is not a draft"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules/{id}/submit [post]
func (h *AllocationRuleHandler) SubmitRule(c *gin.Context) {
	h.transition(c, "SUBMIT_RULE", h.ruleService.SubmitRule)
}

// ApproveRule handles approving a pending rule.
// @Summary     Approve rule
// @Description Approve a pending rule; the approver must not be the author
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} models.AllocationRule "Approved rule"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     409 {object} ErrorResponse "Rule is not pending or self-approval"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules/{id}/approve [post]
func (h *AllocationRuleHandler) ApproveRule(c *gin.Context) {
	h.transition(c, "APPROVE_RULE", h.ruleService.ApproveRule)
}

// RejectRule handles rejecting a pending rule.
// @Summary     Reject rule
// @Description Reject a pending rule back out of the approval flow
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} models.AllocationRule "Rejected rule"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     409 {object} ErrorResponse "Rule is not pending"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules/{id}/reject [post]
func (h *AllocationRuleHandler) RejectRule(c *gin.Context) {
	h.transition(c, "REJECT_RULE", h.ruleService.RejectRule)
}

func (h *AllocationRuleHandler) transition(c *gin.Context, action string, fn func(userID, ruleID string) (*models.AllocationRule, error)) {
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

	rule, err := fn(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "allocation_rule", id, c.ClientIP(),
		map[string]interface{}{"status": rule.ApprovalStatus})

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule handles deleting a draft allocation rule.
// @Summary     Delete allocation rule
// @Description Delete a draft rule (soft delete)
// @Tags        allocation-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} MessageResponse "Rule deleted"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     409 {object} ErrorResponse "Rule is not a draft"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /allocation-rules/{id} [delete]
func (h *AllocationRuleHandler) DeleteRule(c *gin.Context) {
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

	if err := h.ruleService.DeleteRule(userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_RULE", "allocation_rule", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Allocation rule deleted successfully"})
}
