// Package errors provides custom error types for the Costwise API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrValidation     = &AppError{Code: "VALIDATION_ERROR", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Hierarchy integrity errors. Both are raised before any write happens.
var (
	ErrCircularReference    = &AppError{Code: "CIRCULAR_REFERENCE", Message: "Re-parenting would create a cycle in the cost center hierarchy", StatusCode: http.StatusConflict}
	ErrReferentialIntegrity = &AppError{Code: "REFERENTIAL_INTEGRITY", Message: "Operation violates referential integrity", StatusCode: http.StatusConflict}
)

// Inactive entity errors. No transaction may ever be posted against an
// inactive cost center; the same rule applies to staff, assets, and pools.
var (
	ErrInactiveCostCenter = &AppError{Code: "INACTIVE_COST_CENTER", Message: "Cost center is inactive", StatusCode: http.StatusUnprocessableEntity}
	ErrInactiveStaff      = &AppError{Code: "INACTIVE_STAFF", Message: "Staff member is inactive", StatusCode: http.StatusUnprocessableEntity}
	ErrInactiveAsset      = &AppError{Code: "INACTIVE_ASSET", Message: "Asset is inactive", StatusCode: http.StatusUnprocessableEntity}
	ErrInactivePool       = &AppError{Code: "INACTIVE_POOL", Message: "Cost pool is not active", StatusCode: http.StatusUnprocessableEntity}
)

// Lifecycle errors.
var (
	ErrStateTransition = &AppError{Code: "STATE_TRANSITION", Message: "Operation is not allowed in the current state", StatusCode: http.StatusConflict}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Cost center errors.
var (
	ErrCostCenterNotFound    = &AppError{Code: "COST_CENTER_NOT_FOUND", Message: "Cost center not found", StatusCode: http.StatusNotFound}
	ErrCostCenterHasChildren = &AppError{Code: "REFERENTIAL_INTEGRITY", Message: "Cost center has child cost centers", StatusCode: http.StatusConflict}
	ErrDuplicateCode         = &AppError{Code: "DUPLICATE_CODE", Message: "A record with this code already exists", StatusCode: http.StatusConflict}
)

// Allocation rule errors.
var (
	ErrRuleNotFound       = &AppError{Code: "RULE_NOT_FOUND", Message: "Allocation rule not found", StatusCode: http.StatusNotFound}
	ErrSelfAllocation     = &AppError{Code: "REFERENTIAL_INTEGRITY", Message: "An allocation rule may not target its own source cost center", StatusCode: http.StatusConflict}
	ErrRuleNotDraft       = &AppError{Code: "STATE_TRANSITION", Message: "Only draft rules can be edited", StatusCode: http.StatusConflict}
	ErrRuleNotPending     = &AppError{Code: "STATE_TRANSITION", Message: "Only pending rules can be approved or rejected", StatusCode: http.StatusConflict}
	ErrRuleSelfApproval   = &AppError{Code: "STATE_TRANSITION", Message: "A rule cannot be approved by its author", StatusCode: http.StatusConflict}
	ErrRuleNotExecutable  = &AppError{Code: "STATE_TRANSITION", Message: "Only approved, active rules can be executed", StatusCode: http.StatusConflict}
	ErrInvalidFormula     = &AppError{Code: "VALIDATION_ERROR", Message: "Allocation formula is invalid", StatusCode: http.StatusBadRequest}
	ErrPercentageSum      = &AppError{Code: "VALIDATION_ERROR", Message: "Target percentages must sum to 100.00", StatusCode: http.StatusBadRequest}
)

// Cost pool errors.
var (
	ErrPoolNotFound        = &AppError{Code: "POOL_NOT_FOUND", Message: "Cost pool not found", StatusCode: http.StatusNotFound}
	ErrPoolNoContributors  = &AppError{Code: "VALIDATION_ERROR", Message: "Cost pool has no contributors", StatusCode: http.StatusUnprocessableEntity}
	ErrPoolNoTargets       = &AppError{Code: "VALIDATION_ERROR", Message: "Cost pool has no targets", StatusCode: http.StatusUnprocessableEntity}
)

// Direct cost errors.
var (
	ErrStaffNotFound      = &AppError{Code: "STAFF_NOT_FOUND", Message: "Staff member not found", StatusCode: http.StatusNotFound}
	ErrNoActiveAssignment = &AppError{Code: "VALIDATION_ERROR", Message: "Staff member has no active assignment", StatusCode: http.StatusUnprocessableEntity}
	ErrAssetNotFound      = &AppError{Code: "ASSET_NOT_FOUND", Message: "Asset not found", StatusCode: http.StatusNotFound}
	ErrAssetNoLocation    = &AppError{Code: "VALIDATION_ERROR", Message: "Asset has no location", StatusCode: http.StatusUnprocessableEntity}
)

// Budget and reporting errors.
var (
	ErrBudgetNotFound      = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrServiceLineNotFound = &AppError{Code: "SERVICE_LINE_NOT_FOUND", Message: "Service line not found", StatusCode: http.StatusNotFound}
	ErrBatchNotFound       = &AppError{Code: "BATCH_NOT_FOUND", Message: "Allocation batch not found", StatusCode: http.StatusNotFound}
)
