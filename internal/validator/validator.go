// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("cost_center_type", validateCostCenterType)
		_ = v.RegisterValidation("allocation_basis", validateAllocationBasis)
		_ = v.RegisterValidation("cost_category", validateCostCategory)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("pool_type", validatePoolType)
		_ = v.RegisterValidation("allocation_base", validateAllocationBase)
	}
}

func validateCostCenterType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "medical", "non_medical", "administrative", "profit_center":
		return true
	}
	return false
}

func validateAllocationBasis(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "percentage", "formula", "direct", "equal":
		return true
	}
	return false
}

func validateCostCategory(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "personnel", "supplies", "depreciation", "services", "overhead":
		return true
	}
	return false
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "direct_cost", "allocated_cost", "revenue":
		return true
	}
	return false
}

func validatePoolType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "overhead", "facilities", "support", "clinical":
		return true
	}
	return false
}

func validateAllocationBase(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "equal", "headcount", "square_footage", "patient_days", "service_volume":
		return true
	}
	return false
}
