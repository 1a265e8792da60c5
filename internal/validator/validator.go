// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"expenseflow/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterWith(v)
	}
}

// RegisterWith registers the custom validators on v.
func RegisterWith(v *validator.Validate) {
	_ = v.RegisterValidation("expense_status", validateExpenseStatus)
	_ = v.RegisterValidation("payment_mode", validatePaymentMode)
	_ = v.RegisterValidation("user_role", validateUserRole)
	_ = v.RegisterValidation("sort_direction", validateSortDirection)
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("percentage", validatePercentage)
}

func validateExpenseStatus(fl validator.FieldLevel) bool {
	return models.ExpenseStatus(fl.Field().String()).Valid()
}

func validatePaymentMode(fl validator.FieldLevel) bool {
	return models.PaymentMode(fl.Field().String()).Valid()
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}

func validateSortDirection(fl validator.FieldLevel) bool {
	switch strings.ToUpper(fl.Field().String()) {
	case "ASC", "DESC":
		return true
	}
	return false
}

// validateMoney accepts positive decimals with at most two fractional digits.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Equal(d.Round(2))
}

func validatePercentage(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}
