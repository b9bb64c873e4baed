// Package validator provides custom validation functions for Gin's binding
// engine and for model validation in the repository layer.
package validator

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"natours/internal/models"
)

var (
	modelValidator *validator.Validate
	modelOnce      sync.Once
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustom(v)
	}
}

// New returns a shared validator used for `validate` struct tags on models.
func New() *validator.Validate {
	modelOnce.Do(func() {
		modelValidator = validator.New(validator.WithRequiredStructEnabled())
		registerCustom(modelValidator)
	})
	return modelValidator
}

func registerCustom(v *validator.Validate) {
	_ = v.RegisterValidation("user_role", validateUserRole)
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}
