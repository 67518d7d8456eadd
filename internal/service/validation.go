// Package service holds the business logic between the HTTP handlers and the
// repositories.
package service

import (
	"errors"
	"fmt"
	"strings"

	"xclone/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	maxUsernameLen = 50
	maxContentLen  = 50000
	// AnonymousViewer is the feed viewer used when none is given.
	AnonymousViewer = "anonymous"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct's validate tags and turns the first failure
// into a VALIDATION_ERROR.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return models.NewValidationError("Invalid input")
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(field + " is required")
	case "max":
		return models.NewValidationError(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "min", "gt":
		return models.NewValidationError("invalid " + field)
	default:
		return models.NewValidationError("invalid " + field)
	}
}
