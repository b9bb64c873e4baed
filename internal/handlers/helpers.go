package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "natours/internal/errors"
	"natours/internal/middleware"
	"natours/internal/models"
	"natours/internal/services"
)

// currentUser returns the user stored by middleware.Protect.
func currentUser(c *gin.Context) (*models.User, error) {
	return middleware.CurrentUser(c)
}

// requestContext returns the request context carrying the client IP for audit entries.
func requestContext(c *gin.Context) context.Context {
	return services.WithClientIP(c.Request.Context(), c.ClientIP())
}

// parseUUIDParam parses a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
func parseUUIDParam(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id.String(), nil
}

// bindJSON decodes the request body into req and converts binding failures
// into ErrInvalidInput with a readable message.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid input data. "+strings.Join(msgs, ". "))
		}
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid request body")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please provide %s", field)
	case "email":
		return "Please provide a valid email"
	case "max":
		return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
	case "user_role":
		return "role must be one of user, guide, lead-guide, admin"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

func bindQueryError() error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid pagination parameters")
}
