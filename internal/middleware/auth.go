package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "natours/internal/errors"
	"natours/internal/models"
	"natours/internal/services"
)

const (
	userKey   = "user"
	userIDKey = "userID"
)

// Protect verifies the bearer token and stores the current user in the
// context. Failures are passed to ErrorHandler.
func Protect(authService services.AuthServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		user, err := authService.Protect(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// RestrictTo only lets users holding one of roles through. It must run
// after Protect.
func RestrictTo(authService services.AuthServicer, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := CurrentUser(c)
		if err := authService.RestrictTo(user, roles...); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by Protect.
func CurrentUser(c *gin.Context) (*models.User, error) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
