package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "natours/internal/errors"
)

// APIKey guards operational endpoints such as /metrics with a static key sent
// in the X-API-Key header. An empty key leaves the route open.
func APIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			_ = c.Error(apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or missing API key"))
			c.Abort()
			return
		}
		c.Next()
	}
}
