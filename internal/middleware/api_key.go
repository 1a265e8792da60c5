package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
)

// APIKeyMiddleware validates the X-API-Key header against the configured
// integration key.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrIntegrationNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
