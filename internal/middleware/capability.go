package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/models"
	"expenseflow/internal/policy"
)

// RequireCapability rejects callers whose role lacks any of caps.
// It must run after AuthMiddleware.
func RequireCapability(caps ...policy.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ContextRole)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}
		r, _ := role.(models.Role)
		for _, capability := range caps {
			if !policy.Allows(r, capability) {
				abortWithError(c, apperrors.ErrForbidden)
				return
			}
		}
		c.Next()
	}
}
