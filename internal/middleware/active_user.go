package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/models"
)

// UserLookup loads the account behind a token.
type UserLookup interface {
	GetUserByID(id uint) (*models.User, error)
}

// ActiveUser rejects tokens whose account has been disabled or deleted since
// the token was issued. The role from the token is kept for the session.
// It must run after AuthMiddleware.
func ActiveUser(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := c.Get(ContextUserID)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}
		id, _ := userID.(uint)

		user, err := users.GetUserByID(id)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Account no longer exists"))
				return
			}
			abortWithError(c, apperrors.ErrInternalServer)
			return
		}
		if !user.Enabled {
			abortWithError(c, apperrors.ErrUserDisabled)
			return
		}
		c.Next()
	}
}
