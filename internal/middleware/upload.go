package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
)

// UploadRedirect is suggested to clients after a rejected upload.
const UploadRedirect = "/dashboard"

// UploadLimit caps request bodies at maxBytes. Requests that announce a
// larger body are refused up front; the rest are cut off by
// http.MaxBytesReader while the handler reads them.
func UploadLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.Header("Location", UploadRedirect)
			abortWithError(c, apperrors.UploadTooLarge(maxBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
