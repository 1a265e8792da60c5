package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/logger"
	"expenseflow/internal/middleware"
	"expenseflow/internal/models"
	"expenseflow/internal/pagination"
	"expenseflow/internal/policy"
	"expenseflow/internal/services"
)

// dateLayout is the wire format of expense dates.
const dateLayout = "2006-01-02"

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (uint, error) {
	userID, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, apperrors.ErrUnauthorized
	}
	id, ok := userID.(uint)
	if !ok {
		return 0, apperrors.ErrUnauthorized
	}
	return id, nil
}

// currentUser rebuilds the caller from the token claims stored in the context.
func currentUser(c *gin.Context) (*models.User, error) {
	id, err := getUserID(c)
	if err != nil {
		return nil, err
	}
	role, _ := c.Get(middleware.ContextRole)
	r, ok := role.(models.Role)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	username, _ := c.Get(middleware.ContextUsername)
	name, _ := username.(string)
	return &models.User{Base: models.Base{ID: id}, Username: name, Role: r}, nil
}

// parsePathID parses a uint path parameter.
// Returns ErrInvalidInput if the parameter is not a valid positive integer.
func parsePathID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return uint(id), nil
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid date "+value+", expected YYYY-MM-DD")
	}
	t = services.DateOnly(t)
	return &t, nil
}

// ExpenseQuery holds the filter, paging and sort parameters shared by the
// list, dashboard and export endpoints.
type ExpenseQuery struct {
	Keyword    string   `form:"keyword" binding:"max=200"`
	Statuses   []string `form:"status" binding:"omitempty,dive,expense_status"`
	StartDate  string   `form:"start_date"`
	EndDate    string   `form:"end_date"`
	CategoryID *uint    `form:"category_id" binding:"omitempty,min=1"`
	pagination.PageRequest
	pagination.SortRequest
}

// bindExpenseQuery parses the query string into a filter plus paging and
// sort requests. The page request is returned as bound; callers pick defaults.
func bindExpenseQuery(c *gin.Context) (services.ExpenseFilter, pagination.PageRequest, pagination.SortRequest, error) {
	var q ExpenseQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return services.ExpenseFilter{}, q.PageRequest, q.SortRequest, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if q.SortRequest.Field != "" && !services.IsExpenseSortField(q.SortRequest.Field) {
		return services.ExpenseFilter{}, q.PageRequest, q.SortRequest,
			apperrors.WithMessage(apperrors.ErrInvalidInput, "Unsupported sort field "+q.SortRequest.Field)
	}

	filter := services.ExpenseFilter{
		Keyword:    strings.TrimSpace(q.Keyword),
		CategoryID: q.CategoryID,
	}
	for _, s := range q.Statuses {
		filter.Statuses = append(filter.Statuses, models.ExpenseStatus(s))
	}

	var err error
	if filter.StartDate, err = parseDate(q.StartDate); err != nil {
		return services.ExpenseFilter{}, q.PageRequest, q.SortRequest, err
	}
	if filter.EndDate, err = parseDate(q.EndDate); err != nil {
		return services.ExpenseFilter{}, q.PageRequest, q.SortRequest, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return services.ExpenseFilter{}, q.PageRequest, q.SortRequest,
			apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must not be before start_date")
	}

	return filter, q.PageRequest, q.SortRequest, nil
}

// scopeToViewer restricts filter to the caller's own expenses unless the
// caller's role may see everyone's.
func scopeToViewer(filter services.ExpenseFilter, user *models.User) services.ExpenseFilter {
	if policy.Allows(user.Role, policy.CapExpenseViewAll) {
		return filter
	}
	return filter.WithUser(user.ID)
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.Header("Location", middleware.UploadRedirect)
		err = apperrors.UploadTooLarge(maxErr.Limit)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// MessageResponse represents a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
