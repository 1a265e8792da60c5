package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/models"
	"expenseflow/internal/pagination"
)

// ExpenseFilter holds optional criteria for expense queries. Every set field
// adds one AND-ed clause; the zero value matches every expense.
type ExpenseFilter struct {
	// UserID restricts to one owner. Nil means all users.
	UserID     *uint
	Statuses   []models.ExpenseStatus
	Keyword    string
	StartDate  *time.Time
	EndDate    *time.Time
	CategoryID *uint
}

// WithStatuses returns a copy of f restricted to statuses.
func (f ExpenseFilter) WithStatuses(statuses ...models.ExpenseStatus) ExpenseFilter {
	f.Statuses = statuses
	return f
}

// WithUser returns a copy of f restricted to userID.
func (f ExpenseFilter) WithUser(userID uint) ExpenseFilter {
	f.UserID = &userID
	return f
}

// Scope returns a GORM scope applying the filter to a query on expenses.
func (f ExpenseFilter) Scope() func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.UserID != nil {
			q = q.Where("expenses.user_id = ?", *f.UserID)
		}
		if len(f.Statuses) > 0 {
			statuses := make([]string, len(f.Statuses))
			for i, s := range f.Statuses {
				statuses[i] = string(s)
			}
			q = q.Where("expenses.status IN ?", statuses)
		}
		if f.StartDate != nil {
			q = q.Where("expenses.date >= ?", DateOnly(*f.StartDate))
		}
		if f.EndDate != nil {
			q = q.Where("expenses.date <= ?", DateOnly(*f.EndDate))
		}
		if f.CategoryID != nil {
			q = q.Where("expenses.category_id = ?", *f.CategoryID)
		}
		if keyword := strings.TrimSpace(f.Keyword); keyword != "" {
			pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
			q = q.Joins("LEFT JOIN categories ON categories.id = expenses.category_id").
				Joins("LEFT JOIN sub_categories ON sub_categories.id = expenses.sub_category_id").
				Where(`(LOWER(expenses.description) LIKE ? ESCAPE '\'`+
					` OR LOWER(expenses.batch_id) LIKE ? ESCAPE '\'`+
					` OR LOWER(categories.name) LIKE ? ESCAPE '\'`+
					` OR LOWER(sub_categories.name) LIKE ? ESCAPE '\')`,
					pattern, pattern, pattern, pattern)
		}
		return q
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// expenseSortColumns maps accepted sort fields to qualified columns.
var expenseSortColumns = map[string]string{
	"date":        "expenses.date",
	"amount":      "expenses.amount",
	"status":      "expenses.status",
	"description": "expenses.description",
	"batch_id":    "expenses.batch_id",
	"batchId":     "expenses.batch_id",
	"id":          "expenses.id",
}

// DefaultExpenseSortField is used when the caller gives no sort field.
const DefaultExpenseSortField = "date"

// IsExpenseSortField reports whether field is an accepted sort field.
func IsExpenseSortField(field string) bool {
	_, ok := expenseSortColumns[field]
	return ok
}

// expenseOrder returns a GORM scope ordering by the requested column, with
// the id as a tiebreaker so pages stay stable.
func expenseOrder(sort pagination.SortRequest) (func(*gorm.DB) *gorm.DB, error) {
	orderBy, err := sort.OrderBy(expenseSortColumns, DefaultExpenseSortField)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return func(q *gorm.DB) *gorm.DB {
		q = q.Order(orderBy)
		if !strings.HasPrefix(orderBy, "expenses.id ") {
			q = q.Order("expenses.id DESC")
		}
		return q
	}, nil
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
