// Package export renders expense lists as CSV and PDF documents.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"expenseflow/internal/models"
)

// CSVHeader is the first line of every CSV export.
var CSVHeader = []string{"ID", "Date", "Category", "SubCategory", "Amount", "Status", "Description", "User"}

// DateLayout formats expense dates in exports.
const DateLayout = "2006-01-02"

// WriteExpensesCSV writes one row per expense. The description column is
// always quoted; other columns are quoted only when they contain a comma,
// quote or line break.
func WriteExpensesCSV(w io.Writer, expenses []models.Expense) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(CSVHeader, ",") + "\n"); err != nil {
		return err
	}

	for i := range expenses {
		e := &expenses[i]
		fields := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			e.Date.Format(DateLayout),
			quoteIfNeeded(categoryName(e)),
			quoteIfNeeded(subCategoryName(e)),
			e.Amount.StringFixed(2),
			string(e.Status),
			quote(e.Description),
			quoteIfNeeded(username(e)),
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}

func categoryName(e *models.Expense) string {
	if e.Category == nil {
		return ""
	}
	return e.Category.Name
}

func subCategoryName(e *models.Expense) string {
	if e.SubCategory == nil {
		return ""
	}
	return e.SubCategory.Name
}

func username(e *models.Expense) string {
	if e.User == nil {
		return ""
	}
	return e.User.Username
}
