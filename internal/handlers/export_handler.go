package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/export"
	"expenseflow/internal/models"
	"expenseflow/internal/services"
)

const (
	csvContentType = "text/csv; charset=utf-8"
	pdfContentType = "application/pdf"
)

// ExportHandler renders filtered expense lists as downloadable files
type ExportHandler struct {
	expenseService services.ExpenseServicer
	auditService   services.AuditServicer
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(expenseService services.ExpenseServicer, auditService services.AuditServicer) *ExportHandler {
	return &ExportHandler{expenseService: expenseService, auditService: auditService}
}

// visibleExpenses lists every expense matching the query that the caller may see.
func (h *ExportHandler) visibleExpenses(c *gin.Context) (*models.User, []models.Expense, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, nil, err
	}
	filter, _, sort, err := bindExpenseQuery(c)
	if err != nil {
		return nil, nil, err
	}
	expenses, err := h.expenseService.ListExpenses(scopeToViewer(filter, user), sort)
	if err != nil {
		return nil, nil, err
	}
	return user, expenses, nil
}

func attachmentHeader(ext string) map[string]string {
	name := fmt.Sprintf("expenses-%s.%s", time.Now().UTC().Format(export.DateLayout), ext)
	return map[string]string{"Content-Disposition": `attachment; filename="` + name + `"`}
}

func writeCSV(c *gin.Context, expenses []models.Expense) {
	var buf bytes.Buffer
	if err := export.WriteExpensesCSV(&buf, expenses); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	c.DataFromReader(http.StatusOK, int64(buf.Len()), csvContentType, &buf, attachmentHeader("csv"))
}

// ExportCSV handles the CSV export of the caller's visible expenses
// @Summary     Export expenses as CSV
// @Description Export every expense matching the filter. Managers only export their own.
// @Tags        exports
// @Produce     text/csv
// @Security    BearerAuth
// @Param       keyword     query string false "Keyword"
// @Param       status      query []string false "Status filter, repeatable" collectionFormat(multi)
// @Param       start_date  query string false "Inclusive start date (YYYY-MM-DD)"
// @Param       end_date    query string false "Inclusive end date (YYYY-MM-DD)"
// @Param       category_id query int false "Category ID"
// @Param       sort_field  query string false "Sort field"
// @Param       sort_dir    query string false "ASC or DESC"
// @Success     200 {file} file "CSV file"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /exports/expenses.csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	user, expenses, err := h.visibleExpenses(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, services.AuditActionDownload, "expense_export", 0, c.ClientIP(), map[string]interface{}{
		"format": "csv",
		"rows":   len(expenses),
	})

	writeCSV(c, expenses)
}

// ExportPDF handles the PDF statement of the caller's visible expenses
// @Summary     Export expenses as PDF
// @Description Render every expense matching the filter as a PDF statement with a total
// @Tags        exports
// @Produce     application/pdf
// @Security    BearerAuth
// @Param       keyword     query string false "Keyword"
// @Param       status      query []string false "Status filter, repeatable" collectionFormat(multi)
// @Param       start_date  query string false "Inclusive start date (YYYY-MM-DD)"
// @Param       end_date    query string false "Inclusive end date (YYYY-MM-DD)"
// @Param       category_id query int false "Category ID"
// @Success     200 {file} file "PDF statement"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /exports/expenses.pdf [get]
func (h *ExportHandler) ExportPDF(c *gin.Context) {
	user, expenses, err := h.visibleExpenses(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	doc, err := export.RenderExpensesPDF("Expense statement for "+user.Username, expenses, time.Now())
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.auditService.Log(user.ID, services.AuditActionDownload, "expense_export", 0, c.ClientIP(), map[string]interface{}{
		"format": "pdf",
		"rows":   len(expenses),
	})

	c.DataFromReader(http.StatusOK, int64(len(doc)), pdfContentType, bytes.NewReader(doc), attachmentHeader("pdf"))
}

// IntegrationCSV handles pulls from the accounting system
// @Summary     Integration CSV feed
// @Description Export expenses for external accounting. Defaults to APPROVED when no status is given.
// @Tags        integrations
// @Produce     text/csv
// @Security    ApiKeyAuth
// @Param       status      query []string false "Status filter, repeatable" collectionFormat(multi)
// @Param       start_date  query string false "Inclusive start date (YYYY-MM-DD)"
// @Param       end_date    query string false "Inclusive end date (YYYY-MM-DD)"
// @Success     200 {file} file "CSV file"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Integration not configured"
// @Router      /integrations/expenses.csv [get]
func (h *ExportHandler) IntegrationCSV(c *gin.Context) {
	filter, _, sort, err := bindExpenseQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if len(filter.Statuses) == 0 {
		filter = filter.WithStatuses(models.ExpenseStatusApproved)
	}

	expenses, err := h.expenseService.ListExpenses(filter, sort)
	if err != nil {
		respondWithError(c, err)
		return
	}
	writeCSV(c, expenses)
}
