package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"expenseflow/internal/models"
	"expenseflow/internal/pagination"
	"expenseflow/internal/services"
)

func setupExportRouter(svc *mockExpenseService, uid uint, role models.Role) *gin.Engine {
	h := NewExportHandler(svc, &mockAuditService{})
	r := gin.New()
	auth := r.Group("", injectUser(uid, role))
	auth.GET("/exports/expenses.csv", h.ExportCSV)
	auth.GET("/exports/expenses.pdf", h.ExportPDF)
	r.GET("/integrations/expenses.csv", h.IntegrationCSV)
	return r
}

func exportRows() []models.Expense {
	return []models.Expense{
		{
			Base:        models.Base{ID: 1},
			Date:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.RequireFromString("12.5"),
			Status:      models.ExpenseStatusApproved,
			Description: `Seeds, "organic"`,
			Category:    &models.Category{Name: "Raw Materials"},
			User:        &models.User{Username: "manager"},
		},
	}
}

func TestExportHandler_ExportCSV(t *testing.T) {
	var got services.ExpenseFilter
	svc := &mockExpenseService{
		listExpensesFn: func(f services.ExpenseFilter, _ pagination.SortRequest) ([]models.Expense, error) {
			got = f
			return exportRows(), nil
		},
	}
	r := setupExportRouter(svc, managerID, models.RoleManager)

	rec := doRequest(r, "GET", "/exports/expenses.csv?status=APPROVED", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), ".csv") {
		t.Errorf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	want := "ID,Date,Category,SubCategory,Amount,Status,Description,User\n" +
		`1,2024-03-05,Raw Materials,,12.50,APPROVED,"Seeds, ""organic""",manager` + "\n"
	if rec.Body.String() != want {
		t.Errorf("unexpected CSV:\n%s\nwant:\n%s", rec.Body.String(), want)
	}
	if got.UserID == nil || *got.UserID != managerID {
		t.Error("manager export must be scoped to the caller")
	}
}

func TestExportHandler_ExportPDF(t *testing.T) {
	svc := &mockExpenseService{
		listExpensesFn: func(_ services.ExpenseFilter, _ pagination.SortRequest) ([]models.Expense, error) {
			return exportRows(), nil
		},
	}
	r := setupExportRouter(svc, accountantID, models.RoleAccountant)

	rec := doRequest(r, "GET", "/exports/expenses.pdf", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != pdfContentType {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("expected a PDF document")
	}
}

func TestExportHandler_IntegrationCSV(t *testing.T) {
	t.Run("defaults to approved expenses", func(t *testing.T) {
		var got services.ExpenseFilter
		svc := &mockExpenseService{
			listExpensesFn: func(f services.ExpenseFilter, _ pagination.SortRequest) ([]models.Expense, error) {
				got = f
				return nil, nil
			},
		}
		r := setupExportRouter(svc, managerID, models.RoleManager)

		rec := doRequest(r, "GET", "/integrations/expenses.csv", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(got.Statuses) != 1 || got.Statuses[0] != models.ExpenseStatusApproved {
			t.Errorf("expected APPROVED default, got %v", got.Statuses)
		}
		if got.UserID != nil {
			t.Error("integration export must not be scoped to a user")
		}
		if rec.Body.String() != "ID,Date,Category,SubCategory,Amount,Status,Description,User\n" {
			t.Errorf("expected header only, got %q", rec.Body.String())
		}
	})

	t.Run("honours explicit statuses", func(t *testing.T) {
		var got services.ExpenseFilter
		svc := &mockExpenseService{
			listExpensesFn: func(f services.ExpenseFilter, _ pagination.SortRequest) ([]models.Expense, error) {
				got = f
				return nil, nil
			},
		}
		r := setupExportRouter(svc, managerID, models.RoleManager)

		rec := doRequest(r, "GET", "/integrations/expenses.csv?status=REJECTED", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(got.Statuses) != 1 || got.Statuses[0] != models.ExpenseStatusRejected {
			t.Errorf("expected REJECTED, got %v", got.Statuses)
		}
	})
}
