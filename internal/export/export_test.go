package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expenseflow/internal/models"
)

func sampleExpenses() []models.Expense {
	return []models.Expense{
		{
			Base:        models.Base{ID: 1},
			Date:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.RequireFromString("1250.5"),
			Status:      models.ExpenseStatusApproved,
			Description: `Compost "premium" grade`,
			Category:    &models.Category{Name: "Raw Materials"},
			SubCategory: &models.SubCategory{Name: "Compost"},
			User:        &models.User{Username: "manager"},
		},
		{
			Base:        models.Base{ID: 2},
			Date:        time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(80),
			Status:      models.ExpenseStatusSubmitted,
			Description: "Power, March",
			Category:    &models.Category{Name: "Utilities"},
		},
	}
}

func TestWriteExpensesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExpensesCSV(&buf, sampleExpenses()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		"ID,Date,Category,SubCategory,Amount,Status,Description,User",
		`1,2024-03-05,Raw Materials,Compost,1250.50,APPROVED,"Compost ""premium"" grade",manager`,
		`2,2024-03-06,Utilities,,80.00,SUBMITTED,"Power, March",`,
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d:\n got  %s\n want %s", i, lines[i], want[i])
		}
	}
}

func TestWriteExpensesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExpensesCSV(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "ID,Date,Category,SubCategory,Amount,Status,Description,User\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	tests := map[string]string{
		"plain":     "plain",
		"a,b":       `"a,b"`,
		`say "hi"`:  `"say ""hi"""`,
		"two\nline": "\"two\nline\"",
	}
	for in, want := range tests {
		if got := quoteIfNeeded(in); got != want {
			t.Errorf("quoteIfNeeded(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderExpensesPDF(t *testing.T) {
	data, err := RenderExpensesPDF("Expense Statement", sampleExpenses(), time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("expected PDF header, got %q", data[:8])
	}
}

func TestRenderExpensesPDF_LongValues(t *testing.T) {
	expenses := sampleExpenses()
	expenses[0].Category.Name = strings.Repeat("Very long category name ", 10)

	if _, err := RenderExpensesPDF("Statement", expenses, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
