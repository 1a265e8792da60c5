package testutil_test

import (
	"testing"

	"expenseflow/internal/errors"
	"expenseflow/internal/models"
	"expenseflow/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "categories", "sub_categories", "expenses", "expense_attachments", "expense_comments", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_Isolated(t *testing.T) {
	first := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, first)
	testutil.CreateTestUser(t, first, models.RoleManager)

	second := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, second)

	var count int64
	second.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("expected fresh database, found %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db, models.RoleManager)
	if user.ID == 0 {
		t.Fatal("user should have a non-zero ID")
	}
	if user.Role != models.RoleManager || !user.Enabled {
		t.Errorf("expected enabled manager, got role=%s enabled=%v", user.Role, user.Enabled)
	}

	category := testutil.CreateTestCategory(t, db)
	sub := testutil.CreateTestSubCategory(t, db, category.ID, "Compost")
	if sub.CategoryID != category.ID {
		t.Errorf("expected sub-category under %d, got %d", category.ID, sub.CategoryID)
	}

	expense := testutil.CreateTestExpense(t, db, user.ID, category.ID, models.ExpenseStatusDraft)
	if expense.Status != models.ExpenseStatusDraft {
		t.Errorf("expected DRAFT, got %s", expense.Status)
	}
	if !expense.Amount.Equal(expense.Amount.Round(2)) || expense.Amount.IntPart() != 100 {
		t.Errorf("expected amount 100, got %s", expense.Amount)
	}

	att := testutil.CreateTestAttachment(t, db, expense.ID, "abc_receipt.pdf")
	if att.ID == 0 {
		t.Fatal("attachment should have a non-zero ID")
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrExpenseNotFound, "custom message")
	testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
