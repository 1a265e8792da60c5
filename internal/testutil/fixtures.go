package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"expenseflow/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// CreateTestUser creates an enabled user with the given role and a unique username.
func CreateTestUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	username := fmt.Sprintf("user%d", nextID())
	return CreateTestUserWithUsername(t, db, username, role)
}

// CreateTestUserWithUsername creates an enabled user with the given username and role.
func CreateTestUserWithUsername(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Password: string(hash),
		Role:     role,
		Enabled:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB) *models.Category {
	t.Helper()
	return CreateTestCategoryWithName(t, db, fmt.Sprintf("Test Category %d", nextID()))
}

// CreateTestCategoryWithName creates a category with the given name.
func CreateTestCategoryWithName(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{Name: name}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestSubCategory creates a sub-category under categoryID.
func CreateTestSubCategory(t *testing.T, db *gorm.DB, categoryID uint, name string) *models.SubCategory {
	t.Helper()

	sub := &models.SubCategory{Name: name, CategoryID: categoryID}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to create test sub-category: %v", err)
	}
	return sub
}

// CreateTestExpense creates an expense of 100.00 dated today with the given status.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID, categoryID uint, status models.ExpenseStatus) *models.Expense {
	t.Helper()

	now := time.Now().UTC()
	expense := &models.Expense{
		Description: fmt.Sprintf("Test Expense %d", nextID()),
		Amount:      decimal.NewFromInt(100),
		Date:        time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Status:      status,
		PaymentMode: models.PaymentModeCash,
		UserID:      userID,
		CategoryID:  categoryID,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// CreateTestAttachment records an attachment row for expenseID.
func CreateTestAttachment(t *testing.T, db *gorm.DB, expenseID uint, fileName string) *models.ExpenseAttachment {
	t.Helper()

	attachment := &models.ExpenseAttachment{ExpenseID: expenseID, FileName: fileName}
	if err := db.Create(attachment).Error; err != nil {
		t.Fatalf("failed to create test attachment: %v", err)
	}
	return attachment
}
