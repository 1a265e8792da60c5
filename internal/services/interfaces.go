package services

import (
	"expenseflow/internal/filestore"
	"expenseflow/internal/models"
	"expenseflow/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(username, password string, role models.Role) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	ListUsers(page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	UpdateUser(id uint, password string, role *models.Role, enabled *bool) (*models.User, error)
	DeleteUser(id uint) error
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(username, password string) (*models.User, error)
}

// CategoryServicer defines the contract for the category taxonomy.
type CategoryServicer interface {
	CreateCategory(name string) (*models.Category, error)
	ListCategories() ([]models.Category, error)
	GetCategoryByID(id uint) (*models.Category, error)
	UpdateCategory(id uint, name string) (*models.Category, error)
	DeleteCategory(id uint) error

	CreateSubCategory(categoryID uint, name string) (*models.SubCategory, error)
	ListSubCategories(categoryID uint) ([]models.SubCategory, error)
	GetSubCategoryByID(id uint) (*models.SubCategory, error)
	UpdateSubCategory(id uint, categoryID *uint, name string) (*models.SubCategory, error)
	DeleteSubCategory(id uint) error
}

// DashboardSection is one role-specific bucket of the dashboard.
type DashboardSection struct {
	Key      string                                   `json:"key"`
	Title    string                                   `json:"title"`
	Statuses []models.ExpenseStatus                   `json:"statuses"`
	Page     *pagination.PageResponse[models.Expense] `json:"page"`
}

// ExpenseServicer defines the contract for the expense workflow.
type ExpenseServicer interface {
	SaveExpense(expense *models.Expense, files []filestore.Upload, deleteAttachmentIDs []uint, deletePrimaryImage bool) (*models.Expense, error)
	GetExpenseByID(id uint) (*models.Expense, error)
	DeleteExpense(id uint) error

	UpdateExpenseStatus(id, actorID uint, status models.ExpenseStatus) (*models.Expense, error)
	RejectExpense(id, actorID uint, message string) (*models.Expense, error)
	AddComment(expenseID, authorID uint, message string) (*models.ExpenseComment, error)
	GetComments(expenseID uint) ([]models.ExpenseComment, error)

	GetAttachment(id uint) (*models.ExpenseAttachment, error)
	DeleteAttachment(id uint) error

	GetExpenses(filter ExpenseFilter, page pagination.PageRequest, sort pagination.SortRequest) (*pagination.PageResponse[models.Expense], error)
	ListExpenses(filter ExpenseFilter, sort pagination.SortRequest) ([]models.Expense, error)
	GetDashboard(user *models.User, criteria ExpenseFilter, pages map[string]int, pageSize int, sort pagination.SortRequest) ([]DashboardSection, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]interface{})
}
