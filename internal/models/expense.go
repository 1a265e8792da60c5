package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseStatus is a position in the approval workflow.
type ExpenseStatus string

const (
	ExpenseStatusDraft         ExpenseStatus = "DRAFT"
	ExpenseStatusSubmitted     ExpenseStatus = "SUBMITTED"
	ExpenseStatusApproved      ExpenseStatus = "APPROVED"
	ExpenseStatusRejected      ExpenseStatus = "REJECTED"
	ExpenseStatusQueriesRaised ExpenseStatus = "QUERIES_RAISED"
)

// ExpenseStatuses lists every status in workflow order.
var ExpenseStatuses = []ExpenseStatus{
	ExpenseStatusDraft,
	ExpenseStatusSubmitted,
	ExpenseStatusApproved,
	ExpenseStatusRejected,
	ExpenseStatusQueriesRaised,
}

// Valid reports whether s is a known status.
func (s ExpenseStatus) Valid() bool {
	for _, known := range ExpenseStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentMode is how an expense was paid.
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "CASH"
	PaymentModeCard         PaymentMode = "CARD"
	PaymentModeBankTransfer PaymentMode = "BANK_TRANSFER"
	PaymentModeUPI          PaymentMode = "UPI"
	PaymentModeCheque       PaymentMode = "CHEQUE"
	PaymentModeOther        PaymentMode = "OTHER"
)

// PaymentModes lists every payment mode for form rendering and validation.
var PaymentModes = []PaymentMode{
	PaymentModeCash,
	PaymentModeCard,
	PaymentModeBankTransfer,
	PaymentModeUPI,
	PaymentModeCheque,
	PaymentModeOther,
}

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	for _, known := range PaymentModes {
		if m == known {
			return true
		}
	}
	return false
}

// Expense is a single reimbursement claim. It exclusively owns its
// attachments and comments.
//
// ReceiptImage is the legacy single-file field. Saving an expense moves it
// into Attachments and clears it.
type Expense struct {
	Base
	Description   string              `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	Date          time.Time           `gorm:"type:date;not null;index" json:"date"`
	Status        ExpenseStatus       `gorm:"size:20;not null;index" json:"status"`
	PaymentMode   PaymentMode         `gorm:"size:20" json:"payment_mode"`
	TaxPercentage decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"tax_percentage"`
	BatchID       string              `gorm:"size:100;index" json:"batch_id"`
	UserID        uint                `gorm:"not null;index" json:"user_id"`
	CategoryID    uint                `gorm:"not null;index" json:"category_id"`
	SubCategoryID *uint               `gorm:"index" json:"sub_category_id,omitempty"`
	ReceiptImage  *string             `gorm:"size:255" json:"receipt_image,omitempty"`

	// Relationships
	User        *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Category    *Category           `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SubCategory *SubCategory        `gorm:"foreignKey:SubCategoryID" json:"sub_category,omitempty"`
	Attachments []ExpenseAttachment `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"attachments"`
	Comments    []ExpenseComment    `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// HasAttachment reports whether an attachment already references fileName.
func (e *Expense) HasAttachment(fileName string) bool {
	for _, a := range e.Attachments {
		if a.FileName == fileName {
			return true
		}
	}
	return false
}

// LegacyReceipt returns the legacy receipt file name, or "" when unset.
func (e *Expense) LegacyReceipt() string {
	if e.ReceiptImage == nil {
		return ""
	}
	return strings.TrimSpace(*e.ReceiptImage)
}

// ExpenseAttachment is a stored receipt file belonging to one expense.
type ExpenseAttachment struct {
	Base
	FileName  string `gorm:"size:255;not null" json:"file_name"`
	ExpenseID uint   `gorm:"not null;index" json:"expense_id"`
}

// ExpenseComment is a reviewer or owner note on an expense.
type ExpenseComment struct {
	Base
	ExpenseID uint      `gorm:"not null;index" json:"expense_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"not null;<-:create" json:"timestamp"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// NewExpenseComment builds a comment stamped with the current time.
func NewExpenseComment(expenseID, userID uint, message string) *ExpenseComment {
	return &ExpenseComment{
		ExpenseID: expenseID,
		UserID:    userID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
