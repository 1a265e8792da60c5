package models

import "time"

// Base contains common columns for all tables
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All returns every persisted model in foreign-key order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&SubCategory{},
		&Expense{},
		&ExpenseAttachment{},
		&ExpenseComment{},
		&AuditLog{},
	}
}
