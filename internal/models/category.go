package models

// Category is a top-level expense classification managed by administrators.
type Category struct {
	Base
	Name          string        `gorm:"uniqueIndex;size:150;not null" json:"name"`
	SubCategories []SubCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"sub_categories,omitempty"`
}

// SubCategory refines a Category. It always belongs to exactly one Category.
type SubCategory struct {
	Base
	Name       string    `gorm:"size:150;not null" json:"name"`
	CategoryID uint      `gorm:"not null;index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
