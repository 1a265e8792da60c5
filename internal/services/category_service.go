package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/models"
)

// categoryService manages the shared category taxonomy.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	if err := s.ensureUniqueName(name, 0); err != nil {
		return nil, err
	}

	category := &models.Category{Name: name}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

func (s *categoryService) ensureUniqueName(name string, exceptID uint) error {
	var count int64
	q := s.db.Model(&models.Category{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}

// ListCategories returns every category with its sub-categories, by name.
func (s *categoryService) ListCategories() ([]models.Category, error) {
	categories := []models.Category{}
	if err := s.db.
		Preload("SubCategories", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Order("name").
		Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category with its sub-categories.
func (s *categoryService) GetCategoryByID(id uint) (*models.Category, error) {
	var category models.Category
	if err := s.db.
		Preload("SubCategories", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory renames a category.
func (s *categoryService) UpdateCategory(id uint, name string) (*models.Category, error) {
	category, err := s.GetCategoryByID(id)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if err := s.ensureUniqueName(name, id); err != nil {
		return nil, err
	}

	if err := s.db.Model(category).Update("name", name).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	category.Name = name
	return category, nil
}

// DeleteCategory deletes a category and its sub-categories. Categories
// referenced by expenses cannot be deleted.
func (s *categoryService) DeleteCategory(id uint) error {
	category, err := s.GetCategoryByID(id)
	if err != nil {
		return err
	}

	var inUse int64
	if err := s.db.Model(&models.Expense{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if inUse > 0 {
		return apperrors.ErrCategoryInUse
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&models.SubCategory{}).Error; err != nil {
			return err
		}
		return tx.Delete(category).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// CreateSubCategory adds a sub-category under categoryID.
func (s *categoryService) CreateSubCategory(categoryID uint, name string) (*models.SubCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "sub-category name is required")
	}
	if _, err := s.GetCategoryByID(categoryID); err != nil {
		return nil, err
	}

	sub := &models.SubCategory{Name: name, CategoryID: categoryID}
	if err := s.db.Create(sub).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return sub, nil
}

// ListSubCategories returns the sub-categories of categoryID, by name.
func (s *categoryService) ListSubCategories(categoryID uint) ([]models.SubCategory, error) {
	subs := []models.SubCategory{}
	if err := s.db.Where("category_id = ?", categoryID).Order("name").Find(&subs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return subs, nil
}

// GetSubCategoryByID retrieves a sub-category with its parent.
func (s *categoryService) GetSubCategoryByID(id uint) (*models.SubCategory, error) {
	var sub models.SubCategory
	if err := s.db.Preload("Category").First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSubCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &sub, nil
}

// UpdateSubCategory renames a sub-category or moves it to another category.
func (s *categoryService) UpdateSubCategory(id uint, categoryID *uint, name string) (*models.SubCategory, error) {
	sub, err := s.GetSubCategoryByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name = strings.TrimSpace(name); name != "" {
		updates["name"] = name
	}
	if categoryID != nil && *categoryID != sub.CategoryID {
		if _, err := s.GetCategoryByID(*categoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *categoryID
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.SubCategory{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetSubCategoryByID(id)
}

// DeleteSubCategory removes a sub-category. Expenses pointing at it keep
// their category and lose the sub-category.
func (s *categoryService) DeleteSubCategory(id uint) error {
	sub, err := s.GetSubCategoryByID(id)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Expense{}).
			Where("sub_category_id = ?", id).
			Update("sub_category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.SubCategory{}, sub.ID).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
