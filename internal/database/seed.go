package database

import (
	"fmt"

	"gorm.io/gorm"

	"expenseflow/internal/logger"
	"expenseflow/internal/models"
	"expenseflow/internal/services"
)

// DefaultPassword is the password given to every seeded user.
const DefaultPassword = "password"

var seedUsers = []struct {
	username string
	role     models.Role
}{
	{"admin", models.RoleAdmin},
	{"manager", models.RoleManager},
	{"accountant", models.RoleAccountant},
	{"supervisor", models.RoleSupervisor},
}

var seedCategories = []struct {
	name          string
	subCategories []string
}{
	{"Raw Materials", []string{"Seeds / Spores", "Compost"}},
	{"Utilities", []string{"Electricity"}},
}

// Seed provisions the default users and category taxonomy. Each group is
// only seeded when its table is empty, so calling Seed again is a no-op.
func Seed(db *gorm.DB) error {
	if err := seedUserAccounts(db); err != nil {
		return err
	}
	return seedCategoryTree(db)
}

func seedUserAccounts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	users := services.NewUserService(db)
	for _, u := range seedUsers {
		if _, err := users.CreateUser(u.username, DefaultPassword, u.role); err != nil {
			return fmt.Errorf("seed user %s: %w", u.username, err)
		}
	}
	logger.Get().Infow("seeded users", "count", len(seedUsers))
	return nil
}

func seedCategoryTree(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	categories := services.NewCategoryService(db)
	for _, c := range seedCategories {
		category, err := categories.CreateCategory(c.name)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.name, err)
		}
		for _, name := range c.subCategories {
			if _, err := categories.CreateSubCategory(category.ID, name); err != nil {
				return fmt.Errorf("seed sub-category %s: %w", name, err)
			}
		}
	}
	logger.Get().Infow("seeded categories", "count", len(seedCategories))
	return nil
}
