package database

import (
	"path/filepath"
	"testing"

	"expenseflow/internal/config"
	"expenseflow/internal/logger"
	"expenseflow/internal/models"
	"expenseflow/internal/services"
	"expenseflow/internal/testutil"
)

func init() {
	logger.Init("test")
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:        "test",
		DBDriver:   DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "expenseflow.db"),
	}
}

func TestNewManager_SQLiteMigrates(t *testing.T) {
	m, err := NewManager(sqliteConfig(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	if err := m.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	for _, model := range models.All() {
		if !m.DB().Migrator().HasTable(model) {
			t.Errorf("expected table for %T", model)
		}
	}
}

func TestNewManager_UnsupportedDriver(t *testing.T) {
	_, err := NewManager(&config.Config{DBDriver: "mysql"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestNewMigrate_RequiresPostgres(t *testing.T) {
	if _, err := NewMigrate(sqliteConfig(t)); err == nil {
		t.Fatal("expected error for sqlite driver")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 || len(entries)%2 != 0 {
		t.Fatalf("expected paired up/down migrations, got %d files", len(entries))
	}
}

func TestSeed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	if err := Seed(db); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	users := services.NewUserService(db)
	for _, u := range seedUsers {
		user, err := users.AttemptLogin(u.username, DefaultPassword)
		if err != nil {
			t.Fatalf("login as %s: %v", u.username, err)
		}
		if user.Role != u.role {
			t.Errorf("%s: expected role %s, got %s", u.username, u.role, user.Role)
		}
	}

	categories, err := services.NewCategoryService(db).ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(categories) != len(seedCategories) {
		t.Fatalf("expected %d categories, got %d", len(seedCategories), len(categories))
	}

	var subCount int64
	db.Model(&models.SubCategory{}).Count(&subCount)
	if subCount != 3 {
		t.Errorf("expected 3 sub-categories, got %d", subCount)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var userCount, categoryCount int64
	db.Model(&models.User{}).Count(&userCount)
	db.Model(&models.Category{}).Count(&categoryCount)
	if userCount != int64(len(seedUsers)) {
		t.Errorf("expected %d users, got %d", len(seedUsers), userCount)
	}
	if categoryCount != int64(len(seedCategories)) {
		t.Errorf("expected %d categories, got %d", len(seedCategories), categoryCount)
	}
}

func TestSeed_SkipsPopulatedTables(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	testutil.CreateTestUserWithUsername(t, db, "existing", models.RoleManager)

	if err := Seed(db); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("expected seeding to skip users, got %d users", count)
	}
}
