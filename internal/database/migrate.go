package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"expenseflow/internal/config"
	"expenseflow/internal/logger"
	"expenseflow/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrate returns a golang-migrate instance over the embedded SQL files
// for the postgres database in cfg. The caller must Close it.
func NewMigrate(cfg *config.Config) (*migrate.Migrate, error) {
	if cfg.DBDriver != DriverPostgres {
		return nil, fmt.Errorf("SQL migrations require the postgres driver, got %q", cfg.DBDriver)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// CloseMigrate closes m and logs any errors.
func CloseMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Get().Warnf("migrate source close error: %v", srcErr)
	}
	if dbErr != nil {
		logger.Get().Warnf("migrate database close error: %v", dbErr)
	}
}

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// migrations; SQLite, used for local runs, is auto-migrated from the models.
func (m *Manager) Migrate() error {
	log := logger.Get()
	log.Info("Running database migrations...")

	if m.cfg.DBDriver == DriverSQLite {
		if err := m.db.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		log.Info("Database schema auto-migrated")
		return nil
	}

	mig, err := NewMigrate(m.cfg)
	if err != nil {
		return err
	}
	defer CloseMigrate(mig)

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("Database migrations completed successfully")
	return nil
}
