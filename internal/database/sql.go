package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/repository"
)

// OpenSQL opens the relational store backing surveys and, with the sql
// artifact backend, response logs. driver is "postgres" or "sqlite".
func OpenSQL(driver, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn must not be empty", driver)
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	return db, nil
}

// Migrate creates the survey table and, when includeArtifacts is set, the
// response log tables.
func Migrate(db *gorm.DB, includeArtifacts bool) error {
	targets := []interface{}{&models.Survey{}}
	if includeArtifacts {
		targets = append(targets, repository.ArtifactModels()...)
	}

	if err := db.AutoMigrate(targets...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
