package main

import (
	"gorm.io/gorm"

	"github.com/updrift/engine/internal/models"
)

// registerModels returns all models that need migration.
func registerModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Channel{},
		&models.Release{},
		&models.ReleaseChannel{},
		&models.Resolution{},
	}
}

// runMigrations executes all database migrations.
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't express.
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addDirtySweepIndex,
	}
	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}
	return nil
}

// addDirtySweepIndex keeps the periodic sweep's dirty-row scan off the main
// unique key. Partial index: clean rows dominate the table.
func addDirtySweepIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_resolutions_dirty_sweep
		ON resolutions(project_id, platform, id)
		WHERE needs_reindex
	`).Error
}
