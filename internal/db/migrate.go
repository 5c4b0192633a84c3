/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/taskslot/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.Event{},
		&models.Reminder{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	return applyPostgresEventRangeGuard(database)
}

// applyPostgresEventRangeGuard rejects events whose end is not after their start.
// Other backends rely on API validation.
func applyPostgresEventRangeGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'events_range_valid') THEN
    ALTER TABLE events ADD CONSTRAINT events_range_valid CHECK (ends_at > starts_at);
  END IF;
END;
$$;`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply events range guard: %w", err)
	}
	return nil
}
