// Package database opens the SQLite library database and owns the schema.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string, logQueries bool) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logMode := gormlogger.Default.LogMode(gormlogger.Silent)
	if logQueries {
		logMode = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logMode})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema for all models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Track{},
		&StoredHandle{},
		&Playlist{},
		&PlaylistEntry{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
