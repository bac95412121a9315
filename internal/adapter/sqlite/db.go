// Package sqlite is the single-node fallback store used when no Postgres DSN
// is configured. It has no database-level change feed, so every successful
// write is published to an in-process feed instead.
package sqlite

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (or creates) the database at path and migrates the schema.
// ":memory:" is accepted for tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One connection: sqlite has a single writer and ":memory:" is per-connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&agentRow{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite: %w", err)
	}
	return db, nil
}
