// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"testing"

	"taskflow/backend/internal/database"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New returns a migrated in-memory SQLite database that is closed when the
// test finishes.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       database.DriverSQLite,
		DSN:          ":memory:",
		MaxIdleConns: 1,
		LogLevel:     gormlogger.Silent,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := database.Migrate(pool.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return pool.DB
}
