package dbtest

import (
	"testing"

	"github.com/suteetoe/vendor-service/pkg/config"
	"github.com/suteetoe/vendor-service/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated in-memory SQLite database closed at test cleanup.
// A single connection keeps the in-memory schema shared across the pool.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := database.Open(&config.DBConfig{
		Driver:       config.DriverSQLite,
		SQLitePath:   "file::memory:?_foreign_keys=on",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(conn); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
