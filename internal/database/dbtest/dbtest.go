// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psds-microservice/support-bot/internal/database"
)

// New returns a fresh, fully migrated database private to the calling test.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.Open(database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	if _, err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("dbtest: migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
