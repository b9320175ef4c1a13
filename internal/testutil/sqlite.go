// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
)

const sqliteMemoryDataSource = "file:testimonials-%s?mode=memory&cache=shared&_foreign_keys=on"

// SQLiteConfig returns a storage configuration for a private shared-cache in-memory database.
func SQLiteConfig(t testing.TB) storage.Config {
	t.Helper()
	return storage.Config{
		DriverName:     storage.DriverNameSQLite,
		DataSourceName: fmt.Sprintf(sqliteMemoryDataSource, storage.NewID()),
	}
}

// gormWriter routes gorm log lines into the test log through zap.
type gormWriter struct {
	logger *zap.SugaredLogger
}

func (writer gormWriter) Printf(format string, arguments ...any) {
	writer.logger.Warnf(format, arguments...)
}

// QuietSession returns database with a logger that reports only real query errors.
func QuietSession(t testing.TB, database *gorm.DB) *gorm.DB {
	t.Helper()
	if database == nil {
		t.Fatal("quiet session: nil database")
	}
	gormLogger := logger.New(
		gormWriter{logger: zaptest.NewLogger(t).Sugar()},
		logger.Config{IgnoreRecordNotFoundError: true, LogLevel: logger.Error},
	)
	return database.Session(&gorm.Session{Logger: gormLogger})
}

// NewMigratedDatabase opens a fresh in-memory SQLite database with every model migrated and
// closes it when the test ends.
func NewMigratedDatabase(t testing.TB) *gorm.DB {
	t.Helper()
	database, openErr := storage.OpenDatabase(SQLiteConfig(t))
	if openErr != nil {
		t.Fatalf("open test database: %v", openErr)
	}
	t.Cleanup(func() {
		if sqlDatabase, sqlErr := database.DB(); sqlErr == nil {
			_ = sqlDatabase.Close()
		}
	})
	database = QuietSession(t, database)
	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		t.Fatalf("migrate test database: %v", migrateErr)
	}
	return database
}
