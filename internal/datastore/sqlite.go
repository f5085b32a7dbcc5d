package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// sqlitePragmas keeps writers from failing under concurrent readers (CLI, HTTP API).
const sqlitePragmas = "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings conf.SQLiteSettings
}

// Open sets up the SQLite database connection, creating the parent directory.
func (store *SQLiteStore) Open() error {
	if store.Settings.Path == "" {
		return validationError("sqlite path must not be empty", "database.sqlite.path", "")
	}

	dir := filepath.Dir(store.Settings.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("operation", "create_database_dir").
			Context("path", dir).
			Build()
	}

	db, err := gorm.Open(sqlite.Open(store.Settings.Path+sqlitePragmas), gormConfig())
	if err != nil {
		return dbError(err, "open_sqlite", "path", store.Settings.Path)
	}

	store.DB = db
	GetLogger().Info("SQLite database opened", logger.String("path", store.Settings.Path))
	return performAutoMigration(db, "sqlite")
}

// Close closes the SQLite database connection.
func (store *SQLiteStore) Close() error {
	return store.closeDB()
}
