package datastore

import (
	"net"
	"net/url"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// PostgresStore implements Interface for PostgreSQL.
type PostgresStore struct {
	DataStore
	Settings conf.PostgresSettings
}

func (store *PostgresStore) dsn() string {
	sslMode := store.Settings.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(store.Settings.Username, store.Settings.Password),
		Host:     net.JoinHostPort(store.Settings.Host, strconv.Itoa(store.Settings.Port)),
		Path:     "/" + store.Settings.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// Open sets up the PostgreSQL connection and migrates the plates table.
func (store *PostgresStore) Open() error {
	if store.Settings.Host == "" || store.Settings.Database == "" {
		return validationError("postgres host and database are required", "database.postgres", store.Settings.Host)
	}

	dsn := store.dsn()
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		GetLogger().Error("Failed to open PostgreSQL database",
			logger.String("host", store.Settings.Host),
			logger.Int("port", store.Settings.Port),
			logger.String("database", store.Settings.Database),
			logger.Error(err))
		return dbError(err, "open_postgres", "dsn", redactPostgresDSN(dsn))
	}

	store.DB = db
	GetLogger().Info("PostgreSQL database opened",
		logger.String("host", store.Settings.Host),
		logger.String("database", store.Settings.Database))
	return performAutoMigration(db, "postgres")
}

// Close PostgreSQL database connections
func (store *PostgresStore) Close() error {
	return store.closeDB()
}

func redactPostgresDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "[REDACTED DSN]"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}
