package datastore

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings conf.MySQLSettings
}

// dsn builds the driver DSN through the driver's own config type.
func (store *MySQLStore) dsn() string {
	cfg := mysql.NewConfig()
	cfg.User = store.Settings.Username
	cfg.Passwd = store.Settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(store.Settings.Host, strconv.Itoa(store.Settings.Port))
	cfg.DBName = store.Settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open sets up the MySQL database connection
func (store *MySQLStore) Open() error {
	if store.Settings.Host == "" || store.Settings.Database == "" {
		return validationError("mysql host and database are required", "database.mysql", store.Settings.Host)
	}

	dsn := store.dsn()
	db, err := gorm.Open(gormmysql.Open(dsn), gormConfig())
	if err != nil {
		GetLogger().Error("Failed to open MySQL database",
			logger.String("host", store.Settings.Host),
			logger.Int("port", store.Settings.Port),
			logger.String("database", store.Settings.Database),
			logger.Error(err))
		return dbError(err, "open_mysql", "dsn", redactSensitiveInfo(dsn))
	}

	store.DB = db
	GetLogger().Info("MySQL database opened",
		logger.String("host", store.Settings.Host),
		logger.String("database", store.Settings.Database))
	return performAutoMigration(db, "mysql")
}

// Close MySQL database connections
func (store *MySQLStore) Close() error {
	return store.closeDB()
}

// redactSensitiveInfo drops the password from a MySQL DSN.
func redactSensitiveInfo(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "[REDACTED DSN]"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "[REDACTED]"
	}
	return cfg.FormatDSN()
}
