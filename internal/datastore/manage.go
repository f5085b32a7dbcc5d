package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// performAutoMigration creates or updates the plates table.
func performAutoMigration(db *gorm.DB, dbType string) error {
	migrationStart := time.Now()
	migrationLogger := GetLogger().With(logger.String("db_type", dbType))

	migrationLogger.Debug("Starting database migration")

	tableExists := db.Migrator().HasTable(&Plate{})
	if err := db.AutoMigrate(&Plate{}); err != nil {
		return dbError(err, "auto_migrate", "db_type", dbType, "table", Plate{}.TableName())
	}

	action := "updated"
	if !tableExists {
		action = "created"
	}
	migrationLogger.Debug("Database migration completed successfully",
		logger.String("table", Plate{}.TableName()),
		logger.String("action", action),
		logger.Duration("total_duration", time.Since(migrationStart)))

	return nil
}
