// interfaces.go: this code defines the interface for the plate store
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

// DefaultRecentLimit is used by Recent when limit is not positive.
const DefaultRecentLimit = 50

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	// Exists reports whether a plate was already recorded for the Frigate event.
	Exists(ctx context.Context, eventID string) (bool, error)
	// Save inserts a plate. A second save for the same event returns an error
	// matching ErrAlreadyRecorded.
	Save(ctx context.Context, plate *Plate) error
	// Recent returns the newest plates first.
	Recent(ctx context.Context, limit int) ([]Plate, error)
	Ping(ctx context.Context) error
}

// DataStore implements the queries shared by every GORM backend.
type DataStore struct {
	DB      *gorm.DB
	metrics metrics.Recorder
}

// New creates the store selected by database.type. Call Open before use.
func New(settings *conf.Settings, recorder metrics.Recorder) Interface {
	if recorder == nil {
		recorder = metrics.NoOpRecorder{}
	}
	base := DataStore{metrics: recorder}

	switch settings.Database.Type {
	case "mysql":
		return &MySQLStore{DataStore: base, Settings: settings.Database.MySQL}
	case "postgres":
		return &PostgresStore{DataStore: base, Settings: settings.Database.Postgres}
	default:
		return &SQLiteStore{DataStore: base, Settings: settings.Database.SQLite}
	}
}

func (ds *DataStore) record(operation string, start time.Time, err error) {
	ds.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		ds.metrics.RecordOperation(operation, metrics.StatusError)
		return
	}
	ds.metrics.RecordOperation(operation, metrics.StatusSuccess)
}

// Exists reports whether a plate row exists for eventID.
func (ds *DataStore) Exists(ctx context.Context, eventID string) (bool, error) {
	if ds.DB == nil {
		return false, ErrNotOpen
	}
	start := time.Now()

	var count int64
	err := ds.DB.WithContext(ctx).Model(&Plate{}).
		Where("frigate_event = ?", eventID).
		Count(&count).Error
	ds.record(metrics.OpPlateExists, start, err)
	if err != nil {
		return false, dbError(err, "plate_exists", "frigate_event", eventID)
	}
	return count > 0, nil
}

// Save inserts plate. Unique violations from any driver map to ErrAlreadyRecorded.
func (ds *DataStore) Save(ctx context.Context, plate *Plate) error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	if plate == nil || plate.FrigateEvent == "" {
		return validationError("plate must reference a frigate event", "frigate_event", "")
	}
	start := time.Now()

	err := ds.DB.WithContext(ctx).Create(plate).Error
	ds.record(metrics.OpPlateSave, start, err)
	if err != nil {
		if IsDuplicate(err) {
			ds.metrics.RecordError(metrics.OpPlateSave, "duplicate")
			return conflictError(plate.FrigateEvent)
		}
		ds.metrics.RecordError(metrics.OpPlateSave, "query")
		return dbError(err, "save_plate", "frigate_event", plate.FrigateEvent)
	}

	GetLogger().Debug("plate stored",
		logger.String("plate", plate.PlateNumber),
		logger.String("event_id", plate.FrigateEvent),
		logger.String("camera", plate.CameraName))
	return nil
}

// Recent returns up to limit plates, newest first.
func (ds *DataStore) Recent(ctx context.Context, limit int) ([]Plate, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	start := time.Now()

	var plates []Plate
	err := ds.DB.WithContext(ctx).Order("id DESC").Limit(limit).Find(&plates).Error
	ds.record(metrics.OpPlateList, start, err)
	if err != nil {
		return nil, dbError(err, "recent_plates", "limit", limit)
	}
	return plates, nil
}

// Ping checks the underlying connection.
func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	return sqlDB.PingContext(ctx)
}

// closeDB closes the generic database object.
func (ds *DataStore) closeDB() error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	ds.DB = nil
	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger().Module("gorm"), 200*time.Millisecond),
		TranslateError: true,
	}
}
