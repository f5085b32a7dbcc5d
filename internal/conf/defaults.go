// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMQTTPort            = 1883
	DefaultMainTopic           = "frigate"
	DefaultFuzzyMatch          = 0.85
	DefaultQueueSize           = 100
	DefaultEventTTL            = time.Hour
	DefaultReconnectMaxBackoff = 60 * time.Second
	DefaultClientIDPrefix      = "FrigateOCRRecognizer"
	DefaultDatabasePath        = "/config/frigate_ocr_recogizer.db"
	DefaultSnapshotPath        = "/plates"
	DefaultTelemetryListen     = ":9110"
)

// DefaultObjects are the Frigate labels considered when frigate.objects is empty.
var DefaultObjects = []string{"car", "motorcycle", "bus"}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("frigate.frigate_url", "")
	viper.SetDefault("frigate.mqtt_server", "")
	viper.SetDefault("frigate.mqtt_port", DefaultMQTTPort)
	viper.SetDefault("frigate.mqtt_username", "")
	viper.SetDefault("frigate.mqtt_password", "")
	viper.SetDefault("frigate.main_topic", DefaultMainTopic)
	viper.SetDefault("frigate.return_topic", "")
	viper.SetDefault("frigate.zones", []string{})
	viper.SetDefault("frigate.camera", []string{})
	viper.SetDefault("frigate.objects", DefaultObjects)
	viper.SetDefault("frigate.watched_ocr", []string{})
	viper.SetDefault("frigate.fuzzy_match", DefaultFuzzyMatch)
	viper.SetDefault("frigate.min_score", 0.0)
	viper.SetDefault("frigate.license_plate_min_score", 0.0)
	viper.SetDefault("frigate.max_attempts", 0)
	viper.SetDefault("frigate.always_save_clean_snapshot", false)
	viper.SetDefault("frigate.save_clean_snapshots", false)
	viper.SetDefault("frigate.frigate_plus", false)
	viper.SetDefault("frigate.queue_size", DefaultQueueSize)
	viper.SetDefault("frigate.event_ttl", DefaultEventTTL)
	viper.SetDefault("frigate.reconnect_max_backoff", DefaultReconnectMaxBackoff)
	viper.SetDefault("frigate.client_id_prefix", DefaultClientIDPrefix)

	viper.SetDefault("ocr_recognizer.backend", "easyocr")
	viper.SetDefault("ocr_recognizer.url", "http://localhost:8000")
	viper.SetDefault("ocr_recognizer.token", "")
	viper.SetDefault("ocr_recognizer.regions", []string{})
	viper.SetDefault("ocr_recognizer.timeout", 30*time.Second)
	viper.SetDefault("ocr_recognizer.rate_limit", 1.0)

	viper.SetDefault("logger_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.sqlite.path", DefaultDatabasePath)
	viper.SetDefault("database.mysql.host", "")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.username", "")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "frigate_ocr")
	viper.SetDefault("database.postgres.host", "")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.username", "")
	viper.SetDefault("database.postgres.password", "")
	viper.SetDefault("database.postgres.database", "frigate_ocr")
	viper.SetDefault("database.postgres.sslmode", "disable")

	viper.SetDefault("snapshots.path", DefaultSnapshotPath)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", DefaultTelemetryListen)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
}
