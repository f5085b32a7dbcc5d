// config.go: settings struct for frigate-ocr and functions to load it through viper.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// ConfigFileName is the name the default config file is written under.
const ConfigFileName = "config.yml"

// FrigateSettings holds the NVR connection, MQTT and pipeline options.
type FrigateSettings struct {
	FrigateURL   string `mapstructure:"frigate_url" yaml:"frigate_url"`
	MQTTServer   string `mapstructure:"mqtt_server" yaml:"mqtt_server"`
	MQTTPort     int    `mapstructure:"mqtt_port" yaml:"mqtt_port"`
	MQTTUsername string `mapstructure:"mqtt_username" yaml:"mqtt_username"`
	MQTTPassword string `mapstructure:"mqtt_password" yaml:"mqtt_password"`
	MainTopic    string `mapstructure:"main_topic" yaml:"main_topic"`
	ReturnTopic  string `mapstructure:"return_topic" yaml:"return_topic"` // empty disables result publishing

	Zones      []string `mapstructure:"zones" yaml:"zones"`
	Camera     []string `mapstructure:"camera" yaml:"camera"`
	Objects    []string `mapstructure:"objects" yaml:"objects"`
	WatchedOCR []string `mapstructure:"watched_ocr" yaml:"watched_ocr"`

	FuzzyMatch           float64 `mapstructure:"fuzzy_match" yaml:"fuzzy_match"` // 0 disables fuzzy matching
	MinScore             float64 `mapstructure:"min_score" yaml:"min_score"`
	LicensePlateMinScore float64 `mapstructure:"license_plate_min_score" yaml:"license_plate_min_score"`
	MaxAttempts          int     `mapstructure:"max_attempts" yaml:"max_attempts"` // 0 = unlimited

	AlwaysSaveCleanSnapshot bool `mapstructure:"always_save_clean_snapshot" yaml:"always_save_clean_snapshot"`
	SaveCleanSnapshots      bool `mapstructure:"save_clean_snapshots" yaml:"save_clean_snapshots"`
	FrigatePlus             bool `mapstructure:"frigate_plus" yaml:"frigate_plus"`

	QueueSize           int           `mapstructure:"queue_size" yaml:"queue_size"`
	EventTTL            time.Duration `mapstructure:"event_ttl" yaml:"event_ttl"`
	ReconnectMaxBackoff time.Duration `mapstructure:"reconnect_max_backoff" yaml:"reconnect_max_backoff"`
	ClientIDPrefix      string        `mapstructure:"client_id_prefix" yaml:"client_id_prefix"`
}

// OCRSettings selects and configures the recognition backend.
type OCRSettings struct {
	Backend   string        `mapstructure:"backend" yaml:"backend"` // easyocr, codeproject, plate_recognizer
	URL       string        `mapstructure:"url" yaml:"url"`
	Token     string        `mapstructure:"token" yaml:"token"`
	Regions   []string      `mapstructure:"regions" yaml:"regions"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// SQLiteSettings is the embedded dedup store.
type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MySQLSettings is the optional shared dedup store.
type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// PostgresSettings is the shared dedup store for deployments already on PostgreSQL.
type PostgresSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DatabaseSettings selects the dedup store backend.
type DatabaseSettings struct {
	Type     string           `mapstructure:"type" yaml:"type"` // sqlite, mysql or postgres
	SQLite   SQLiteSettings   `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL    MySQLSettings    `mapstructure:"mysql" yaml:"mysql"`
	Postgres PostgresSettings `mapstructure:"postgres" yaml:"postgres"`
}

// SnapshotSettings controls where annotated snapshots are written.
type SnapshotSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// TelemetrySettings controls the Prometheus / health HTTP endpoint.
type TelemetrySettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// SentrySettings controls error reporting.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// Settings is the root configuration.
type Settings struct {
	Frigate     FrigateSettings      `mapstructure:"frigate" yaml:"frigate"`
	OCR         OCRSettings          `mapstructure:"ocr_recognizer" yaml:"ocr_recognizer"`
	LoggerLevel string               `mapstructure:"logger_level" yaml:"logger_level"`
	Logging     logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Database    DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Snapshots   SnapshotSettings     `mapstructure:"snapshots" yaml:"snapshots"`
	Telemetry   TelemetrySettings    `mapstructure:"telemetry" yaml:"telemetry"`
	Sentry      SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
// An empty configFile searches the default config paths and writes the
// embedded default config when nothing is found.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	normalizeSettings(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		// Bad env values are reported but the file config still loads
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first config path
func createDefaultConfig(configPaths []string) error {
	if len(configPaths) == 0 {
		return fmt.Errorf("no config path available for default config")
	}
	configPath := filepath.Join(configPaths[0], ConfigFileName)

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))

	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded default config: %w", err)
	}
	return data, nil
}

// normalizeSettings lower-cases list entries that are matched case-insensitively
// and fills derived defaults.
func normalizeSettings(s *Settings) {
	s.Frigate.WatchedOCR = normalizeList(s.Frigate.WatchedOCR)
	s.Frigate.Objects = normalizeList(s.Frigate.Objects)
	s.Frigate.FrigateURL = strings.TrimRight(strings.TrimSpace(s.Frigate.FrigateURL), "/")
	s.Frigate.MainTopic = strings.Trim(s.Frigate.MainTopic, "/")
	s.Frigate.ReturnTopic = strings.Trim(s.Frigate.ReturnTopic, "/")
	s.LoggerLevel = strings.ToLower(strings.TrimSpace(s.LoggerLevel))
	s.Database.Type = strings.ToLower(s.Database.Type)
	s.OCR.Backend = strings.ToLower(s.OCR.Backend)

	if s.Logging.DefaultLevel == "" {
		s.Logging.DefaultLevel = s.LoggerLevel
	}
	if s.Logging.Console != nil && s.Logging.Console.Level == "" {
		s.Logging.Console.Level = s.Logging.DefaultLevel
	}
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// EventsTopic is the topic Frigate publishes event messages on.
func (s *Settings) EventsTopic() string {
	return s.Frigate.MainTopic + "/events"
}

// ResultTopic is the topic recognition results are published on, or "" when disabled.
func (s *Settings) ResultTopic() string {
	if s.Frigate.ReturnTopic == "" {
		return ""
	}
	return s.Frigate.MainTopic + "/" + s.Frigate.ReturnTopic
}

// BrokerURL returns the paho broker address for the configured MQTT server.
func (s *Settings) BrokerURL() string {
	server := s.Frigate.MQTTServer
	if strings.Contains(server, "://") {
		return server
	}
	port := s.Frigate.MQTTPort
	if port == 0 {
		port = DefaultMQTTPort
	}
	return fmt.Sprintf("tcp://%s:%d", server, port)
}

// ClientID returns the MQTT client id, unique per process start.
func (s *Settings) ClientID(now time.Time) string {
	return s.Frigate.ClientIDPrefix + now.Format("20060102150405")
}
