// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateFrigateSettings(&settings.Frigate)...)
	ve.Errors = append(ve.Errors, validateOCRSettings(&settings.OCR)...)
	ve.Errors = append(ve.Errors, validateDatabaseSettings(&settings.Database)...)

	if !isValidLogLevel(settings.LoggerLevel) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("logger_level %q is not one of trace, debug, info, warn, error", settings.LoggerLevel))
	}

	if settings.Frigate.SaveCleanSnapshots && settings.Snapshots.Path == "" {
		ve.Errors = append(ve.Errors, "snapshots.path is required when save_clean_snapshots is enabled")
	}

	if settings.Telemetry.Enabled && settings.Telemetry.Listen == "" {
		ve.Errors = append(ve.Errors, "telemetry.listen is required when telemetry is enabled")
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateFrigateSettings(s *FrigateSettings) []string {
	var errs []string

	if s.FrigateURL == "" {
		errs = append(errs, "frigate.frigate_url is required")
	} else if err := validateHTTPURL(s.FrigateURL); err != nil {
		errs = append(errs, fmt.Sprintf("frigate.frigate_url: %v", err))
	}

	if s.MQTTServer == "" {
		errs = append(errs, "frigate.mqtt_server is required")
	}
	if s.MQTTPort < 0 || s.MQTTPort > 65535 {
		errs = append(errs, fmt.Sprintf("frigate.mqtt_port %d is out of range", s.MQTTPort))
	}
	if s.MainTopic == "" {
		errs = append(errs, "frigate.main_topic must not be empty")
	}
	if strings.ContainsAny(s.ReturnTopic, "+#") {
		errs = append(errs, "frigate.return_topic must not contain MQTT wildcards")
	}

	for name, v := range map[string]float64{
		"fuzzy_match":             s.FuzzyMatch,
		"min_score":               s.MinScore,
		"license_plate_min_score": s.LicensePlateMinScore,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("frigate.%s must be between 0 and 1, got %v", name, v))
		}
	}

	if s.MaxAttempts < 0 {
		errs = append(errs, "frigate.max_attempts must not be negative")
	}
	if s.QueueSize <= 0 {
		errs = append(errs, "frigate.queue_size must be positive")
	}
	if s.EventTTL <= 0 {
		errs = append(errs, "frigate.event_ttl must be positive")
	}
	if s.ReconnectMaxBackoff < 0 {
		errs = append(errs, "frigate.reconnect_max_backoff must not be negative")
	}

	return errs
}

func validateOCRSettings(s *OCRSettings) []string {
	var errs []string

	switch s.Backend {
	case "easyocr", "codeproject":
		if s.URL == "" {
			errs = append(errs, fmt.Sprintf("ocr_recognizer.url is required for backend %s", s.Backend))
		}
	case "plate_recognizer":
		if s.Token == "" {
			errs = append(errs, "ocr_recognizer.token is required for backend plate_recognizer")
		}
	case "none":
		// recognition disabled, every eligible event fails at the recognize stage
	default:
		errs = append(errs, fmt.Sprintf("ocr_recognizer.backend %q is not supported", s.Backend))
	}

	if s.URL != "" {
		if err := validateHTTPURL(s.URL); err != nil {
			errs = append(errs, fmt.Sprintf("ocr_recognizer.url: %v", err))
		}
	}
	if s.Timeout < 0 {
		errs = append(errs, "ocr_recognizer.timeout must not be negative")
	}
	if s.RateLimit < 0 {
		errs = append(errs, "ocr_recognizer.rate_limit must not be negative")
	}

	return errs
}

func validateDatabaseSettings(s *DatabaseSettings) []string {
	switch s.Type {
	case "sqlite":
		if s.SQLite.Path == "" {
			return []string{"database.sqlite.path is required"}
		}
	case "mysql":
		var errs []string
		if s.MySQL.Host == "" {
			errs = append(errs, "database.mysql.host is required")
		}
		if s.MySQL.Database == "" {
			errs = append(errs, "database.mysql.database is required")
		}
		return errs
	case "postgres":
		var errs []string
		if s.Postgres.Host == "" {
			errs = append(errs, "database.postgres.host is required")
		}
		if s.Postgres.Database == "" {
			errs = append(errs, "database.postgres.database is required")
		}
		switch s.Postgres.SSLMode {
		case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			errs = append(errs, fmt.Sprintf("database.postgres.sslmode %q is not a libpq sslmode", s.Postgres.SSLMode))
		}
		return errs
	default:
		return []string{fmt.Sprintf("database.type %q must be sqlite, mysql or postgres", s.Type)}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}
