// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"frigate.frigate_url", "FRIGATE_URL", validateEnvURL},
		{"frigate.mqtt_server", "MQTT_SERVER", nil},
		{"frigate.mqtt_port", "MQTT_PORT", validateEnvPort},
		{"frigate.mqtt_username", "MQTT_USERNAME", nil},
		{"frigate.mqtt_password", "MQTT_PASSWORD", nil},
		{"frigate.main_topic", "MQTT_MAIN_TOPIC", nil},
		{"frigate.return_topic", "MQTT_RETURN_TOPIC", nil},
		{"frigate.max_attempts", "MAX_ATTEMPTS", validateEnvNonNegativeInt},
		{"frigate.min_score", "MIN_SCORE", validateEnvScore},
		{"frigate.frigate_plus", "FRIGATE_PLUS", validateEnvBool},

		{"ocr_recognizer.backend", "OCR_BACKEND", nil},
		{"ocr_recognizer.url", "OCR_URL", validateEnvURL},
		{"ocr_recognizer.token", "OCR_TOKEN", nil},

		{"logger_level", "LOGGER_LEVEL", validateEnvLogLevel},
		{"database.type", "DATABASE_TYPE", nil},
		{"database.sqlite.path", "DATABASE_PATH", nil},
		{"snapshots.path", "SNAPSHOTS_PATH", nil},
		{"sentry.dsn", "SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvURL(value string) error {
	return validateHTTPURL(strings.TrimSpace(value))
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvScore(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !isValidLogLevel(strings.ToLower(strings.TrimSpace(value))) {
		return fmt.Errorf("must be one of trace, debug, info, warn, error")
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
