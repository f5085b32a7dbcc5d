// Package conf provides configuration management for frigate-ocr.
package conf

import "github.com/ocrwatch/frigate-ocr/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// It is fetched from the global logger on each call since the central logger
// is installed only after the configuration has been read.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
