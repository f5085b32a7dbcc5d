package datastore

import "github.com/ocrwatch/frigate-ocr/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
