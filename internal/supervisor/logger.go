package supervisor

import "github.com/ocrwatch/frigate-ocr/internal/logger"

// GetLogger returns the supervisor module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("supervisor")
}
