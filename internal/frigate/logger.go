package frigate

import "github.com/ocrwatch/frigate-ocr/internal/logger"

// GetLogger returns the frigate module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("frigate")
}
