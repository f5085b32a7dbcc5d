package logger

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig holds lumberjack rotation limits for one log file
type RotationConfig struct {
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// RotationConfigFromFileOutput builds rotation settings for the main log file
func RotationConfigFromFileOutput(fo *FileOutput) RotationConfig {
	if fo == nil {
		return RotationConfig{MaxSize: DefaultMaxSize, MaxBackups: DefaultMaxRotatedFiles, MaxAge: DefaultMaxAge}
	}
	return RotationConfig{
		MaxSize:    fo.MaxSize,
		MaxBackups: fo.MaxRotatedFiles,
		MaxAge:     fo.MaxAge,
		Compress:   fo.Compress,
	}
}

// RotationConfigFromModuleOutput builds rotation settings for a module file,
// falling back to the main file output for unset values
func RotationConfigFromModuleOutput(mo *ModuleOutput, fallback *FileOutput) RotationConfig {
	rc := RotationConfigFromFileOutput(fallback)
	if mo == nil {
		return rc
	}
	if mo.MaxSize > 0 {
		rc.MaxSize = mo.MaxSize
	}
	if mo.MaxRotatedFiles > 0 {
		rc.MaxBackups = mo.MaxRotatedFiles
	}
	if mo.MaxAge > 0 {
		rc.MaxAge = mo.MaxAge
	}
	if mo.Compress != nil {
		rc.Compress = *mo.Compress
	}
	return rc
}

// newRotatingWriter opens a lumberjack writer; the file is created lazily on first write
func newRotatingWriter(path string, rc RotationConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rc.MaxSize,
		MaxBackups: rc.MaxBackups,
		MaxAge:     rc.MaxAge,
		Compress:   rc.Compress,
		LocalTime:  true,
	}
}
