// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation label values shared by the datastore and OCR recorders.
const (
	// OpPlateExists is the dedup lookup before OCR.
	OpPlateExists = "plate_exists"
	// OpPlateSave is the insert of a recognised plate.
	OpPlateSave = "plate_save"
	// OpPlateList is the recent plates query used by the CLI and HTTP API.
	OpPlateList = "plate_list"
	// OpRecognize is a single OCR backend call.
	OpRecognize = "recognize"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0
	// BucketStart1KB is the starting bucket for 1KB histograms.
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the telemetry server.
const ShutdownTimeout = 5 * time.Second
