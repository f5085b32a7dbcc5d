// Package mqtt provides MQTT client functionality and data transfer objects.
package mqtt

import "encoding/json"

// PlateResultDTO is published on {main_topic}/{return_topic} after a recognition.
// Field names are consumed by home automation rules and must stay stable.
type PlateResultDTO struct {
	OCRText        string   `json:"ocr_text"`
	Score          *float64 `json:"score"`
	FrigateEventID string   `json:"frigate_event_id"`
	CameraName     string   `json:"camera_name"`
	StartTime      string   `json:"start_time"` // local time, 2006-01-02 15:04:05

	// Set only when the text matched the watch list.
	*WatchedMatch
}

// WatchedMatch carries the raw OCR text when a watch-list entry replaced it.
// FuzzyScore is null for exact matches.
type WatchedMatch struct {
	FuzzyScore    *float64 `json:"fuzzy_score"`
	OriginalPlate string   `json:"original_plate"`
}

// Marshal encodes the DTO as JSON.
func (d *PlateResultDTO) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
