// Package frigate holds the Frigate NVR event types and the HTTP API client.
package frigate

import (
	"encoding/json"
	"math"
	"time"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
)

// MessageType is the lifecycle phase of an event message.
type MessageType string

const (
	TypeNew    MessageType = "new"
	TypeUpdate MessageType = "update"
	TypeEnd    MessageType = "end"
)

// LicensePlateLabel is the Frigate+ attribute label for plates.
const LicensePlateLabel = "license_plate"

// StartTimeLayout formats EventSnapshot.StartTime for storage and publishing.
const StartTimeLayout = "2006-01-02 15:04:05"

// Attribute is a sub-object detected inside a tracked object.
// Box is normalised [x, y, width, height] when present.
type Attribute struct {
	Label string    `json:"label"`
	Score float64   `json:"score"`
	Box   []float64 `json:"box,omitempty"`
}

// EventSnapshot is one side (before or after) of an event message.
type EventSnapshot struct {
	ID                string      `json:"id"`
	Camera            string      `json:"camera"`
	Label             string      `json:"label"`
	TopScore          *float64    `json:"top_score"`
	StartTime         float64     `json:"start_time"` // unix seconds
	CurrentZones      []string    `json:"current_zones"`
	CurrentAttributes []Attribute `json:"current_attributes"`
}

// EventMessage is the payload published on {main_topic}/events.
type EventMessage struct {
	Type   MessageType    `json:"type"`
	Before *EventSnapshot `json:"before"`
	After  *EventSnapshot `json:"after"`
}

// ParseEventMessage decodes an event message. A message without an after
// snapshot or event id is rejected; a missing before snapshot becomes empty.
func ParseEventMessage(payload []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, errors.New(err).
			Component("frigate").
			Category(errors.CategoryValidation).
			Context("operation", "parse_event").
			Context("payload_size", len(payload)).
			Build()
	}
	if msg.After == nil || msg.After.ID == "" {
		return nil, errors.Newf("event message has no after.id").
			Component("frigate").
			Category(errors.CategoryValidation).
			Context("operation", "parse_event").
			Context("type", string(msg.Type)).
			Build()
	}
	if msg.Before == nil {
		msg.Before = &EventSnapshot{}
	}
	return &msg, nil
}

// IsTerminal reports whether the NVR finished tracking the object.
func (m *EventMessage) IsTerminal() bool {
	return m.Type == TypeEnd
}

// TopScoreUnchanged reports whether before and after carry the same top score.
// Two missing scores are equal.
func (m *EventMessage) TopScoreUnchanged() bool {
	b, a := m.Before.TopScore, m.After.TopScore
	if b == nil || a == nil {
		return b == nil && a == nil
	}
	return *b == *a
}

// StartTimeLocal converts the unix start time to local time.
func (e *EventSnapshot) StartTimeLocal() time.Time {
	sec, frac := math.Modf(e.StartTime)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).Local()
}

// FormattedStartTime is the start time as stored and published.
func (e *EventSnapshot) FormattedStartTime() string {
	return e.StartTimeLocal().Format(StartTimeLayout)
}

// LicensePlate returns the first license plate attribute.
func (e *EventSnapshot) LicensePlate() (Attribute, bool) {
	return firstLicensePlate(e.CurrentAttributes)
}

func firstLicensePlate(attrs []Attribute) (Attribute, bool) {
	for _, a := range attrs {
		if a.Label == LicensePlateLabel {
			return a, true
		}
	}
	return Attribute{}, false
}
