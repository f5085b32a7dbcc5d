package frigate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
)

const sampleEvent = `{
	"type": "update",
	"before": {"id": "1700000000.5-abc", "camera": "driveway", "label": "car", "top_score": 0.81,
		"start_time": 1700000000.5, "current_zones": [], "current_attributes": []},
	"after": {"id": "1700000000.5-abc", "camera": "driveway", "label": "car", "top_score": 0.84,
		"start_time": 1700000000.5, "current_zones": ["street", "gate"],
		"current_attributes": [
			{"label": "face", "score": 0.5},
			{"label": "license_plate", "score": 0.91, "box": [0.5, 0.5, 0.1, 0.05]}
		]}
}`

func TestParseEventMessage(t *testing.T) {
	t.Parallel()

	msg, err := ParseEventMessage([]byte(sampleEvent))
	require.NoError(t, err)

	assert.Equal(t, TypeUpdate, msg.Type)
	assert.False(t, msg.IsTerminal())
	assert.Equal(t, "1700000000.5-abc", msg.After.ID)
	assert.Equal(t, "driveway", msg.After.Camera)
	assert.Equal(t, []string{"street", "gate"}, msg.After.CurrentZones)
	require.NotNil(t, msg.After.TopScore)
	assert.InDelta(t, 0.84, *msg.After.TopScore, 1e-9)
	assert.False(t, msg.TopScoreUnchanged())

	plate, ok := msg.After.LicensePlate()
	require.True(t, ok)
	assert.InDelta(t, 0.91, plate.Score, 1e-9)

	_, ok = msg.Before.LicensePlate()
	assert.False(t, ok)
}

func TestParseEventMessageRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{"type":`},
		{"no after", `{"type":"new","before":{"id":"x"}}`},
		{"empty id", `{"type":"new","after":{"id":"","camera":"c"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseEventMessage([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestParseEventMessageMissingBefore(t *testing.T) {
	t.Parallel()

	msg, err := ParseEventMessage([]byte(`{"type":"end","after":{"id":"e1","camera":"c"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Before)
	assert.True(t, msg.IsTerminal())
}

func TestTopScoreUnchanged(t *testing.T) {
	t.Parallel()

	score := func(v float64) *float64 { return &v }
	tests := []struct {
		name          string
		before, after *float64
		want          bool
	}{
		{"equal", score(0.8), score(0.8), true},
		{"changed", score(0.8), score(0.9), false},
		{"both missing", nil, nil, true},
		{"before missing", nil, score(0.8), false},
		{"after missing", score(0.8), nil, false},
	}
	for _, tt := range tests {
		msg := &EventMessage{
			Before: &EventSnapshot{TopScore: tt.before},
			After:  &EventSnapshot{TopScore: tt.after},
		}
		assert.Equal(t, tt.want, msg.TopScoreUnchanged(), tt.name)
	}
}

func TestFormattedStartTime(t *testing.T) {
	t.Parallel()

	e := &EventSnapshot{StartTime: 1700000000.75}
	want := time.Unix(1700000000, 0).Local().Format(StartTimeLayout)
	assert.Equal(t, want, e.FormattedStartTime())
	assert.Equal(t, 750*time.Millisecond, time.Duration(e.StartTimeLocal().Nanosecond()))
}
