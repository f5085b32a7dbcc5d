package mqtt

import (
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

func newTestClient(t *testing.T) (*client, *metrics.MQTTMetrics) {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1", ClientID: "test"}, m)
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)
	return c.(*client), m
}

func TestBackoffDoublesToCap(t *testing.T) {
	t.Parallel()

	b := newBackoff(time.Second, 60*time.Second)
	var got []time.Duration
	for range 8 {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
	}, got)

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffNormalisesBounds(t *testing.T) {
	t.Parallel()

	b := newBackoff(0, 0)
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next(), "cap below initial clamps to initial")
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{Frigate: conf.FrigateSettings{
		MQTTServer:          "broker.local",
		MQTTPort:            1884,
		MQTTUsername:        "frigate",
		MQTTPassword:        "secret",
		ClientIDPrefix:      conf.DefaultClientIDPrefix,
		ReconnectMaxBackoff: 30 * time.Second,
	}}

	cfg := ConfigFromSettings(settings, time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local))
	assert.Equal(t, "tcp://broker.local:1884", cfg.Broker)
	assert.Equal(t, "FrigateOCRRecognizer20240309140507", cfg.ClientID)
	assert.Equal(t, "frigate", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 30*time.Second, cfg.MaxReconnectBackoff)
	assert.Equal(t, time.Second, cfg.ReconnectDelay)
}

func TestNewClientRequiresBroker(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestPublishWhileDisconnected(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	err := c.Publish(t.Context(), "frigate/plate_recognizer", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.False(t, c.IsConnected())
}

func TestSubscribeRecordsWhileDisconnected(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	require.NoError(t, c.Subscribe("frigate/events", func(string, []byte) {}))
	require.Error(t, c.Subscribe("frigate/events", nil))

	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	assert.Contains(t, c.subscriptions, "frigate/events")
}

func TestConnectUnresolvableHost(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://unresolvable.invalid:1883", ClientID: "test"}, nil)
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)

	err = c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ paho.Message = fakeMessage{}

func TestWrapHandlerCountsMessages(t *testing.T) {
	t.Parallel()
	c, m := newTestClient(t)

	var gotTopic string
	var gotPayload []byte
	h := c.wrapHandler(func(topic string, payload []byte) {
		gotTopic = topic
		gotPayload = payload
	})
	h(nil, fakeMessage{topic: "frigate/events", payload: []byte(`{"type":"new"}`)})

	assert.Equal(t, "frigate/events", gotTopic)
	assert.JSONEq(t, `{"type":"new"}`, string(gotPayload))
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.MessagesReceived), 0)
}

func TestDisconnectStopsReconnect(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	c.Disconnect()
	c.Disconnect() // idempotent
	c.startReconnect()
	assert.False(t, c.reconnecting.Load())
}

func TestPlateResultDTO(t *testing.T) {
	t.Parallel()

	score := 0.91
	plain := &PlateResultDTO{
		OCRText:        "ABC123",
		Score:          &score,
		FrigateEventID: "1700000000.1-abc",
		CameraName:     "driveway",
		StartTime:      "2024-03-09 14:05:07",
	}
	data, err := plain.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ocr_text":"ABC123","score":0.91,"frigate_event_id":"1700000000.1-abc",
		"camera_name":"driveway","start_time":"2024-03-09 14:05:07"}`, string(data))

	fuzzy := 0.857
	watched := &PlateResultDTO{
		OCRText:        "ABC1234",
		FrigateEventID: "evt",
		CameraName:     "gate",
		StartTime:      "2024-03-09 14:05:07",
		WatchedMatch:   &WatchedMatch{FuzzyScore: &fuzzy, OriginalPlate: "ABC1Z34"},
	}
	data, err = watched.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ocr_text":"ABC1234","score":null,"frigate_event_id":"evt","camera_name":"gate",
		"start_time":"2024-03-09 14:05:07","fuzzy_score":0.857,"original_plate":"ABC1Z34"}`, string(data))

	exact := &PlateResultDTO{OCRText: "ABC123", WatchedMatch: &WatchedMatch{OriginalPlate: "ABC123"}}
	data, err = exact.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fuzzy_score":null`)
}
