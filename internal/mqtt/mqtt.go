// mqtt.go: Package mqtt provides an abstraction for MQTT client functionality.
package mqtt

import (
	"context"
	"time"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// MessageHandler receives messages for a subscribed topic. It runs on the
// paho router goroutine and must not block.
type MessageHandler func(topic string, payload []byte)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler for topic. Subscriptions are remembered and
	// restored after every reconnect.
	Subscribe(topic string, handler MessageHandler) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection and stops any reconnect loop.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte

	// ReconnectDelay is the first backoff step, doubled up to MaxReconnectBackoff.
	ReconnectDelay      time.Duration
	MaxReconnectBackoff time.Duration

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	SubscribeTimeout  time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:      1 * time.Second,
		MaxReconnectBackoff: conf.DefaultReconnectMaxBackoff,
		ConnectTimeout:      30 * time.Second,
		PublishTimeout:      10 * time.Second,
		SubscribeTimeout:    10 * time.Second,
		DisconnectTimeout:   250 * time.Millisecond,
	}
}

// ConfigFromSettings builds the client config from the frigate settings.
func ConfigFromSettings(settings *conf.Settings, now time.Time) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.BrokerURL()
	cfg.ClientID = settings.ClientID(now)
	cfg.Username = settings.Frigate.MQTTUsername
	cfg.Password = settings.Frigate.MQTTPassword
	if settings.Frigate.ReconnectMaxBackoff > 0 {
		cfg.MaxReconnectBackoff = settings.Frigate.ReconnectMaxBackoff
	}
	return cfg
}

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
