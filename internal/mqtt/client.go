// client.go: paho backed implementation of Client.
package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

// client implements the Client interface.
type client struct {
	config         Config
	internalClient paho.Client
	mu             sync.Mutex
	metrics        *metrics.MQTTMetrics

	subsMu        sync.RWMutex
	subscriptions map[string]MessageHandler

	reconnecting  atomic.Bool
	reconnectStop chan struct{}
	stopOnce      sync.Once
}

// NewClient creates a new MQTT client. A nil m records into an unexported registry.
func NewClient(cfg Config, m *metrics.MQTTMetrics) (Client, error) {
	if cfg.Broker == "" {
		return nil, errors.Newf("mqtt broker is not configured").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if m == nil {
		var err error
		if m, err = metrics.NewMQTTMetrics(prometheus.NewRegistry()); err != nil {
			return nil, err
		}
	}
	defaults := DefaultConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.MaxReconnectBackoff <= 0 {
		cfg.MaxReconnectBackoff = defaults.MaxReconnectBackoff
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = defaults.SubscribeTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = defaults.DisconnectTimeout
	}

	return &client{
		config:        cfg,
		metrics:       m,
		subscriptions: make(map[string]MessageHandler),
		reconnectStop: make(chan struct{}),
	}, nil
}

// Connect resolves the broker host and then connects. paho's own reconnect
// is disabled; connection loss is handled by reconnectWithBackoff.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return connectionError(err, c.config.Broker, "parse_broker_url")
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return connectionError(fmt.Errorf("failed to resolve hostname %s: %w", host, err), c.config.Broker, "resolve_broker")
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOrderMatters(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	}
	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if err := waitToken(ctx, token, c.config.ConnectTimeout); err != nil {
		c.metrics.IncrementErrors()
		return connectionError(err, c.config.Broker, "connect")
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

// Publish sends payload with QoS from the config, not retained.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	timer := c.metrics.StartPublishTimer()
	defer timer.ObserveDuration()

	token := internal.Publish(topic, c.config.QoS, false, payload)
	if err := waitToken(ctx, token, c.config.PublishTimeout); err != nil {
		c.metrics.IncrementErrors()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Context("payload_size", len(payload)).
			Build()
	}

	c.metrics.IncrementMessagesDelivered()
	c.metrics.ObserveMessageSize(float64(len(payload)))
	GetLogger().Debug("published", logger.String("topic", topic), logger.Int("size", len(payload)))
	return nil
}

// Subscribe remembers the subscription and applies it now when connected.
func (c *client) Subscribe(topic string, handler MessageHandler) error {
	if handler == nil {
		return errors.Newf("nil handler for topic %s", topic).
			Component("mqtt").
			Category(errors.CategoryValidation).
			Build()
	}

	c.subsMu.Lock()
	c.subscriptions[topic] = handler
	c.subsMu.Unlock()

	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return nil
	}
	return c.subscribe(internal, topic, handler)
}

func (c *client) subscribe(internal paho.Client, topic string, handler MessageHandler) error {
	token := internal.Subscribe(topic, c.config.QoS, c.wrapHandler(handler))
	if err := waitToken(context.Background(), token, c.config.SubscribeTimeout); err != nil {
		c.metrics.IncrementErrors()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTSubscribe).
			Context("topic", topic).
			Build()
	}
	GetLogger().Info("subscribed", logger.String("topic", topic))
	return nil
}

func (c *client) wrapHandler(handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		c.metrics.IncrementMessagesReceived()
		c.metrics.ObserveMessageSize(float64(len(msg.Payload())))
		handler(msg.Topic(), msg.Payload())
	}
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.stopOnce.Do(func() { close(c.reconnectStop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	}
	c.metrics.UpdateConnectionStatus(false)
}

// onConnect runs on its own goroutine, so waiting on subscribe tokens is safe.
func (c *client) onConnect(internal paho.Client) {
	GetLogger().Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.metrics.UpdateConnectionStatus(true)

	c.subsMu.RLock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subs[topic] = handler
	}
	c.subsMu.RUnlock()

	for topic, handler := range subs {
		if err := c.subscribe(internal, topic, handler); err != nil {
			GetLogger().Error("resubscribe failed", logger.String("topic", topic), logger.Error(err))
		}
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	GetLogger().Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
	c.startReconnect()
}

// startReconnect launches at most one reconnect loop.
func (c *client) startReconnect() {
	select {
	case <-c.reconnectStop:
		return
	default:
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.reconnecting.Store(false)
		c.reconnectWithBackoff()
	}()
}

func (c *client) reconnectWithBackoff() {
	b := newBackoff(c.config.ReconnectDelay, c.config.MaxReconnectBackoff)

	for {
		delay := b.Next()
		GetLogger().Info("reconnecting to MQTT broker", logger.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-c.reconnectStop:
			return
		}

		c.metrics.IncrementReconnectAttempts()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			GetLogger().Info("reconnected to MQTT broker")
			return
		}
		GetLogger().Warn("failed to reconnect to MQTT broker", logger.Error(err))
	}
}

// waitToken waits for a paho token, honouring both ctx and timeout.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.Newf("mqtt operation timed out after %v", timeout).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func connectionError(err error, broker, operation string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Context("operation", operation).
		NetworkContext(broker, 0).
		Build()
}
