package supervisor

import (
	"context"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/mqtt"
)

// IngestService subscribes handler to the events topic and keeps the broker
// connection for the lifetime of the tree. Lost connections are recovered by
// the client itself; a failed initial connect is returned so suture retries.
type IngestService struct {
	client  mqtt.Client
	topic   string
	handler mqtt.MessageHandler
}

// NewIngestService creates the MQTT ingest service.
func NewIngestService(client mqtt.Client, topic string, handler mqtt.MessageHandler) *IngestService {
	return &IngestService{client: client, topic: topic, handler: handler}
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	if err := s.client.Subscribe(s.topic, s.handler); err != nil {
		return err
	}

	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.New(err).
				Component("supervisor").
				Category(errors.CategoryMQTTConnection).
				Context("service", s.String()).
				Build()
		}
	}
	GetLogger().Info("listening for events", logger.String("topic", s.topic))

	<-ctx.Done()
	s.client.Disconnect()
	GetLogger().Info("disconnected from MQTT broker")
	return ctx.Err()
}

func (s *IngestService) String() string { return "mqtt-ingest" }
