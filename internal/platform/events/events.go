// Package events publishes application lifecycle events to a Kafka-compatible
// broker. Publishing happens after the application is committed and never
// fails the request that triggered it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/labdesk/labdesk/internal/platform/metrics"
)

const (
	TypeApplicationCreated       = "application.created"
	TypeApplicationUpdated       = "application.updated"
	TypeApplicationStatusChanged = "application.status_changed"
)

// Event is the JSON document written to the topic. The record key is the
// application id so every change to one application lands on one partition.
type Event struct {
	Type          string    `json:"type"`
	ApplicationID string    `json:"applicationId"`
	DealerID      string    `json:"dealerId"`
	Status        string    `json:"status"`
	TotalPrice    int64     `json:"totalPrice"`
	TestCount     int       `json:"testCount"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event)
	Close()
}

// NopPublisher drops events. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close()                         {}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Linger  time.Duration
}

type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger, m *metrics.Metrics) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	linger := cfg.Linger
	if linger <= 0 {
		linger = 20 * time.Millisecond
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(linger),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: cfg.Topic, logger: logger, metrics: m}, nil
}

// Publish hands the event to the client buffer and returns. Delivery errors
// are logged from the produce callback.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) {
	record, err := newRecord(ctx, p.topic, evt)
	if err != nil {
		p.logger.Error().Err(err).Str("type", evt.Type).Msg("encode event")
		p.metrics.EventPublished(evt.Type, err)
		return
	}
	// The request context ends before the broker acknowledges.
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		p.metrics.EventPublished(evt.Type, err)
		if err != nil {
			p.logger.Error().Err(err).
				Str("type", evt.Type).
				Str("application_id", evt.ApplicationID).
				Msg("publish event")
			return
		}
		p.logger.Debug().
			Str("topic", r.Topic).
			Int32("partition", r.Partition).
			Int64("offset", r.Offset).
			Msg("event published")
	})
}

func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("flush events on close")
	}
	p.client.Close()
}

func newRecord(ctx context.Context, topic string, evt Event) (*kgo.Record, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(evt.ApplicationID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(evt.Type)},
		},
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		record.Headers = append(record.Headers, kgo.RecordHeader{
			Key:   "traceparent",
			Value: []byte(fmt.Sprintf("00-%s-%s-%02x", sc.TraceID(), sc.SpanID(), byte(sc.TraceFlags()))),
		})
	}
	return record, nil
}
