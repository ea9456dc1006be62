package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/meter-reading-service/internal/reading"
	"go.uber.org/zap"
)

// Routes maps reading events to routing keys
type Routes struct {
	Created   string
	Confirmed string
}

// Publisher handles reading event publishing to RabbitMQ
type Publisher struct {
	mu       sync.Mutex
	channel  channel
	exchange string
	routes   Routes
	logger   *zap.Logger
}

// channel is the subset of *amqp.Channel the publisher needs
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// NewPublisher creates a new RabbitMQ publisher and declares its exchange
func NewPublisher(conn *Connection, exchange string, routes Routes, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return newPublisher(ch, exchange, routes, logger), nil
}

func newPublisher(ch channel, exchange string, routes Routes, logger *zap.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		routes:   routes,
		logger:   logger,
	}
}

// ReadingEvent is the message body published for reading lifecycle events
type ReadingEvent struct {
	Event           string `json:"event"`
	MeasureUUID     string `json:"measure_uuid"`
	CustomerCode    string `json:"customer_code"`
	MeasureType     string `json:"measure_type"`
	MeasureDatetime string `json:"measure_datetime"`
	MeasureValue    int64  `json:"measure_value"`
	HasConfirmed    bool   `json:"has_confirmed"`
	ImageURL        string `json:"image_url"`
	SuspectReason   string `json:"suspect_reason,omitempty"`
}

// NewReadingEvent builds the message body for a lifecycle event
func NewReadingEvent(e reading.Event) ReadingEvent {
	return ReadingEvent{
		Event:           string(e.Kind),
		MeasureUUID:     e.Reading.ID.String(),
		CustomerCode:    e.Reading.CustomerCode,
		MeasureType:     string(e.Reading.Category),
		MeasureDatetime: e.Reading.MeasuredAt.UTC().Format(time.RFC3339Nano),
		MeasureValue:    e.Reading.Value,
		HasConfirmed:    e.Reading.Confirmed,
		ImageURL:        e.Reading.ImageURL,
		SuspectReason:   e.SuspectReason,
	}
}

// Notify publishes a lifecycle event under the routing key of its kind
func (p *Publisher) Notify(ctx context.Context, e reading.Event) error {
	routingKey := p.routes.Created
	if e.Kind == reading.EventConfirmed {
		routingKey = p.routes.Confirmed
	}
	return p.PublishReadingEvent(ctx, NewReadingEvent(e), routingKey)
}

// PublishReadingEvent publishes a reading event
func (p *Publisher) PublishReadingEvent(ctx context.Context, event ReadingEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         event.Event,
		},
	)
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published reading event",
		zap.String("routing_key", routingKey),
		zap.String("event", event.Event),
		zap.String("measure_uuid", event.MeasureUUID),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// NoopPublisher drops events. It is used when no broker is configured.
type NoopPublisher struct{}

// Notify does nothing
func (NoopPublisher) Notify(context.Context, reading.Event) error { return nil }
