package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPPublisher publishes events as JSON messages to a durable RabbitMQ queue
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPPublisher dials url and declares queue
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	log.Info().Str("queue", queue).Msg("AMQP publisher ready")
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish sends e to the queue as a persistent JSON message
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.Time,
		Type:         e.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close AMQP channel")
	}
	return p.conn.Close()
}
