package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/psds-microservice/support-bot/internal/metrics"
)

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher puts events on a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	ch      amqpChannel
	queue   string
	log     *slog.Logger
	metrics *metrics.Metrics
}

// DialAMQP connects and declares the queue.
func DialAMQP(uri, queue string, log *slog.Logger, m *metrics.Metrics) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue, log: log, metrics: m}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("amqp: marshal event", "event", ev.Type, "error", err)
		return
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Body:         body,
		Timestamp:    time.Now(),
	})
	p.metrics.Event("amqp", err == nil)
	if err != nil {
		p.log.Warn("amqp: publish event", "event", ev.Type, "report_id", ev.ReportID, "error", err)
	}
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
