package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/psds-microservice/support-bot/internal/metrics"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes report events to a Kafka topic, best-effort.
type KafkaPublisher struct {
	writer  messageWriter
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewKafkaPublisher returns a publisher that does nothing when brokers or topic
// are empty.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger, m *metrics.Metrics) *KafkaPublisher {
	p := &KafkaPublisher{log: log, metrics: m}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return p
}

// Publish keys messages by report id so one report's events stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if p.writer == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("kafka: marshal event", "event", ev.Type, "error", err)
		return
	}
	msg := kafka.Message{Value: body}
	if ev.ReportID != 0 {
		msg.Key = []byte(strconv.FormatUint(ev.ReportID, 10))
	}
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.Event("kafka", err == nil)
	if err != nil {
		p.log.Warn("kafka: write event", "event", ev.Type, "report_id", ev.ReportID, "error", err)
	}
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
