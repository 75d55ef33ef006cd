// Package kafkafeed carries order snapshots over a Kafka topic keyed by
// order id.
//
// Keying by id keeps every snapshot of one order on one partition, so a
// consumer sees them in write order.
package kafkafeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/roach88/pickup/internal/feed"
	"github.com/roach88/pickup/internal/order"
)

// Config names the cluster and topic.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads the snapshot topic into a Hub.
type Consumer struct {
	reader messageReader
	hub    *Hub
	logger *slog.Logger
}

// NewConsumer creates a consumer group reader for cfg.
func NewConsumer(cfg Config, hub *Hub, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return newConsumer(reader, hub, logger)
}

func newConsumer(r messageReader, hub *Hub, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: r, hub: hub, logger: logger}
}

// Run consumes until ctx ends or the reader fails. Undecodable messages are
// logged and skipped. The reader is closed on return.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kafka read: %w", err)
		}
		if err := c.hub.HandleMessage(m); err != nil {
			c.logger.Warn("skipping snapshot message", "error", err)
		}
	}
}

// Publisher writes snapshots keyed by order id.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for cfg.Topic.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Publish writes one whole snapshot.
func (p *Publisher) Publish(ctx context.Context, o order.Order) error {
	msg, err := Message(o)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", o.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Message builds the Kafka message for a snapshot.
func Message(o order.Order) (kafka.Message, error) {
	data, err := feed.Encode(o)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(o.ID),
		Value: data,
		Time:  time.Now(),
	}, nil
}

// ErrNoBrokers is returned by Validate for an empty broker list.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// Validate checks that cfg can be used to build a consumer or publisher.
func (cfg Config) Validate() error {
	if len(cfg.Brokers) == 0 {
		return ErrNoBrokers
	}
	if cfg.Topic == "" {
		return errors.New("kafka: no topic configured")
	}
	return nil
}
