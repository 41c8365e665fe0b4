package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// Message is one record handed to the broker.
type Message = kafka.Message

// Header is a record header.
type Header = kafka.Header

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Producer writes records to a single topic.
type Producer struct {
	writer  writer
	brokers []string
	topic   string
	timeout time.Duration
	dial    dialFunc
}

// NewProducer builds a producer for cfg.OrderTopic. Brokers are dialed lazily;
// call Ping to verify reachability.
func NewProducer(cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.OrderTopic == "" {
		return nil, errors.New("kafka topic is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.OrderTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: false,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
	if logg != nil {
		logg.Info(logg.WithFields(context.Background(), map[string]any{
			"brokers": cfg.Brokers,
			"topic":   cfg.OrderTopic,
		}), "kafka producer configured")
	}
	dialer := &net.Dialer{Timeout: timeout}
	return &Producer{
		writer:  w,
		brokers: cfg.Brokers,
		topic:   cfg.OrderTopic,
		timeout: timeout,
		dial:    dialer.DialContext,
	}, nil
}

// Topic returns the destination topic.
func (p *Producer) Topic() string {
	return p.topic
}

// Publish writes msgs synchronously. Messages sharing a key land on the same
// partition, preserving per-aggregate order.
func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka producer not initialized")
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	return nil
}

// Ping succeeds when any configured broker accepts a TCP connection.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil || p.dial == nil {
		return errors.New("kafka producer not initialized")
	}
	var errs error
	for _, broker := range p.brokers {
		conn, err := p.dial(ctx, "tcp", broker)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka broker reachable: %w", errs)
}

// Close flushes pending writes and releases connections.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
