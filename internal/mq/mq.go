package mq

import (
	"context"
	"fmt"

	"github.com/emlakhub/apiserver/config"
)

// AttrKey is the attribute used as the partitioning key by brokers that have one.
const AttrKey = "key"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
	name    string
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend, name: fmt.Sprintf("%T", backend)}
}

// Open connects to the broker named by cfg.MQBackend. An empty name selects
// the in-process backend.
func Open(ctx context.Context, cfg config.Config) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.MQBackend {
	case "", "local":
		backend = NewLocal()
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	case "kafka":
		backend, err = NewKafkaClient(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.MQBackend, err)
	}
	m := New(backend)
	if cfg.MQBackend != "" {
		m.name = cfg.MQBackend
	} else {
		m.name = "local"
	}
	return m, nil
}

// Name identifies the backend in logs.
func (m *MQ) Name() string {
	return m.name
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
