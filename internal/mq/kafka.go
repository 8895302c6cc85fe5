package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emlakhub/apiserver/config"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of kafka.Writer the client needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReader is the subset of kafka.Reader the client needs.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaClient publishes to and consumes from Kafka topics. Consumers join
// the configured group; use a distinct group per instance to see every event.
type KafkaClient struct {
	writer    KafkaWriter
	newReader func(topic string) KafkaReader
	backoff   time.Duration
}

// NewKafkaClient constructs a Kafka client from config.
func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka group id is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	newReader := func(topic string) KafkaReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return NewKafkaClientWith(writer, newReader), nil
}

// NewKafkaClientWith builds a client around the given writer and reader factory.
func NewKafkaClientWith(writer KafkaWriter, newReader func(topic string) KafkaReader) *KafkaClient {
	return &KafkaClient{writer: writer, newReader: newReader, backoff: time.Second}
}

// Publish writes a message to the topic named by channel. AttrKey, when set,
// becomes the message key.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := newMessageID()
	headers := []kafka.Header{{Key: "message_id", Value: []byte(messageID)}}
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	msg := kafka.Message{
		Topic:   channel,
		Value:   data,
		Headers: headers,
	}
	if key := attrs[AttrKey]; key != "" {
		msg.Key = []byte(key)
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe reads the topic until ctx is done. A message is committed only
// after the handler succeeds.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := k.newReader(channel)
	defer reader.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.WarnContext(ctx, "kafka fetch failed", "topic", channel, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(k.backoff):
			}
			continue
		}

		message := kafkaToMessage(m)
		if err := handler(ctx, message); err != nil {
			slog.WarnContext(ctx, "kafka handler failed", "topic", channel, "offset", m.Offset, "error", err)
			continue
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			slog.WarnContext(ctx, "kafka commit failed", "topic", channel, "offset", m.Offset, "error", err)
		}
	}
}

// Close closes the writer.
func (k *KafkaClient) Close() error {
	return k.writer.Close()
}

func kafkaToMessage(m kafka.Message) Message {
	message := Message{Data: m.Value}
	if len(m.Headers) > 0 {
		message.Attributes = make(map[string]string, len(m.Headers))
	}
	for _, h := range m.Headers {
		if h.Key == "message_id" {
			message.ID = string(h.Value)
			continue
		}
		message.Attributes[h.Key] = string(h.Value)
	}
	if message.ID == "" {
		message.ID = fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
	}
	return message
}
