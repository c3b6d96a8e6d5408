// Package mq publishes and consumes change events over a pluggable broker.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/types"
)

const (
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Event decodes the message body as a change event.
func (m Message) Event() (types.Event, error) {
	var event types.Event
	if err := json.Unmarshal(m.Data, &event); err != nil {
		return types.Event{}, fmt.Errorf("decode event %s: %w", m.ID, err)
	}
	return event, nil
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
// Every subscriber of a channel receives every message published on it.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New wraps backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Connect builds the backend named by cfg.Backend. It returns nil, nil when
// no backend is configured.
func Connect(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case BackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(client), nil
	case BackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends data on channel and returns the broker message id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe blocks until ctx is done, passing each message on channel to handler.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close releases the backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
