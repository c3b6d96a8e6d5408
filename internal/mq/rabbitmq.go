package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tasktrack/apiserver/config"
)

// publishChannel is the subset of *amqp.Channel used for publishing.
type publishChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// RabbitMQClient publishes to fanout exchanges named after the channel.
// Each subscription binds its own exclusive queue, so every consumer sees
// every event. A closed publishing channel or connection is reopened on the
// next publish.
type RabbitMQClient struct {
	url           string
	durable       bool
	prefetchCount int

	connMu sync.Mutex
	conn   *amqp.Connection

	mu          sync.Mutex
	openChannel func() (publishChannel, error)
	channel     publishChannel
	closed      chan *amqp.Error
	declared    map[string]bool
}

// NewRabbitMQClient dials cfg.URL and opens the publishing channel.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	r := &RabbitMQClient{
		url:           cfg.URL,
		conn:          conn,
		durable:       cfg.Durable,
		prefetchCount: cfg.PrefetchCount,
		declared:      make(map[string]bool),
	}
	r.openChannel = r.dialChannel

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.publisher(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return r, nil
}

// Publish sends data to the fanout exchange for channel. A publish that fails
// because the channel closed underneath it is retried once on a fresh channel.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	messageID := uuid.NewString()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Type:         attrs["type"],
		Headers:      attributesToHeaders(attrs),
		Body:         data,
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var ch publishChannel
		if ch, err = r.publisher(); err != nil {
			return "", err
		}
		if err = r.declareExchange(ch, channel); err != nil {
			r.discardChannel()
			continue
		}
		if err = ch.PublishWithContext(ctx, channel, "", false, false, msg); err == nil {
			return messageID, nil
		}
		if !errors.Is(err, amqp.ErrClosed) {
			break
		}
		r.discardChannel()
	}
	return "", fmt.Errorf("publish to %s: %w", channel, err)
}

// Subscribe blocks, delivering messages to handler until ctx is done.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	// Consumers get a dedicated channel so prefetch does not throttle publishing.
	conn, err := r.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return err
		}
	}
	if err := ch.ExchangeDeclare(channel, amqp.ExchangeFanout, r.durable, false, false, false, nil); err != nil {
		return err
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue.Name, "", channel, false, nil); err != nil {
		return err
	}

	consumerTag := "tasktrack-" + uuid.NewString()
	deliveries, err := ch.Consume(queue.Name, consumerTag, false, true, false, false, nil)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Cancel(consumerTag, false) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publishing channel and the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	if r.channel != nil {
		_ = r.channel.Close()
		r.channel = nil
	}
	r.mu.Unlock()

	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// connection returns the live connection, redialing when it has closed.
func (r *RabbitMQClient) connection() (*amqp.Connection, error) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn, nil
	}
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return nil, fmt.Errorf("redial rabbitmq: %w", err)
	}
	r.conn = conn
	return conn, nil
}

func (r *RabbitMQClient) dialChannel() (publishChannel, error) {
	conn, err := r.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// publisher returns the open publishing channel, replacing it once the broker
// has closed it. Must be called with r.mu held.
func (r *RabbitMQClient) publisher() (publishChannel, error) {
	if r.channel != nil {
		select {
		case <-r.closed:
			r.discardChannel()
		default:
			return r.channel, nil
		}
	}

	ch, err := r.openChannel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	r.channel = ch
	r.closed = ch.NotifyClose(make(chan *amqp.Error, 1))
	r.declared = make(map[string]bool)
	return ch, nil
}

// discardChannel drops the current channel. Must be called with r.mu held.
func (r *RabbitMQClient) discardChannel() {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	r.channel = nil
	r.closed = nil
}

// declareExchange must be called with r.mu held.
func (r *RabbitMQClient) declareExchange(ch publishChannel, name string) error {
	if r.declared[name] {
		return nil
	}
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, r.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func attributesToHeaders(attrs map[string]string) amqp.Table {
	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	return headers
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
