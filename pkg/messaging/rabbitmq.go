package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClientClosed is returned once Close has been called.
var ErrClientClosed = errors.New("rabbitmq client closed")

// Config for the trigger queue connection.
type Config struct {
	URL            string
	Heartbeat      time.Duration
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Heartbeat:      10 * time.Second,
		ReconnectDelay: 2 * time.Second,
	}
}

// Handler processes one delivery. A non-nil error rejects the message without
// requeue so a queue declared with DeclareQueueWithDLQ dead-letters it.
type Handler func(ctx context.Context, body []byte) error

// RabbitMQClient carries dispatch triggers. The connection is dialed on first
// use and redialed whenever a caller finds it closed.
type RabbitMQClient struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func NewRabbitMQClient(cfg Config) *RabbitMQClient {
	def := DefaultConfig()
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitMQClient{cfg: cfg, logger: logger.With("broker", redactURL(cfg.URL))}
}

// channel returns the open channel, dialing a new connection or channel when
// the previous one has gone away.
func (r *RabbitMQClient) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClientClosed
	}
	if r.ch != nil && !r.ch.IsClosed() {
		return r.ch, nil
	}

	if r.conn == nil || r.conn.IsClosed() {
		conn, err := amqp.DialConfig(r.cfg.URL, amqp.Config{Heartbeat: r.cfg.Heartbeat})
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq %s: %w", redactURL(r.cfg.URL), err)
		}
		r.conn = conn
		r.logger.Info("connected to rabbitmq")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	r.ch = ch
	return ch, nil
}

// DeclareQueueWithDLQ declares name and its "<name>.dlq" dead-letter queue,
// both durable.
func (r *RabbitMQClient) DeclareQueueWithDLQ(name string) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}

	dlq := name + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dlq, err)
	}
	_, err = ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent JSON message to queue through the default exchange.
func (r *RabbitMQClient) Publish(ctx context.Context, queue string, body []byte) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// ConsumeWithContext hands deliveries from queue to handler one at a time
// until ctx is done. Lost connections are redialed after ReconnectDelay.
func (r *RabbitMQClient) ConsumeWithContext(ctx context.Context, queue string, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := r.consumeOnce(ctx, queue, handler)
		if errors.Is(err, ErrClientClosed) {
			return err
		}
		if err != nil {
			r.logger.Warn("consumer interrupted", "queue", queue, "error", err, "retry_in", r.cfg.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}
}

func (r *RabbitMQClient) consumeOnce(ctx context.Context, queue string, handler Handler) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	// One sweep at a time per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := handler(ctx, d.Body); err != nil {
				r.logger.Error("trigger failed, dead-lettering", "queue", queue, "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}

// redactURL hides the password of an amqp URL for logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
