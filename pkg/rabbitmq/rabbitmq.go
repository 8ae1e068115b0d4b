package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"duka/internal/models"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DefaultQueue carries order lifecycle events.
const DefaultQueue = "order_events"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *zap.Logger
	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// NewClient connects to RabbitMQ, opens a channel and declares the event queue.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := declareQueue(ch, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", cfg.Queue, err)
	}

	logger.Info("RabbitMQ client connected", zap.String("queue", cfg.Queue))
	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
		logger:  logger,
	}, nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PublishOrderEvent publishes a persistent JSON order event to the queue.
func (c *Client) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	c.mu.Lock()
	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			MessageId:    event.OrderID + ":" + event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	c.logger.Debug("Published order event", zap.String("event", event.Type), zap.String("order_id", event.OrderID))
	return nil
}

// EventHandler processes one decoded order event.
type EventHandler func(ctx context.Context, event models.OrderEvent) error

// ConsumeOrderEvents delivers events to handler until ctx is done or the
// channel closes. Handler errors requeue the message once; undecodable
// messages are dropped.
func (c *Client) ConsumeOrderEvents(ctx context.Context, handler EventHandler) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("RabbitMQ delivery channel closed")
					return
				}
				c.handle(ctx, msg, handler)
			}
		}
	}()
	return nil
}

func (c *Client) handle(ctx context.Context, msg amqp.Delivery, handler EventHandler) {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error("Dropping undecodable order event", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
		if err := msg.Nack(false, false); err != nil {
			c.logger.Error("Error nacking message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
		}
		return
	}

	if err := handler(ctx, event); err != nil {
		c.logger.Error("Error processing order event",
			zap.String("event", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
		// Requeue only first deliveries to avoid poison-message loops.
		if err := msg.Nack(false, !msg.Redelivered); err != nil {
			c.logger.Error("Error nacking message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Error acking message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
	}
}

// NotificationHandler logs order events in place of customer email/SMS delivery.
func NotificationHandler(logger *zap.Logger) EventHandler {
	return func(_ context.Context, event models.OrderEvent) error {
		if event.OrderID == "" {
			return fmt.Errorf("order event %q has no order id", event.Type)
		}
		logger.Info("Order notification",
			zap.String("event", event.Type),
			zap.String("order_id", event.OrderID),
			zap.String("user_id", event.UserID),
			zap.Int64("amount", event.Amount),
			zap.String("payment_method", event.PaymentMethod),
			zap.String("status", event.Status))
		return nil
	}
}
