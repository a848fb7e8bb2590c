package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"

	"threadline/pkg/logger"
)

const (
	ExchangeName       = "threadline.events"
	OrderEventsQueue   = "order_events"
	NotificationsQueue = "notifications"
)

// binding routes a topic pattern on the exchange into a durable queue.
type binding struct {
	Queue string
	Key   string
}

var topology = []binding{
	{Queue: OrderEventsQueue, Key: "order.#"},
	{Queue: NotificationsQueue, Key: "notification.#"},
}

// Client holds the RabbitMQ connection and the channel used for publishing.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
	logger  *zap.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL    string
	Logger *zap.Logger
}

// NewClient connects to RabbitMQ and declares the events exchange with its queues.
func NewClient(cfg Config) (*Client, error) {
	log := logger.OrNop(cfg.Logger)
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.Info("RabbitMQ client connected", zap.String("exchange", ExchangeName))
	return &Client{conn: conn, channel: ch, logger: log}, nil
}

func declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}
	for _, b := range topology {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.Key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", b.Queue, b.Key, err)
		}
	}
	return nil
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

// Publish sends payload as a persistent JSON message on the events exchange.
func (c *Client) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := encode(payload, time.Now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := c.channel.Publish(ExchangeName, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	c.logger.Debug("event published", zap.String("routing_key", routingKey), zap.Int("bytes", len(msg.Body)))
	return nil
}

func encode(payload interface{}, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Body:         body,
	}, nil
}

// ConsumeNotifications hands email and SMS requests to handler.
func (c *Client) ConsumeNotifications(handler func(msg amqp.Delivery) error) error {
	return c.consume(NotificationsQueue, handler)
}

// ConsumeOrderEvents hands order lifecycle events to handler.
func (c *Client) ConsumeOrderEvents(handler func(msg amqp.Delivery) error) error {
	return c.consume(OrderEventsQueue, handler)
}

// consume reads queue on its own channel until the connection closes. Deliveries are acked when
// handler returns nil and requeued otherwise.
func (c *Client) consume(queue string, handler func(msg amqp.Delivery) error) error {
	if c.conn == nil {
		return fmt.Errorf("RabbitMQ connection is not available for consumption")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}

	c.logger.Info("consuming queue", zap.String("queue", queue))
	go func() {
		defer ch.Close()
		for msg := range msgs {
			settle(c.logger, queue, msg, handler(msg))
		}
		c.logger.Info("consumer stopped", zap.String("queue", queue))
	}()
	return nil
}

// acknowledger is the part of amqp.Delivery settle needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(log *zap.Logger, queue string, msg acknowledger, handlerErr error) {
	if handlerErr != nil {
		log.Warn("message processing failed, requeueing", zap.String("queue", queue), zap.Error(handlerErr))
		if err := msg.Nack(false, true); err != nil {
			log.Error("failed to nack message", zap.String("queue", queue), zap.Error(err))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("failed to ack message", zap.String("queue", queue), zap.Error(err))
	}
}
