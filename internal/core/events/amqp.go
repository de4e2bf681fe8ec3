package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	exchangeKind    = "topic"
	expenseBinding  = "expense.#"
	publishTimeout  = 5 * time.Second
	jsonContentType = "application/json"
)

// Message is the wire form of an event on the exchange.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func NewMessage(event Event) (Message, error) {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	return Message{
		ID:        event.EventID(),
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
		Data:      data,
	}, nil
}

// Channel is the part of *amqp091.Channel the forwarder publishes through.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPForwarder republishes bus events on a topic exchange, routed by event type.
type AMQPForwarder struct {
	conn     *amqp091.Connection
	channel  Channel
	exchange string
	logger   *slog.Logger
}

func DialAMQPForwarder(url, exchange string, logger *slog.Logger) (*AMQPForwarder, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	f, err := NewAMQPForwarder(channel, exchange, logger)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

// NewAMQPForwarder declares the exchange on channel.
func NewAMQPForwarder(channel Channel, exchange string, logger *slog.Logger) (*AMQPForwarder, error) {
	err := channel.ExchangeDeclare(
		exchange,     // name
		exchangeKind, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPForwarder{channel: channel, exchange: exchange, logger: logger}, nil
}

// Forward is a bus Handler.
func (f *AMQPForwarder) Forward(ctx context.Context, event Event) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = f.channel.PublishWithContext(
		ctx,
		f.exchange,        // exchange
		event.EventType(), // routing key
		false,             // mandatory
		false,             // immediate
		amqp091.Publishing{
			ContentType:  jsonContentType,
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EventID(),
			Type:         event.EventType(),
			Timestamp:    event.OccurredAt(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}

	f.logger.DebugContext(ctx, "event forwarded",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"exchange", f.exchange)
	return nil
}

// Register subscribes the forwarder to every expense event on bus.
func (f *AMQPForwarder) Register(bus *EventBus) {
	bus.SubscribeAll(ExpenseEventTypes, f.Forward)
	f.logger.Info("amqp forwarder registered", "exchange", f.exchange, "event_types", ExpenseEventTypes)
}

func (f *AMQPForwarder) Close() error {
	if f.channel != nil {
		f.channel.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

// AMQPConsumer reads expense events from a durable queue bound to the exchange.
type AMQPConsumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	logger  *slog.Logger
}

func DialAMQPConsumer(url, exchange, queue string, logger *slog.Logger) (*AMQPConsumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &AMQPConsumer{conn: conn, channel: channel, queue: queue, logger: logger}
	if err := c.setup(exchange); err != nil {
		c.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return c, nil
}

func (c *AMQPConsumer) setup(exchange string) error {
	if err := c.channel.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(c.queue, expenseBinding, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Consume hands each message to handler until ctx ends. Undecodable messages
// are dropped; handler failures are requeued.
func (c *AMQPConsumer) Consume(ctx context.Context, handler func(context.Context, Message) error) error {
	deliveries, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "consuming expense events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			HandleDelivery(ctx, d.Body, d, handler, c.logger)
		}
	}
}

// Acknowledger is the ack side of an AMQP delivery.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// HandleDelivery decodes body and acks, drops or requeues it.
func HandleDelivery(ctx context.Context, body []byte, ack Acknowledger, handler func(context.Context, Message) error, logger *slog.Logger) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil || msg.Type == "" {
		logger.ErrorContext(ctx, "dropping undecodable event message", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "event handler failed; requeueing", "event_type", msg.Type, "event_id", msg.ID, "error", err)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
}

func (c *AMQPConsumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
