package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrStale marks a handler failure caused by state that has legitimately
// moved on (game cancelled, participant already gone, message deleted).
// The consumer acks these instead of dead-lettering: retrying cannot help.
var ErrStale = errors.New("event refers to stale state")

// Handler processes one envelope. Returning nil acks the message; returning
// ErrStale (wrapped or not) acks it too; anything else nacks without
// requeue, sending the message to the queue's DLQ.
type Handler func(ctx context.Context, env Envelope) error

// Consumer runs a manual-ack consume loop over one queue. Auto-ack is
// deliberately unsupported: every delivery ends in an explicit Ack or a
// Nack(requeue=false) so failures land in the DLQ instead of vanishing.
type Consumer struct {
	conn    *Connection
	queue   string
	handler Handler
	logger  *slog.Logger
}

// NewConsumer creates a consumer for queue dispatching to handler.
func NewConsumer(conn *Connection, queue string, handler Handler) *Consumer {
	return &Consumer{
		conn:    conn,
		queue:   queue,
		handler: handler,
		logger:  slog.Default().With("component", "bus-consumer", "queue", queue),
	}
}

// Run consumes until ctx is cancelled, reconnecting with backoff when the
// channel drops. Each message is one independent unit of work.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := c.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Consume loop error, reconnecting", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second
	}
}

// consumeOnce opens a channel and processes deliveries until it closes.
func (c *Consumer) consumeOnce(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// One unacked message at a time keeps handler ordering simple and
	// bounds redelivery after a crash to a single message.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("setting QoS: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("starting consume on %s: %w", c.queue, err)
	}

	c.logger.Info("Consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, d)
		}
	}
}

// dispatch decodes and handles one delivery, then explicitly acks or nacks.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		// Malformed body can never succeed; dead-letter it for inspection.
		c.logger.Error("Undecodable message, dead-lettering", "error", err, "message_id", d.MessageId)
		_ = d.Nack(false, false)
		return
	}

	err := c.handler(ctx, env)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrStale):
		c.logger.Info("Stale event acked", "event_type", env.EventType, "event_id", env.EventID, "reason", err)
		_ = d.Ack(false)
	default:
		c.logger.Error("Handler failed, dead-lettering",
			"event_type", env.EventType, "event_id", env.EventID, "error", err)
		_ = d.Nack(false, false)
	}
}
