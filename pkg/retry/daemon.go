// Package retry implements the DLQ drain daemon: on a periodic tick it
// republishes dead-lettered messages to their original exchange and routing
// key. It is the sole consumer of the dead-letter queues; the schedule
// daemons and the gateway never touch them.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gamenightbot/gamenight/pkg/bus"
)

// Daemon drains every declared DLQ on startup and then on each tick.
type Daemon struct {
	conn           *bus.Connection
	tick           time.Duration
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// NewDaemon wires the drain loop over a broker connection.
func NewDaemon(conn *bus.Connection, tick, confirmTimeout time.Duration) *Daemon {
	return &Daemon{
		conn:           conn,
		tick:           tick,
		confirmTimeout: confirmTimeout,
		logger:         slog.Default().With("daemon", "retrier"),
	}
}

// Run drains once immediately, then on every tick until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("Retry daemon started", "tick", d.tick, "queues", bus.DLQNames())

	d.drainAll(ctx)

	t := time.NewTicker(d.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			d.drainAll(ctx)
		}
	}
}

func (d *Daemon) drainAll(ctx context.Context) {
	for _, dlq := range bus.DLQNames() {
		if err := d.drainQueue(ctx, dlq); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("DLQ drain failed", "queue", dlq, "error", err)
		}
	}
}

// drainQueue pulls messages one-by-one with basic.get until the queue is
// empty. Each message is acked only after the broker confirms its
// republish; a failed republish nacks the message back onto the DLQ for the
// next tick.
func (d *Daemon) drainQueue(ctx context.Context, dlq string) error {
	ch, err := d.conn.ConfirmChannel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	replayed := 0
	for ctx.Err() == nil {
		msg, ok, err := ch.Get(dlq, false)
		if err != nil {
			return fmt.Errorf("reading from %s: %w", dlq, err)
		}
		if !ok {
			break
		}

		if err := d.replay(ctx, ch, dlq, msg); err != nil {
			_ = msg.Nack(false, true)
			return err
		}
		replayed++
	}

	if replayed > 0 {
		d.logger.Info("DLQ drained", "queue", dlq, "replayed", replayed)
	}
	return nil
}

// replay republishes one dead-lettered message and acks it on confirm.
// Messages dead-lettered by TTL expiry are acked without republishing:
// an expired notification is stale by definition and must stay dropped.
func (d *Daemon) replay(ctx context.Context, ch *amqp.Channel, dlq string, msg amqp.Delivery) error {
	route, ok := deathRoute(msg.Headers)
	if !ok {
		// No x-death header means the message did not arrive through the
		// dead-letter exchange; there is nowhere sane to send it.
		d.logger.Warn("Discarding DLQ message without death header",
			"queue", dlq, "message_id", msg.MessageId)
		return msg.Ack(false)
	}
	if route.Reason == "expired" {
		d.logger.Info("Discarding expired message",
			"queue", dlq, "message_id", msg.MessageId, "key", route.RoutingKey)
		return msg.Ack(false)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, d.confirmTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(
		confirmCtx, route.Exchange, route.RoutingKey, false, false,
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageId,
			Timestamp:    msg.Timestamp,
			Expiration:   msg.Expiration,
			Headers:      msg.Headers,
			Body:         msg.Body,
		})
	if err != nil {
		return fmt.Errorf("republishing to %s/%s: %w", route.Exchange, route.RoutingKey, err)
	}
	acked, err := confirm.WaitContext(confirmCtx)
	if err != nil {
		return fmt.Errorf("waiting for republish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked republish of %s", msg.MessageId)
	}

	d.logger.Debug("Message replayed",
		"queue", dlq, "message_id", msg.MessageId,
		"exchange", route.Exchange, "key", route.RoutingKey)
	return msg.Ack(false)
}
