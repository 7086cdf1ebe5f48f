package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the interface the daemons and services publish through.
// Implementations must not return nil before the broker has confirmed the
// message: the schedule daemons delete their rows on a nil return.
type Publisher interface {
	// Publish sends an envelope to the events exchange under key and waits
	// for the broker confirm. A zero ttl means no per-message expiration.
	Publish(ctx context.Context, key string, env Envelope, ttl time.Duration) error
}

// ConfirmingPublisher publishes with publisher confirms on a dedicated
// channel. Safe for concurrent use; the channel is re-opened on failure.
type ConfirmingPublisher struct {
	conn           *Connection
	confirmTimeout time.Duration
	logger         *slog.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewPublisher creates a confirming publisher. confirmTimeout bounds the
// wait for each broker ack.
func NewPublisher(conn *Connection, confirmTimeout time.Duration) *ConfirmingPublisher {
	return &ConfirmingPublisher{
		conn:           conn,
		confirmTimeout: confirmTimeout,
		logger:         slog.Default().With("component", "bus-publisher"),
	}
}

// Publish implements Publisher.
func (p *ConfirmingPublisher) Publish(ctx context.Context, key string, env Envelope, ttl time.Duration) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID,
		Timestamp:    env.Timestamp,
		Body:         body,
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(confirmCtx, ExchangeEvents, key, false, false, msg)
	if err != nil {
		p.dropChannel()
		return fmt.Errorf("publishing %s: %w", key, err)
	}

	acked, err := confirm.WaitContext(confirmCtx)
	if err != nil {
		p.dropChannel()
		return fmt.Errorf("waiting for confirm of %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked publish of %s (event %s)", key, env.EventID)
	}

	p.logger.Debug("Event published", "key", key, "event_id", env.EventID, "ttl_ms", ttl.Milliseconds())
	return nil
}

func (p *ConfirmingPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.ConfirmChannel()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *ConfirmingPublisher) dropChannel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

// Close releases the publisher channel.
func (p *ConfirmingPublisher) Close() {
	p.dropChannel()
}
