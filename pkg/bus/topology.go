package bus

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// queueBinding declares one primary queue, its bindings, and its dedicated
// dead-letter queue.
type queueBinding struct {
	queue    string
	dlq      string
	patterns []string
}

// topology is the full broker layout. A NACKed or TTL-expired message on a
// primary queue lands in that queue's own DLQ — never a shared bucket, so
// the retry daemon can republish per-queue without cross-talk.
var topology = []queueBinding{
	{
		queue:    QueueBotEvents,
		dlq:      QueueBotEventsDLQ,
		patterns: []string{"game.*", "participant.*", "notification.*"},
	},
}

// DLQNames returns the declared dead-letter queue names, for the retry
// daemon's drain loop.
func DLQNames() []string {
	names := make([]string, 0, len(topology))
	for _, b := range topology {
		names = append(names, b.dlq)
	}
	return names
}

// DeclareTopology declares the exchanges, queues, DLQs, and bindings.
// Declarations are idempotent; every service calls this on startup and the
// init container calls it before anything else runs.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeEvents, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", ExchangeEvents, err)
	}
	if err := ch.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", ExchangeDeadLetter, err)
	}

	for _, b := range topology {
		_, err := ch.QueueDeclare(b.queue, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    ExchangeDeadLetter,
			"x-dead-letter-routing-key": b.dlq,
		})
		if err != nil {
			return fmt.Errorf("declaring queue %s: %w", b.queue, err)
		}

		for _, pattern := range b.patterns {
			if err := ch.QueueBind(b.queue, pattern, ExchangeEvents, false, nil); err != nil {
				return fmt.Errorf("binding %s to %s: %w", b.queue, pattern, err)
			}
		}

		if _, err := ch.QueueDeclare(b.dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring DLQ %s: %w", b.dlq, err)
		}
		if err := ch.QueueBind(b.dlq, b.dlq, ExchangeDeadLetter, false, nil); err != nil {
			return fmt.Errorf("binding DLQ %s: %w", b.dlq, err)
		}
	}
	return nil
}
