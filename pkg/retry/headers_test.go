package retry

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deathEntry(reason, exchange string, keys ...string) amqp.Table {
	rawKeys := make([]interface{}, len(keys))
	for i, k := range keys {
		rawKeys[i] = k
	}
	return amqp.Table{
		"reason":       reason,
		"exchange":     exchange,
		"queue":        "bot_events",
		"routing-keys": rawKeys,
		"count":        int64(1),
	}
}

func TestDeathRouteRejectedMessage(t *testing.T) {
	headers := amqp.Table{
		"x-death": []interface{}{deathEntry("rejected", "events", "game.created")},
	}

	r, ok := deathRoute(headers)
	require.True(t, ok)
	assert.Equal(t, "events", r.Exchange)
	assert.Equal(t, "game.created", r.RoutingKey)
	assert.Equal(t, "rejected", r.Reason)
}

func TestDeathRouteUsesMostRecentEntry(t *testing.T) {
	// The broker prepends: a message that cycled through the DLQ twice has
	// its latest death first.
	headers := amqp.Table{
		"x-death": []interface{}{
			deathEntry("rejected", "events", "participant.joined"),
			deathEntry("rejected", "events", "stale.key"),
		},
	}

	r, ok := deathRoute(headers)
	require.True(t, ok)
	assert.Equal(t, "participant.joined", r.RoutingKey)
}

func TestDeathRouteExpiredReason(t *testing.T) {
	headers := amqp.Table{
		"x-death": []interface{}{deathEntry("expired", "events", "notification.due")},
	}

	r, ok := deathRoute(headers)
	require.True(t, ok)
	assert.Equal(t, "expired", r.Reason)
}

func TestDeathRouteMissingOrMalformed(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
	}{
		{name: "no headers", headers: amqp.Table{}},
		{name: "nil headers", headers: nil},
		{name: "empty death list", headers: amqp.Table{"x-death": []interface{}{}}},
		{name: "wrong entry type", headers: amqp.Table{"x-death": []interface{}{"bogus"}}},
		{name: "missing routing keys", headers: amqp.Table{
			"x-death": []interface{}{amqp.Table{"reason": "rejected", "exchange": "events"}},
		}},
		{name: "missing exchange", headers: amqp.Table{
			"x-death": []interface{}{amqp.Table{
				"reason":       "rejected",
				"routing-keys": []interface{}{"game.created"},
			}},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := deathRoute(tc.headers)
			assert.False(t, ok)
		})
	}
}
