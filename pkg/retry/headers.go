package retry

import amqp "github.com/rabbitmq/amqp091-go"

// route is the original destination of a dead-lettered message, recovered
// from the broker's x-death header.
type route struct {
	Exchange   string
	RoutingKey string
	Reason     string
}

// deathRoute extracts the most recent x-death entry. The broker prepends
// entries, so index zero describes the hop into the DLQ and carries the
// original exchange and routing key.
func deathRoute(headers amqp.Table) (route, bool) {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok || len(deaths) == 0 {
		return route{}, false
	}
	entry, ok := deaths[0].(amqp.Table)
	if !ok {
		return route{}, false
	}

	r := route{}
	r.Exchange, _ = entry["exchange"].(string)
	r.Reason, _ = entry["reason"].(string)

	keys, _ := entry["routing-keys"].([]interface{})
	if len(keys) > 0 {
		r.RoutingKey, _ = keys[0].(string)
	}

	if r.Exchange == "" || r.RoutingKey == "" {
		return route{}, false
	}
	return r, true
}
