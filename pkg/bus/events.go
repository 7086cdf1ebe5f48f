// Package bus implements the broker topology and the publisher/consumer
// plumbing on top of AMQP 0.9.1: one topic exchange, per-queue dead-letter
// queues, publisher confirms, and per-message TTLs for notifications.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Routing keys published on the events exchange. The gateway's bot_events
// queue binds game.*, participant.* and notification.*.
const (
	KeyGameCreated   = "game.created"
	KeyGameUpdated   = "game.updated"
	KeyGameCancelled = "game.cancelled"
	KeyGameStarted   = "game.started"
	KeyGameCompleted = "game.completed"

	KeyParticipantJoined   = "participant.joined"
	KeyParticipantLeft     = "participant.left"
	KeyParticipantRemoved  = "participant.removed"
	KeyParticipantPromoted = "participant.promoted"

	KeyNotificationDue = "notification.due"
)

// Exchange and queue names. Each primary queue dead-letters into its own
// DLQ via the shared dead-letter exchange; nothing shares a DLQ.
const (
	ExchangeEvents     = "events"
	ExchangeDeadLetter = "events.dlx"

	QueueBotEvents    = "bot_events"
	QueueBotEventsDLQ = "bot_events.dlq"
)

// Envelope is the wire format for every event on the bus. Handlers must be
// idempotent keyed on EventID: redelivery after a crash or a DLQ replay is
// expected, not exceptional.
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	GuildID   string          `json:"guild_id"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope with a fresh event id and the payload
// marshaled in place.
func NewEnvelope(eventType, guildID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		GuildID:   guildID,
		Payload:   body,
	}, nil
}

// GamePayload accompanies game.* events.
type GamePayload struct {
	GameID string `json:"game_id"`
}

// ParticipantPayload accompanies participant.* events.
type ParticipantPayload struct {
	GameID        string `json:"game_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	// DiscordID is the affected user; empty for placeholder rows.
	DiscordID string `json:"discord_id,omitempty"`
}

// NotificationKind distinguishes notification.due payload flavors.
type NotificationKind string

// Notification kinds carried in NotificationPayload.Kind.
const (
	KindReminder NotificationKind = "reminder"
	KindJoin     NotificationKind = "join"
)

// NotificationPayload accompanies notification.due events.
type NotificationPayload struct {
	GameID        string           `json:"game_id"`
	Kind          NotificationKind `json:"kind"`
	OffsetMinutes int              `json:"offset_minutes,omitempty"`
	ParticipantID string           `json:"participant_id,omitempty"`
}

// ReminderTTL computes the per-message expiration for a notification event:
// the remaining time until the game starts, floored at zero. The broker
// silently drops expired messages, so stale reminders never reach players.
func ReminderTTL(scheduledAt, now time.Time) time.Duration {
	ttl := scheduledAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
