package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(KeyGameCreated, "guild-1", GamePayload{GameID: "game-1"})
	require.NoError(t, err)

	_, err = uuid.Parse(env.EventID)
	assert.NoError(t, err, "event id is a UUID")
	assert.Equal(t, KeyGameCreated, env.EventType)
	assert.Equal(t, "guild-1", env.GuildID)
	assert.WithinDuration(t, time.Now().UTC(), env.Timestamp, 5*time.Second)

	var p GamePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "game-1", p.GameID)
}

func TestNewEnvelope_UniqueIDs(t *testing.T) {
	a, err := NewEnvelope(KeyGameUpdated, "g", GamePayload{GameID: "x"})
	require.NoError(t, err)
	b, err := NewEnvelope(KeyGameUpdated, "g", GamePayload{GameID: "x"})
	require.NoError(t, err)
	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEnvelope(KeyNotificationDue, "guild-2", NotificationPayload{
		GameID:        "game-2",
		Kind:          KindReminder,
		OffsetMinutes: 60,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, env.EventType, decoded.EventType)

	var p NotificationPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &p))
	assert.Equal(t, KindReminder, p.Kind)
	assert.Equal(t, 60, p.OffsetMinutes)
}

func TestReminderTTL(t *testing.T) {
	now := time.Date(2025, 7, 4, 19, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		scheduledAt time.Time
		want        time.Duration
	}{
		{"one hour out", now.Add(time.Hour), time.Hour},
		{"due now", now, 0},
		{"already started", now.Add(-5 * time.Second), 0},
		{"well past", now.Add(-24 * time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReminderTTL(tt.scheduledAt, now))
		})
	}
}

func TestDLQNames(t *testing.T) {
	names := DLQNames()
	require.Contains(t, names, QueueBotEventsDLQ)
	for _, n := range names {
		assert.NotEmpty(t, n)
	}
}
