package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/models"
)

func TestNotificationEventReminder(t *testing.T) {
	now := time.Now().UTC()
	row := models.NotificationScheduleRow{
		ID:              1,
		GameID:          "game-1",
		GuildID:         "guild-1",
		Type:            models.NotificationReminder,
		DueAt:           now,
		GameScheduledAt: now.Add(30 * time.Minute),
		OffsetMinutes:   30,
	}

	key, env, ttl, stale, err := notificationEvent(row, now)
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, bus.KeyNotificationDue, key)
	assert.Equal(t, "guild-1", env.GuildID)
	assert.Equal(t, 30*time.Minute, ttl)

	var payload bus.NotificationPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "game-1", payload.GameID)
	assert.Equal(t, bus.KindReminder, payload.Kind)
	assert.Equal(t, 30, payload.OffsetMinutes)
	assert.Empty(t, payload.ParticipantID)
}

func TestNotificationEventJoin(t *testing.T) {
	now := time.Now().UTC()
	participantID := "participant-1"
	row := models.NotificationScheduleRow{
		ID:              2,
		GameID:          "game-1",
		GuildID:         "guild-1",
		Type:            models.NotificationJoin,
		ParticipantID:   &participantID,
		DueAt:           now,
		GameScheduledAt: now.Add(2 * time.Hour),
	}

	key, env, ttl, stale, err := notificationEvent(row, now)
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, bus.KeyNotificationDue, key)
	assert.Equal(t, 2*time.Hour, ttl)

	var payload bus.NotificationPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, bus.KindJoin, payload.Kind)
	assert.Equal(t, participantID, payload.ParticipantID)
	assert.Zero(t, payload.OffsetMinutes)
}

func TestNotificationEventStaleAfterGameStart(t *testing.T) {
	now := time.Now().UTC()
	row := models.NotificationScheduleRow{
		Type:            models.NotificationReminder,
		GameScheduledAt: now.Add(-time.Minute),
	}

	_, _, _, stale, err := notificationEvent(row, now)
	require.NoError(t, err)
	assert.True(t, stale, "a reminder for a started game must be dropped")
}

func TestNotificationEventUnknownType(t *testing.T) {
	now := time.Now().UTC()
	row := models.NotificationScheduleRow{
		Type:            models.NotificationType("mystery"),
		GameScheduledAt: now.Add(time.Hour),
	}

	_, _, _, _, err := notificationEvent(row, now)
	assert.Error(t, err)
}

func TestStatusEvent(t *testing.T) {
	tests := []struct {
		name    string
		target  models.GameStatus
		wantKey string
		wantErr bool
	}{
		{name: "start", target: models.GameInProgress, wantKey: bus.KeyGameStarted},
		{name: "complete", target: models.GameCompleted, wantKey: bus.KeyGameCompleted},
		{name: "invalid target", target: models.GameScheduled, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := models.StatusScheduleRow{
				ID:           7,
				GameID:       "game-1",
				GuildID:      "guild-1",
				TargetStatus: tc.target,
			}

			key, env, err := statusEvent(row)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, key)
			assert.Equal(t, tc.wantKey, env.EventType)
			assert.Equal(t, "guild-1", env.GuildID)

			var payload bus.GamePayload
			require.NoError(t, json.Unmarshal(env.Payload, &payload))
			assert.Equal(t, "game-1", payload.GameID)
		})
	}
}
