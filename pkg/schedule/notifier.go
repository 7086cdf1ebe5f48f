package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/models"
)

// NOTIFY channels raised by the schedule-table triggers.
const (
	NotificationChannel = "notification_schedule_changed"
	StatusChannel       = "status_schedule_changed"
)

// NotificationSource fires notification_schedule rows as notification.due
// events. Reminder and join events carry a per-message TTL so the broker
// drops anything that would arrive after the game started.
type NotificationSource struct {
	db     *database.Client
	pub    bus.Publisher
	logger *slog.Logger
}

// NewNotificationSource wires the notification table to a publisher.
func NewNotificationSource(db *database.Client, pub bus.Publisher) *NotificationSource {
	return &NotificationSource{
		db:     db,
		pub:    pub,
		logger: slog.Default().With("daemon", "notifier"),
	}
}

// Name implements Source.
func (s *NotificationSource) Name() string { return "notifier" }

// NextDue implements Source.
func (s *NotificationSource) NextDue(ctx context.Context) (time.Time, bool, error) {
	var due time.Time
	err := s.db.Pool().QueryRow(ctx,
		`SELECT due_at FROM notification_schedule WHERE NOT fired ORDER BY due_at LIMIT 1`,
	).Scan(&due)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying next notification: %w", err)
	}
	return due, true, nil
}

// FireNext implements Source. The row lock is held for one broker-confirm
// round trip; publish failure rolls back and the row survives.
func (s *NotificationSource) FireNext(ctx context.Context, now time.Time) (bool, error) {
	fired := false
	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		var row models.NotificationScheduleRow
		err := tx.QueryRow(ctx,
			`SELECT id, game_id, guild_id, notification_type, participant_id,
			        due_at, game_scheduled_at, offset_minutes
			   FROM notification_schedule
			  WHERE NOT fired AND due_at <= $1
			  ORDER BY due_at
			  LIMIT 1
			    FOR UPDATE SKIP LOCKED`, now,
		).Scan(&row.ID, &row.GameID, &row.GuildID, &row.Type, &row.ParticipantID,
			&row.DueAt, &row.GameScheduledAt, &row.OffsetMinutes)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("locking due notification: %w", err)
		}
		fired = true

		key, env, ttl, stale, err := notificationEvent(row, now)
		if err != nil {
			return err
		}
		if stale {
			// The game already started; players must not get this reminder.
			s.logger.Info("Dropping stale notification",
				"row_id", row.ID, "game_id", row.GameID, "type", row.Type)
		} else {
			if err := s.pub.Publish(ctx, key, env, ttl); err != nil {
				return err
			}
			s.logger.Info("Notification fired",
				"row_id", row.ID, "game_id", row.GameID, "type", row.Type,
				"event_id", env.EventID, "ttl_ms", ttl.Milliseconds())
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM notification_schedule WHERE id = $1`, row.ID); err != nil {
			return fmt.Errorf("deleting fired notification %d: %w", row.ID, err)
		}
		return nil
	})
	return fired && err == nil, err
}

// notificationEvent builds the notification.due event for a schedule row.
// stale is set when the game started before the row could fire; such rows
// are deleted without publishing.
func notificationEvent(row models.NotificationScheduleRow, now time.Time) (key string, env bus.Envelope, ttl time.Duration, stale bool, err error) {
	if !row.GameScheduledAt.After(now) {
		return "", bus.Envelope{}, 0, true, nil
	}

	payload := bus.NotificationPayload{GameID: row.GameID}
	switch row.Type {
	case models.NotificationReminder:
		payload.Kind = bus.KindReminder
		payload.OffsetMinutes = row.OffsetMinutes
	case models.NotificationJoin:
		payload.Kind = bus.KindJoin
		if row.ParticipantID != nil {
			payload.ParticipantID = *row.ParticipantID
		}
	default:
		return "", bus.Envelope{}, 0, false, fmt.Errorf("unknown notification type %q (row %d)", row.Type, row.ID)
	}

	env, err = bus.NewEnvelope(bus.KeyNotificationDue, row.GuildID, payload)
	if err != nil {
		return "", bus.Envelope{}, 0, false, err
	}
	return bus.KeyNotificationDue, env, bus.ReminderTTL(row.GameScheduledAt, now), false, nil
}
