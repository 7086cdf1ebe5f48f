package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamenightbot/gamenight/pkg/models"
)

// syncScheduleRows rewrites a game's schedule rows inside the game's own
// mutation transaction, so the tables stay consistent with the game row and
// the insert trigger wakes the daemons atomically with the commit.
//
// Reminder rows and status rows are replaced wholesale; pending
// join-notification rows are left alone (they die with their participant
// row or with the game).
func syncScheduleRows(ctx context.Context, tx pgx.Tx, game *models.Game) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM notification_schedule
		  WHERE game_id = $1 AND notification_type = $2`,
		game.ID, models.NotificationReminder); err != nil {
		return fmt.Errorf("failed to clear reminder rows: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM status_transition_schedule WHERE game_id = $1`, game.ID); err != nil {
		return fmt.Errorf("failed to clear transition rows: %w", err)
	}

	switch game.Status {
	case models.GameScheduled:
		if err := insertTransitionRow(ctx, tx, game, models.GameInProgress, game.ScheduledAt); err != nil {
			return err
		}
		if err := insertTransitionRow(ctx, tx, game, models.GameCompleted, game.EndsAt()); err != nil {
			return err
		}
		for _, offset := range game.ReminderMinutes {
			due := game.ScheduledAt.Add(-time.Duration(offset) * time.Minute)
			if _, err := tx.Exec(ctx,
				`INSERT INTO notification_schedule
				     (game_id, guild_id, notification_type, due_at, game_scheduled_at, offset_minutes)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				game.ID, game.GuildID, models.NotificationReminder,
				due, game.ScheduledAt, offset); err != nil {
				return fmt.Errorf("failed to insert reminder row (offset %d): %w", offset, err)
			}
		}
	case models.GameInProgress:
		// The start already fired; only the completion remains.
		if err := insertTransitionRow(ctx, tx, game, models.GameCompleted, game.EndsAt()); err != nil {
			return err
		}
	case models.GameCompleted, models.GameCancelled:
		// Terminal; nothing left to fire.
	}
	return nil
}

func insertTransitionRow(ctx context.Context, tx pgx.Tx, game *models.Game, target models.GameStatus, due time.Time) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO status_transition_schedule (game_id, guild_id, target_status, due_at)
		 VALUES ($1, $2, $3, $4)`,
		game.ID, game.GuildID, target, due); err != nil {
		return fmt.Errorf("failed to insert %s transition row: %w", target, err)
	}
	return nil
}

// clearScheduleRows removes every pending schedule row for a game. Used on
// cancellation.
func clearScheduleRows(ctx context.Context, tx pgx.Tx, gameID string) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM notification_schedule WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("failed to clear notification rows: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM status_transition_schedule WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("failed to clear transition rows: %w", err)
	}
	return nil
}
