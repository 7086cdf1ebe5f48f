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

// StatusSource fires status_transition_schedule rows: it publishes
// game.started or game.completed and flips the game's status column in the
// same transaction. Start always precedes completion for a game because the
// rows' due_at values do.
type StatusSource struct {
	db     *database.Client
	pub    bus.Publisher
	logger *slog.Logger
}

// NewStatusSource wires the status-transition table to a publisher.
func NewStatusSource(db *database.Client, pub bus.Publisher) *StatusSource {
	return &StatusSource{
		db:     db,
		pub:    pub,
		logger: slog.Default().With("daemon", "transitioner"),
	}
}

// Name implements Source.
func (s *StatusSource) Name() string { return "transitioner" }

// NextDue implements Source.
func (s *StatusSource) NextDue(ctx context.Context) (time.Time, bool, error) {
	var due time.Time
	err := s.db.Pool().QueryRow(ctx,
		`SELECT due_at FROM status_transition_schedule WHERE NOT fired ORDER BY due_at LIMIT 1`,
	).Scan(&due)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying next status transition: %w", err)
	}
	return due, true, nil
}

// FireNext implements Source. Status events carry no TTL: they must be
// delivered eventually even if late.
func (s *StatusSource) FireNext(ctx context.Context, now time.Time) (bool, error) {
	fired := false
	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		var row models.StatusScheduleRow
		err := tx.QueryRow(ctx,
			`SELECT id, game_id, guild_id, target_status, due_at
			   FROM status_transition_schedule
			  WHERE NOT fired AND due_at <= $1
			  ORDER BY due_at
			  LIMIT 1
			    FOR UPDATE SKIP LOCKED`, now,
		).Scan(&row.ID, &row.GameID, &row.GuildID, &row.TargetStatus, &row.DueAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("locking due status transition: %w", err)
		}
		fired = true

		key, env, err := statusEvent(row)
		if err != nil {
			return err
		}
		if err := s.pub.Publish(ctx, key, env, 0); err != nil {
			return err
		}

		// The games table sits behind RLS; bind the row's guild for the
		// rest of this transaction before touching it.
		if _, err := tx.Exec(ctx,
			"SELECT set_config('app.current_guild', $1, true)", row.GuildID); err != nil {
			return fmt.Errorf("setting guild context: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE games SET status = $1, updated_at = now()
			  WHERE id = $2 AND status <> $3`,
			row.TargetStatus, row.GameID, models.GameCancelled); err != nil {
			return fmt.Errorf("updating game %s status: %w", row.GameID, err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM status_transition_schedule WHERE id = $1`, row.ID); err != nil {
			return fmt.Errorf("deleting fired transition %d: %w", row.ID, err)
		}

		s.logger.Info("Status transition fired",
			"row_id", row.ID, "game_id", row.GameID,
			"target_status", row.TargetStatus, "event_id", env.EventID)
		return nil
	})
	return fired && err == nil, err
}

// statusEvent maps a transition row to its bus event.
func statusEvent(row models.StatusScheduleRow) (string, bus.Envelope, error) {
	var key string
	switch row.TargetStatus {
	case models.GameInProgress:
		key = bus.KeyGameStarted
	case models.GameCompleted:
		key = bus.KeyGameCompleted
	default:
		return "", bus.Envelope{}, fmt.Errorf("unknown target status %q (row %d)", row.TargetStatus, row.ID)
	}
	env, err := bus.NewEnvelope(key, row.GuildID, bus.GamePayload{GameID: row.GameID})
	if err != nil {
		return "", bus.Envelope{}, err
	}
	return key, env, nil
}
