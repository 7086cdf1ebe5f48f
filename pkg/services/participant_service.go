package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/models"
	"github.com/gamenightbot/gamenight/pkg/ordering"
)

// ParticipantService handles joins, leaves, and host-driven removals, with
// waitlist-promotion detection on every mutation that can move users across
// the confirmed cap.
type ParticipantService struct {
	db  *database.Client
	pub bus.Publisher

	// joinNotifyDelay is how long after a join the host-notification fire is
	// scheduled; joins reverted within the window never notify.
	joinNotifyDelay time.Duration
}

// NewParticipantService creates a new ParticipantService.
func NewParticipantService(db *database.Client, pub bus.Publisher, joinNotifyDelay time.Duration) *ParticipantService {
	return &ParticipantService{db: db, pub: pub, joinNotifyDelay: joinNotifyDelay}
}

// JoinResult reports where a join landed.
type JoinResult struct {
	Participant models.Participant `json:"participant"`
	Waitlisted  bool               `json:"waitlisted"`
}

// Join adds a user to a game's roster at the end of the Regular tier. The
// join-notification row fires a host DM after the configured delay; the
// row's TTL handles games that start sooner.
func (s *ParticipantService) Join(ctx context.Context, guildID, gameID string, user *models.User) (*JoinResult, error) {
	var result *JoinResult
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		game, err := lockGame(ctx, tx, guildID, gameID)
		if err != nil {
			return err
		}
		if !game.Joinable() {
			return ErrGameNotJoinable
		}

		existing, err := loadParticipants(ctx, tx, gameID)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.DiscordID != nil && *p.DiscordID == user.DiscordID {
				return ErrAlreadyExists
			}
		}

		var (
			p            models.Participant
			positionType int
		)
		err = tx.QueryRow(ctx,
			`INSERT INTO participants (game_id, user_id, discord_id, mention, position_type, position)
			 SELECT $1, $2, $3, $4, $5, COALESCE(MAX(position) + 1, 0)
			   FROM participants WHERE game_id = $1 AND position_type = $5
			 RETURNING id, game_id, user_id, discord_id, mention, position_type, position, joined_at`,
			gameID, user.ID, user.DiscordID, "<@"+user.DiscordID+">", int(models.PositionRegular),
		).Scan(&p.ID, &p.GameID, &p.UserID, &p.DiscordID, &p.Mention,
			&positionType, &p.Position, &p.JoinedAt)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
		p.PositionType = models.PositionType(positionType)

		participants, err := loadParticipants(ctx, tx, gameID)
		if err != nil {
			return err
		}
		part := ordering.Partition(participants, game.MaxPlayers)
		_, waitlisted := part.OverflowUserIDs[user.DiscordID]

		if _, err := tx.Exec(ctx,
			`INSERT INTO notification_schedule
			     (game_id, guild_id, notification_type, participant_id, due_at, game_scheduled_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			gameID, guildID, models.NotificationJoin, p.ID,
			time.Now().UTC().Add(s.joinNotifyDelay), game.ScheduledAt); err != nil {
			return fmt.Errorf("failed to insert join notification row: %w", err)
		}

		env, err := bus.NewEnvelope(bus.KeyParticipantJoined, guildID, bus.ParticipantPayload{
			GameID: gameID, ParticipantID: p.ID, DiscordID: user.DiscordID,
		})
		if err != nil {
			return err
		}
		if err := s.pub.Publish(ctx, bus.KeyParticipantJoined, env, 0); err != nil {
			return err
		}

		result = &JoinResult{Participant: p, Waitlisted: waitlisted}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Leave removes the user's own participant row and promotes whoever moved
// up. The host cannot leave their own game.
func (s *ParticipantService) Leave(ctx context.Context, guildID, gameID string, userDiscordID string) error {
	return s.removeWhere(ctx, guildID, gameID, bus.KeyParticipantLeft,
		`discord_id = $2 AND position_type <> $3`,
		[]any{userDiscordID, int(models.PositionHost)})
}

// Remove deletes a participant row by id on the host's behalf. Placeholder
// removals promote queued real users exactly like user removals.
func (s *ParticipantService) Remove(ctx context.Context, guildID, gameID, participantID string) error {
	return s.removeWhere(ctx, guildID, gameID, bus.KeyParticipantRemoved,
		`id = $2 AND position_type <> $3`,
		[]any{participantID, int(models.PositionHost)})
}

// removeWhere deletes matching participant rows from a game, detects
// promotions across the cap, and publishes the removal event plus one
// participant.promoted per promoted user. Pending join notifications for
// the removed row die with it via the FK cascade.
func (s *ParticipantService) removeWhere(ctx context.Context, guildID, gameID, eventKey, condition string, args []any) error {
	return s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		game, err := lockGame(ctx, tx, guildID, gameID)
		if err != nil {
			return err
		}

		before, err := loadParticipants(ctx, tx, gameID)
		if err != nil {
			return err
		}
		oldPart := ordering.Partition(before, game.MaxPlayers)

		var (
			removedID      string
			removedDiscord *string
		)
		query := `DELETE FROM participants WHERE game_id = $1 AND ` + condition +
			` RETURNING id, discord_id`
		err = tx.QueryRow(ctx, query, append([]any{gameID}, args...)...).Scan(&removedID, &removedDiscord)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to remove participant: %w", err)
		}

		after, err := loadParticipants(ctx, tx, gameID)
		if err != nil {
			return err
		}
		newPart := ordering.Partition(after, game.MaxPlayers)

		payload := bus.ParticipantPayload{GameID: gameID, ParticipantID: removedID}
		if removedDiscord != nil {
			payload.DiscordID = *removedDiscord
		}
		env, err := bus.NewEnvelope(eventKey, guildID, payload)
		if err != nil {
			return err
		}
		if err := s.pub.Publish(ctx, eventKey, env, 0); err != nil {
			return err
		}

		for _, discordID := range ordering.Promoted(oldPart, newPart) {
			env, err := bus.NewEnvelope(bus.KeyParticipantPromoted, guildID,
				bus.ParticipantPayload{GameID: gameID, DiscordID: discordID})
			if err != nil {
				return err
			}
			if err := s.pub.Publish(ctx, bus.KeyParticipantPromoted, env, 0); err != nil {
				return err
			}
		}
		return nil
	})
}

// lockGame loads a game row FOR UPDATE so roster mutations serialize per
// game.
func lockGame(ctx context.Context, tx pgx.Tx, guildID, gameID string) (*models.Game, error) {
	return scanGame(tx.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games g
		  WHERE g.guild_id = $1 AND g.id = $2 FOR UPDATE`, guildID, gameID))
}
