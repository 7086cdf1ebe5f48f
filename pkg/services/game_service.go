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

// GameService manages game lifecycle: template-driven creation, updates
// with waitlist-promotion detection, cancellation, and the schedule-table
// bookkeeping for each of those. Events publish inside the mutation
// transaction; a broker failure rolls the whole mutation back.
type GameService struct {
	db  *database.Client
	pub bus.Publisher
}

// NewGameService creates a new GameService.
func NewGameService(db *database.Client, pub bus.Publisher) *GameService {
	return &GameService{db: db, pub: pub}
}

// GameDetail is a game with its roster and the visibility role set
// inherited from its template.
type GameDetail struct {
	models.Game
	Participants         []models.Participant `json:"participants"`
	AllowedPlayerRoleIDs []string             `json:"allowed_player_role_ids"`
}

const gameColumns = `g.id, g.guild_id, g.template_id, g.title, g.description,
       g.instructions, g.scheduled_at, g.duration_minutes, g.location,
       g.max_players, g.reminder_minutes, g.notify_role_ids, g.status,
       g.signup_method, g.channel_id, g.message_id, g.thumbnail_mime,
       g.banner_mime, g.created_at, g.updated_at`

func scanGame(row pgx.Row) (*models.Game, error) {
	var (
		g            models.Game
		status       string
		signupMethod string
	)
	err := row.Scan(&g.ID, &g.GuildID, &g.TemplateID, &g.Title, &g.Description,
		&g.Instructions, &g.ScheduledAt, &g.DurationMinutes, &g.Location,
		&g.MaxPlayers, &g.ReminderMinutes, &g.NotifyRoleIDs, &status,
		&signupMethod, &g.ChannelID, &g.MessageID, &g.ThumbnailMIME,
		&g.BannerMIME, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	g.Status = models.GameStatus(status)
	g.SignupMethod = models.SignupMethod(signupMethod)
	return &g, nil
}

func loadParticipants(ctx context.Context, tx pgx.Tx, gameID string) ([]models.Participant, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, game_id, user_id, discord_id, mention, position_type, position, joined_at
		   FROM participants WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		var positionType int
		if err := rows.Scan(&p.ID, &p.GameID, &p.UserID, &p.DiscordID,
			&p.Mention, &positionType, &p.Position, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.PositionType = models.PositionType(positionType)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// List returns the guild's games newest-start-first, each with its
// template's player-visibility role set so the caller can filter.
func (s *GameService) List(ctx context.Context, guildID string) ([]GameDetail, error) {
	var games []GameDetail
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+gameColumns+`, t.allowed_player_role_ids
			   FROM games g
			   JOIN guild_templates t ON t.id = g.template_id
			  WHERE g.guild_id = $1
			  ORDER BY g.scheduled_at DESC`, guildID)
		if err != nil {
			return fmt.Errorf("failed to list games: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				g            models.Game
				status       string
				signupMethod string
				playerRoles  []string
			)
			if err := rows.Scan(&g.ID, &g.GuildID, &g.TemplateID, &g.Title, &g.Description,
				&g.Instructions, &g.ScheduledAt, &g.DurationMinutes, &g.Location,
				&g.MaxPlayers, &g.ReminderMinutes, &g.NotifyRoleIDs, &status,
				&signupMethod, &g.ChannelID, &g.MessageID, &g.ThumbnailMIME,
				&g.BannerMIME, &g.CreatedAt, &g.UpdatedAt, &playerRoles); err != nil {
				return fmt.Errorf("failed to scan game: %w", err)
			}
			g.Status = models.GameStatus(status)
			g.SignupMethod = models.SignupMethod(signupMethod)
			games = append(games, GameDetail{Game: g, AllowedPlayerRoleIDs: playerRoles})
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range games {
			participants, err := loadParticipants(ctx, tx, games[i].ID)
			if err != nil {
				return err
			}
			games[i].Participants = participants
		}
		return nil
	})
	return games, err
}

// Get fetches one game with its roster.
func (s *GameService) Get(ctx context.Context, guildID, id string) (*GameDetail, error) {
	var detail *GameDetail
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		var err error
		detail, err = s.getLocked(ctx, tx, guildID, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *GameService) getLocked(ctx context.Context, tx pgx.Tx, guildID, id string, forUpdate bool) (*GameDetail, error) {
	query := `SELECT ` + gameColumns + `, t.allowed_player_role_ids
	            FROM games g
	            JOIN guild_templates t ON t.id = g.template_id
	           WHERE g.guild_id = $1 AND g.id = $2`
	if forUpdate {
		query += ` FOR UPDATE OF g`
	}

	var (
		g            models.Game
		status       string
		signupMethod string
		playerRoles  []string
	)
	err := tx.QueryRow(ctx, query, guildID, id).Scan(
		&g.ID, &g.GuildID, &g.TemplateID, &g.Title, &g.Description,
		&g.Instructions, &g.ScheduledAt, &g.DurationMinutes, &g.Location,
		&g.MaxPlayers, &g.ReminderMinutes, &g.NotifyRoleIDs, &status,
		&signupMethod, &g.ChannelID, &g.MessageID, &g.ThumbnailMIME,
		&g.BannerMIME, &g.CreatedAt, &g.UpdatedAt, &playerRoles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	g.Status = models.GameStatus(status)
	g.SignupMethod = models.SignupMethod(signupMethod)

	participants, err := loadParticipants(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return &GameDetail{Game: g, Participants: participants, AllowedPlayerRoleIDs: playerRoles}, nil
}

// Create builds a game from its template, stores the host and the resolved
// initial roster, populates the schedule tables, and publishes
// game.created. Everything happens in one guild-scoped transaction.
func (s *GameService) Create(ctx context.Context, guildID string, host *models.User, req CreateGameRequest, roster []ResolvedMention) (*GameDetail, error) {
	var detail *GameDetail
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		tmpl, err := scanTemplate(tx.QueryRow(ctx,
			`SELECT `+templateColumns+` FROM guild_templates
			  WHERE guild_id = $1 AND id = $2`, guildID, req.TemplateID))
		if err != nil {
			return err
		}

		applyTemplateToCreate(&req, tmpl)
		if err := validateGameCreate(req, tmpl); err != nil {
			return err
		}

		game, err := scanGame(tx.QueryRow(ctx,
			`INSERT INTO games AS g (
			     guild_id, template_id, title, description, instructions,
			     scheduled_at, duration_minutes, location, max_players,
			     reminder_minutes, notify_role_ids, signup_method, channel_id,
			     thumbnail, thumbnail_mime, banner, banner_mime)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			         $14, $15, $16, $17)
			 RETURNING `+gameColumns,
			guildID, req.TemplateID, req.Title, req.Description, req.Instructions,
			req.ScheduledAt.UTC(), req.DurationMinutes, req.Location, req.MaxPlayers,
			orEmptyInts(req.ReminderMinutes), orEmpty(req.NotifyRoleIDs),
			string(req.SignupMethod), tmpl.ChannelID,
			req.Thumbnail, req.ThumbMIME, req.Banner, req.BannerMIME))
		if err != nil {
			return err
		}

		if err := insertParticipant(ctx, tx, game.ID, &host.ID, host.DiscordID,
			"<@"+host.DiscordID+">", models.PositionHost, 0); err != nil {
			return err
		}
		if err := insertRoster(ctx, tx, game.ID, host.DiscordID, roster); err != nil {
			return err
		}

		if err := syncScheduleRows(ctx, tx, game); err != nil {
			return err
		}

		env, err := bus.NewEnvelope(bus.KeyGameCreated, guildID, bus.GamePayload{GameID: game.ID})
		if err != nil {
			return err
		}
		if err := s.pub.Publish(ctx, bus.KeyGameCreated, env, 0); err != nil {
			return err
		}

		detail, err = s.getLocked(ctx, tx, guildID, game.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Update applies req to a game, replaces the roster when one is given,
// detects waitlist promotions, refreshes the schedule tables, and publishes
// game.updated plus one participant.promoted event per promoted user.
func (s *GameService) Update(ctx context.Context, guildID, id string, req UpdateGameRequest, roster []ResolvedMention) (*GameDetail, error) {
	var detail *GameDetail
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		current, err := s.getLocked(ctx, tx, guildID, id, true)
		if err != nil {
			return err
		}
		tmpl, err := scanTemplate(tx.QueryRow(ctx,
			`SELECT `+templateColumns+` FROM guild_templates
			  WHERE guild_id = $1 AND id = $2`, guildID, current.TemplateID))
		if err != nil {
			return err
		}

		if err := checkUpdatable(&current.Game, req); err != nil {
			return err
		}
		if err := checkLockedFields(tmpl, req); err != nil {
			return err
		}

		before := ordering.Partition(current.Participants, current.MaxPlayers)
		game := current.Game
		applyGameUpdate(&game, req)
		if err := validateGameUpdate(&game, tmpl); err != nil {
			return err
		}

		if req.Participants != nil {
			if err := replaceRoster(ctx, tx, &game, roster); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE games SET
			     title = $3, description = $4, instructions = $5,
			     scheduled_at = $6, duration_minutes = $7, location = $8,
			     max_players = $9, reminder_minutes = $10, notify_role_ids = $11,
			     signup_method = $12, updated_at = now()
			  WHERE guild_id = $1 AND id = $2`,
			guildID, id, game.Title, game.Description, game.Instructions,
			game.ScheduledAt.UTC(), game.DurationMinutes, game.Location,
			game.MaxPlayers, orEmptyInts(game.ReminderMinutes),
			orEmpty(game.NotifyRoleIDs), string(game.SignupMethod)); err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}

		if scheduleChanged(&current.Game, &game) {
			if err := syncScheduleRows(ctx, tx, &game); err != nil {
				return err
			}
		}

		afterParticipants, err := loadParticipants(ctx, tx, id)
		if err != nil {
			return err
		}
		after := ordering.Partition(afterParticipants, game.MaxPlayers)

		env, err := bus.NewEnvelope(bus.KeyGameUpdated, guildID, bus.GamePayload{GameID: id})
		if err != nil {
			return err
		}
		if err := s.pub.Publish(ctx, bus.KeyGameUpdated, env, 0); err != nil {
			return err
		}
		if err := s.publishPromotions(ctx, guildID, id, before, after); err != nil {
			return err
		}

		detail, err = s.getLocked(ctx, tx, guildID, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Cancel moves a game to CANCELLED, clears its pending schedule rows, and
// publishes game.cancelled. Terminal games are left untouched.
func (s *GameService) Cancel(ctx context.Context, guildID, id string) error {
	return s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM games WHERE guild_id = $1 AND id = $2 FOR UPDATE`,
			guildID, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load game: %w", err)
		}
		switch models.GameStatus(status) {
		case models.GameCompleted, models.GameCancelled:
			return NewValidationError("status", "game is already finished")
		}

		if _, err := tx.Exec(ctx,
			`UPDATE games SET status = $3, updated_at = now()
			  WHERE guild_id = $1 AND id = $2`,
			guildID, id, string(models.GameCancelled)); err != nil {
			return fmt.Errorf("failed to cancel game: %w", err)
		}
		if err := clearScheduleRows(ctx, tx, id); err != nil {
			return err
		}

		env, err := bus.NewEnvelope(bus.KeyGameCancelled, guildID, bus.GamePayload{GameID: id})
		if err != nil {
			return err
		}
		return s.pub.Publish(ctx, bus.KeyGameCancelled, env, 0)
	})
}

// SetMessageID stores the Discord announcement message id after the
// gateway's first post. Idempotent: a duplicate game.created delivery
// leaves the stored id alone.
func (s *GameService) SetMessageID(ctx context.Context, guildID, gameID, messageID string) error {
	return s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE games SET message_id = $3, updated_at = now()
			  WHERE guild_id = $1 AND id = $2 AND message_id IS NULL`,
			guildID, gameID, messageID)
		if err != nil {
			return fmt.Errorf("failed to store message id: %w", err)
		}
		return nil
	})
}

// Image kinds for GetImage.
const (
	ImageThumbnail = "thumbnail"
	ImageBanner    = "banner"
)

// GetImage returns a game's stored image blob and MIME type.
func (s *GameService) GetImage(ctx context.Context, guildID, gameID, kind string) ([]byte, string, error) {
	column := "thumbnail"
	mimeColumn := "thumbnail_mime"
	if kind == ImageBanner {
		column = "banner"
		mimeColumn = "banner_mime"
	}

	var (
		blob []byte
		mime string
	)
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT `+column+`, `+mimeColumn+` FROM games
			  WHERE guild_id = $1 AND id = $2`, guildID, gameID,
		).Scan(&blob, &mime)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if len(blob) == 0 {
		return nil, "", ErrNotFound
	}
	return blob, mime, nil
}

func (s *GameService) publishPromotions(ctx context.Context, guildID, gameID string, before, after ordering.Partitioned) error {
	for _, discordID := range ordering.Promoted(before, after) {
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
}

// applyTemplateToCreate fills unset request fields from template defaults
// and forces locked fields to the template values.
func applyTemplateToCreate(req *CreateGameRequest, tmpl *models.Template) {
	if req.DurationMinutes == 0 {
		req.DurationMinutes = tmpl.DefaultDurationMinutes
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = tmpl.DefaultMaxPlayers
	}
	if req.ReminderMinutes == nil {
		req.ReminderMinutes = tmpl.DefaultReminderMinutes
	}
	if req.NotifyRoleIDs == nil {
		req.NotifyRoleIDs = tmpl.NotifyRoleIDs
	}
	if req.Location == "" {
		req.Location = tmpl.DefaultLocation
	}
	if req.Instructions == "" {
		req.Instructions = tmpl.DefaultInstructions
	}
	if req.SignupMethod == "" {
		req.SignupMethod = tmpl.DefaultSignupMethod
	}

	for _, field := range tmpl.LockedFields {
		switch field {
		case "duration_minutes":
			req.DurationMinutes = tmpl.DefaultDurationMinutes
		case "max_players":
			req.MaxPlayers = tmpl.DefaultMaxPlayers
		case "reminder_minutes":
			req.ReminderMinutes = tmpl.DefaultReminderMinutes
		case "notify_role_ids":
			req.NotifyRoleIDs = tmpl.NotifyRoleIDs
		case "location":
			req.Location = tmpl.DefaultLocation
		case "instructions":
			req.Instructions = tmpl.DefaultInstructions
		case "signup_method":
			req.SignupMethod = tmpl.DefaultSignupMethod
		}
	}
}

func validateGameCreate(req CreateGameRequest, tmpl *models.Template) error {
	if req.Title == "" {
		return NewValidationError("title", "required")
	}
	if req.ScheduledAt.IsZero() {
		return NewValidationError("scheduled_at", "required")
	}
	if req.DurationMinutes <= 0 {
		return NewValidationError("duration_minutes", "must be positive")
	}
	if req.MaxPlayers < 0 {
		return NewValidationError("max_players", "must not be negative")
	}
	if !models.ValidSignupMethod(req.SignupMethod) {
		return NewValidationError("signup_method", "invalid: must be 'SELF_SIGNUP' or 'HOST_SELECTED'")
	}
	if !tmpl.AllowsSignupMethod(req.SignupMethod) {
		return NewValidationError("signup_method", "not allowed by the template")
	}
	for _, offset := range req.ReminderMinutes {
		if offset <= 0 {
			return NewValidationError("reminder_minutes", "offsets must be positive")
		}
	}
	return nil
}

func validateGameUpdate(game *models.Game, tmpl *models.Template) error {
	return validateGameCreate(CreateGameRequest{
		TemplateID:      game.TemplateID,
		Title:           game.Title,
		ScheduledAt:     game.ScheduledAt,
		DurationMinutes: game.DurationMinutes,
		MaxPlayers:      game.MaxPlayers,
		ReminderMinutes: game.ReminderMinutes,
		SignupMethod:    game.SignupMethod,
	}, tmpl)
}

// checkUpdatable rejects updates a game's status no longer allows.
func checkUpdatable(game *models.Game, req UpdateGameRequest) error {
	switch game.Status {
	case models.GameScheduled:
		return nil
	case models.GameInProgress:
		// Schedule-shaping fields are frozen once the game started.
		if req.ScheduledAt != nil || req.DurationMinutes != nil ||
			req.MaxPlayers != nil || req.ReminderMinutes != nil ||
			req.SignupMethod != nil || req.Participants != nil {
			return NewValidationError("status", "only descriptive fields can change after the game started")
		}
		return nil
	default:
		return NewValidationError("status", "game is finished")
	}
}

// checkLockedFields rejects updates that touch template-locked fields.
func checkLockedFields(tmpl *models.Template, req UpdateGameRequest) error {
	locked := func(field string, set bool) error {
		if set && tmpl.Locked(field) {
			return NewValidationError(field, "locked by the template")
		}
		return nil
	}

	checks := []error{
		locked("duration_minutes", req.DurationMinutes != nil),
		locked("max_players", req.MaxPlayers != nil),
		locked("reminder_minutes", req.ReminderMinutes != nil),
		locked("notify_role_ids", req.NotifyRoleIDs != nil),
		locked("location", req.Location != nil),
		locked("instructions", req.Instructions != nil),
		locked("signup_method", req.SignupMethod != nil),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func applyGameUpdate(game *models.Game, req UpdateGameRequest) {
	if req.Title != nil {
		game.Title = *req.Title
	}
	if req.Description != nil {
		game.Description = *req.Description
	}
	if req.Instructions != nil {
		game.Instructions = *req.Instructions
	}
	if req.ScheduledAt != nil {
		game.ScheduledAt = *req.ScheduledAt
	}
	if req.DurationMinutes != nil {
		game.DurationMinutes = *req.DurationMinutes
	}
	if req.Location != nil {
		game.Location = *req.Location
	}
	if req.MaxPlayers != nil {
		game.MaxPlayers = *req.MaxPlayers
	}
	if req.ReminderMinutes != nil {
		game.ReminderMinutes = *req.ReminderMinutes
	}
	if req.NotifyRoleIDs != nil {
		game.NotifyRoleIDs = *req.NotifyRoleIDs
	}
	if req.SignupMethod != nil {
		game.SignupMethod = *req.SignupMethod
	}
}

// scheduleChanged reports whether an update moved anything the schedule
// tables mirror.
func scheduleChanged(before, after *models.Game) bool {
	if !before.ScheduledAt.Equal(after.ScheduledAt) {
		return true
	}
	if before.DurationMinutes != after.DurationMinutes {
		return true
	}
	if before.MaxPlayers != after.MaxPlayers {
		return true
	}
	if len(before.ReminderMinutes) != len(after.ReminderMinutes) {
		return true
	}
	for i := range before.ReminderMinutes {
		if before.ReminderMinutes[i] != after.ReminderMinutes[i] {
			return true
		}
	}
	return false
}

// insertParticipant inserts one participant row.
func insertParticipant(ctx context.Context, tx pgx.Tx, gameID string, userID *string, discordID, mention string, positionType models.PositionType, position int) error {
	var discordIDArg *string
	if discordID != "" {
		discordIDArg = &discordID
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO participants (game_id, user_id, discord_id, mention, position_type, position)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		gameID, userID, discordIDArg, mention, int(positionType), position)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// insertRoster stores the resolved initial roster, upserting user
// projections for real members. Entries matching the host are skipped; the
// host row is managed separately.
func insertRoster(ctx context.Context, tx pgx.Tx, gameID, hostDiscordID string, roster []ResolvedMention) error {
	for _, entry := range roster {
		if !models.ValidPositionType(entry.PositionType) || entry.PositionType == models.PositionHost {
			return NewValidationError("participants", fmt.Sprintf("invalid position type %d", entry.PositionType))
		}
		if entry.UserDiscordID == hostDiscordID && entry.UserDiscordID != "" {
			continue
		}

		if entry.IsPlaceholder() {
			if err := insertParticipant(ctx, tx, gameID, nil, "",
				entry.Input, entry.PositionType, entry.Position); err != nil {
				return err
			}
			continue
		}

		var userID string
		err := tx.QueryRow(ctx,
			`INSERT INTO users (discord_id, username, display_name)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (discord_id) DO UPDATE
			   SET username = EXCLUDED.username,
			       display_name = EXCLUDED.display_name,
			       updated_at = now()
			 RETURNING id`,
			entry.UserDiscordID, entry.Username, entry.DisplayName).Scan(&userID)
		if err != nil {
			return fmt.Errorf("failed to upsert roster user %s: %w", entry.UserDiscordID, err)
		}

		if err := insertParticipant(ctx, tx, gameID, &userID, entry.UserDiscordID,
			"<@"+entry.UserDiscordID+">", entry.PositionType, entry.Position); err != nil {
			return err
		}
	}
	return nil
}

// replaceRoster swaps a game's non-host participants for the resolved
// list, preserving joined_at for users that stay.
func replaceRoster(ctx context.Context, tx pgx.Tx, game *models.Game, roster []ResolvedMention) error {
	existing, err := loadParticipants(ctx, tx, game.ID)
	if err != nil {
		return err
	}
	joinedAt := make(map[string]time.Time)
	hostDiscordID := ""
	for _, p := range existing {
		if p.PositionType == models.PositionHost {
			if p.DiscordID != nil {
				hostDiscordID = *p.DiscordID
			}
			continue
		}
		if p.DiscordID != nil {
			joinedAt[*p.DiscordID] = p.JoinedAt
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM participants WHERE game_id = $1 AND position_type <> $2`,
		game.ID, int(models.PositionHost)); err != nil {
		return fmt.Errorf("failed to clear roster: %w", err)
	}

	if err := insertRoster(ctx, tx, game.ID, hostDiscordID, roster); err != nil {
		return err
	}

	// Restore original join instants so the (position, joined_at) tie-break
	// stays stable across roster edits.
	for discordID, t := range joinedAt {
		if _, err := tx.Exec(ctx,
			`UPDATE participants SET joined_at = $3
			  WHERE game_id = $1 AND discord_id = $2`, game.ID, discordID, t); err != nil {
			return fmt.Errorf("failed to restore joined_at: %w", err)
		}
	}
	return nil
}
