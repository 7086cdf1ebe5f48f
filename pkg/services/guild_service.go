package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/models"
)

// GuildService manages tenant rows and their configuration.
type GuildService struct {
	db *database.Client
}

// NewGuildService creates a new GuildService.
func NewGuildService(db *database.Client) *GuildService {
	return &GuildService{db: db}
}

const guildColumns = `id, discord_id, name, icon_hash, bot_manager_role_ids,
       require_host_role, created_at, updated_at`

func scanGuild(row pgx.Row) (*models.Guild, error) {
	var g models.Guild
	err := row.Scan(&g.ID, &g.DiscordID, &g.Name, &g.IconHash,
		&g.BotManagerRoleIDs, &g.RequireHostRole, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan guild: %w", err)
	}
	return &g, nil
}

// EnsureGuild upserts a guild row. The gateway calls this on GUILD_CREATE;
// a new guild also gets its default template so game creation works
// immediately.
func (s *GuildService) EnsureGuild(ctx context.Context, discordID, name, iconHash string) (*models.Guild, error) {
	if discordID == "" {
		return nil, NewValidationError("discord_id", "required")
	}

	var g *models.Guild
	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		g, err = scanGuild(tx.QueryRow(ctx,
			`INSERT INTO guilds (discord_id, name, icon_hash)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (discord_id) DO UPDATE
			   SET name = EXCLUDED.name,
			       icon_hash = EXCLUDED.icon_hash,
			       updated_at = now()
			 RETURNING `+guildColumns,
			discordID, name, iconHash))
		if err != nil {
			return err
		}

		// The one-default-per-guild index makes this race-safe: a second
		// concurrent GUILD_CREATE loses the insert and that is fine.
		if _, err := tx.Exec(ctx,
			"SELECT set_config('app.current_guild', $1, true)", g.ID); err != nil {
			return fmt.Errorf("setting guild context: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO guild_templates (guild_id, name, channel_id, is_default)
			 SELECT $1, 'Default', '', TRUE
			  WHERE NOT EXISTS (SELECT 1 FROM guild_templates WHERE guild_id = $1 AND is_default)`,
			g.ID)
		if err != nil {
			return fmt.Errorf("failed to seed default template: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetByID fetches a guild by internal id.
func (s *GuildService) GetByID(ctx context.Context, id string) (*models.Guild, error) {
	return scanGuild(s.db.Pool().QueryRow(ctx,
		`SELECT `+guildColumns+` FROM guilds WHERE id = $1`, id))
}

// GetByDiscordID fetches a guild by Discord snowflake.
func (s *GuildService) GetByDiscordID(ctx context.Context, discordID string) (*models.Guild, error) {
	return scanGuild(s.db.Pool().QueryRow(ctx,
		`SELECT `+guildColumns+` FROM guilds WHERE discord_id = $1`, discordID))
}

// ListByDiscordIDs fetches the guild rows for a set of Discord snowflakes,
// preserving only those the bot actually knows.
func (s *GuildService) ListByDiscordIDs(ctx context.Context, discordIDs []string) ([]models.Guild, error) {
	if len(discordIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Pool().Query(ctx,
		`SELECT `+guildColumns+` FROM guilds WHERE discord_id = ANY($1) ORDER BY name`,
		discordIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	defer rows.Close()

	var guilds []models.Guild
	for rows.Next() {
		var g models.Guild
		if err := rows.Scan(&g.ID, &g.DiscordID, &g.Name, &g.IconHash,
			&g.BotManagerRoleIDs, &g.RequireHostRole, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guild: %w", err)
		}
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}

// UpdateConfig updates a guild's configuration.
func (s *GuildService) UpdateConfig(ctx context.Context, guildID string, req UpdateGuildConfigRequest) (*models.Guild, error) {
	var g *models.Guild
	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		current, err := scanGuild(tx.QueryRow(ctx,
			`SELECT `+guildColumns+` FROM guilds WHERE id = $1 FOR UPDATE`, guildID))
		if err != nil {
			return err
		}

		if req.BotManagerRoleIDs != nil {
			current.BotManagerRoleIDs = *req.BotManagerRoleIDs
		}
		if req.RequireHostRole != nil {
			current.RequireHostRole = *req.RequireHostRole
		}

		g, err = scanGuild(tx.QueryRow(ctx,
			`UPDATE guilds
			    SET bot_manager_role_ids = $2, require_host_role = $3, updated_at = now()
			  WHERE id = $1
			 RETURNING `+guildColumns,
			guildID, current.BotManagerRoleIDs, current.RequireHostRole))
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
