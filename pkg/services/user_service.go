package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/models"
)

// UserService maintains the local projection of Discord users. Discord is
// authoritative; rows here exist so participants can reference a stable
// internal id.
type UserService struct {
	db *database.Client
}

// NewUserService creates a new UserService.
func NewUserService(db *database.Client) *UserService {
	return &UserService{db: db}
}

// EnsureUser upserts the projection row for a Discord user and returns it.
func (s *UserService) EnsureUser(ctx context.Context, du discord.User) (*models.User, error) {
	if du.ID == "" {
		return nil, NewValidationError("discord_id", "required")
	}

	var u models.User
	err := s.db.Pool().QueryRow(ctx,
		`INSERT INTO users (discord_id, username, display_name, avatar_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (discord_id) DO UPDATE
		   SET username = EXCLUDED.username,
		       display_name = EXCLUDED.display_name,
		       avatar_hash = EXCLUDED.avatar_hash,
		       updated_at = now()
		 RETURNING id, discord_id, username, display_name, avatar_hash, created_at, updated_at`,
		du.ID, du.Username, du.DisplayName(), du.Avatar,
	).Scan(&u.ID, &u.DiscordID, &u.Username, &u.DisplayName, &u.AvatarHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", du.ID, err)
	}
	return &u, nil
}

// GetByDiscordID looks a user up by Discord snowflake.
func (s *UserService) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	var u models.User
	err := s.db.Pool().QueryRow(ctx,
		`SELECT id, discord_id, username, display_name, avatar_hash, created_at, updated_at
		   FROM users WHERE discord_id = $1`, discordID,
	).Scan(&u.ID, &u.DiscordID, &u.Username, &u.DisplayName, &u.AvatarHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by discord id: %w", err)
	}
	return &u, nil
}
