// Package models defines the domain entities shared by the API, the
// gateway, and the schedule daemons. All IDs are UUID strings except
// Discord-side identifiers, which are snowflake strings.
package models

import "time"

// Guild is a tenant: one Discord server. Every template, game, and
// participant belongs to exactly one guild and never moves.
type Guild struct {
	ID        string    `json:"id"`
	DiscordID string    `json:"discord_id"`
	Name      string    `json:"name"`
	IconHash  string    `json:"icon_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	GuildConfig `json:"config"`
}

// GuildConfig is the small per-guild configuration set.
type GuildConfig struct {
	// BotManagerRoleIDs lists Discord role ids whose holders may manage any
	// game or template in the guild.
	BotManagerRoleIDs []string `json:"bot_manager_role_ids"`

	// RequireHostRole, when set, restricts game creation to users holding at
	// least one of the template's allowed host roles.
	RequireHostRole bool `json:"require_host_role"`
}

// User is a projection of a Discord user. Display name and avatar hash are
// cached from Discord; Discord remains authoritative for both.
type User struct {
	ID          string    `json:"id"`
	DiscordID   string    `json:"discord_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarHash  string    `json:"avatar_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
