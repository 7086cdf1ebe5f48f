package services

import (
	"time"

	"github.com/gamenightbot/gamenight/pkg/models"
)

// ParticipantEntry is one participant line on a game create/update form:
// either a mention to resolve against the guild's member list or a free
// placeholder string.
type ParticipantEntry struct {
	Input        string              `json:"input"`
	PositionType models.PositionType `json:"position_type"`
	Position     int                 `json:"position"`
}

// ResolvedMention is a participant entry after mention validation.
type ResolvedMention struct {
	Input        string              `json:"input"`
	PositionType models.PositionType `json:"position_type"`
	Position     int                 `json:"position"`

	// UserDiscordID is empty for placeholder entries.
	UserDiscordID string `json:"user_discord_id,omitempty"`
	Username      string `json:"username,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
}

// IsPlaceholder reports whether the entry resolved to a placeholder rather
// than a real user.
func (r ResolvedMention) IsPlaceholder() bool {
	return r.UserDiscordID == ""
}

// CreateTemplateRequest creates a template in a guild.
type CreateTemplateRequest struct {
	Name                   string                `json:"name"`
	ChannelID              string                `json:"channel_id"`
	NotifyRoleIDs          []string              `json:"notify_role_ids"`
	AllowedHostRoleIDs     []string              `json:"allowed_host_role_ids"`
	AllowedPlayerRoleIDs   []string              `json:"allowed_player_role_ids"`
	DefaultMaxPlayers      int                   `json:"default_max_players"`
	DefaultReminderMinutes []int                 `json:"default_reminder_minutes"`
	DefaultDurationMinutes int                   `json:"default_duration_minutes"`
	DefaultLocation        string                `json:"default_location"`
	DefaultInstructions    string                `json:"default_instructions"`
	AllowedSignupMethods   []models.SignupMethod `json:"allowed_signup_methods"`
	DefaultSignupMethod    models.SignupMethod   `json:"default_signup_method"`
	LockedFields           []string              `json:"locked_fields"`
}

// UpdateTemplateRequest updates a template. Nil fields are left unchanged.
type UpdateTemplateRequest struct {
	Name                   *string                `json:"name,omitempty"`
	ChannelID              *string                `json:"channel_id,omitempty"`
	NotifyRoleIDs          *[]string              `json:"notify_role_ids,omitempty"`
	AllowedHostRoleIDs     *[]string              `json:"allowed_host_role_ids,omitempty"`
	AllowedPlayerRoleIDs   *[]string              `json:"allowed_player_role_ids,omitempty"`
	DefaultMaxPlayers      *int                   `json:"default_max_players,omitempty"`
	DefaultReminderMinutes *[]int                 `json:"default_reminder_minutes,omitempty"`
	DefaultDurationMinutes *int                   `json:"default_duration_minutes,omitempty"`
	DefaultLocation        *string                `json:"default_location,omitempty"`
	DefaultInstructions    *string                `json:"default_instructions,omitempty"`
	AllowedSignupMethods   *[]models.SignupMethod `json:"allowed_signup_methods,omitempty"`
	DefaultSignupMethod    *models.SignupMethod   `json:"default_signup_method,omitempty"`
	LockedFields           *[]string              `json:"locked_fields,omitempty"`
}

// CreateGameRequest creates a game from a template. Zero-valued optional
// fields fall back to the template defaults; locked template fields
// override whatever the request carries.
type CreateGameRequest struct {
	TemplateID      string              `json:"template_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Instructions    string              `json:"instructions"`
	ScheduledAt     time.Time           `json:"scheduled_at"`
	DurationMinutes int                 `json:"duration_minutes"`
	Location        string              `json:"location"`
	MaxPlayers      int                 `json:"max_players"`
	ReminderMinutes []int               `json:"reminder_minutes"`
	NotifyRoleIDs   []string            `json:"notify_role_ids"`
	SignupMethod    models.SignupMethod `json:"signup_method"`
	Participants    []ParticipantEntry  `json:"participants"`

	Thumbnail  []byte `json:"-"`
	ThumbMIME  string `json:"-"`
	Banner     []byte `json:"-"`
	BannerMIME string `json:"-"`
}

// UpdateGameRequest updates a game. Nil fields are left unchanged; a
// non-nil Participants list replaces the roster.
type UpdateGameRequest struct {
	Title           *string              `json:"title,omitempty"`
	Description     *string              `json:"description,omitempty"`
	Instructions    *string              `json:"instructions,omitempty"`
	ScheduledAt     *time.Time           `json:"scheduled_at,omitempty"`
	DurationMinutes *int                 `json:"duration_minutes,omitempty"`
	Location        *string              `json:"location,omitempty"`
	MaxPlayers      *int                 `json:"max_players,omitempty"`
	ReminderMinutes *[]int               `json:"reminder_minutes,omitempty"`
	NotifyRoleIDs   *[]string            `json:"notify_role_ids,omitempty"`
	SignupMethod    *models.SignupMethod `json:"signup_method,omitempty"`
	Participants    *[]ParticipantEntry  `json:"participants,omitempty"`
}

// UpdateGuildConfigRequest updates a guild's configuration.
type UpdateGuildConfigRequest struct {
	BotManagerRoleIDs *[]string `json:"bot_manager_role_ids,omitempty"`
	RequireHostRole   *bool     `json:"require_host_role,omitempty"`
}
