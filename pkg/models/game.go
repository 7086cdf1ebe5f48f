package models

import "time"

// GameStatus is the lifecycle state of a game.
type GameStatus string

// Game lifecycle states. SCHEDULED → IN_PROGRESS → COMPLETED is driven by
// the status-transition daemon; CANCELLED is terminal and API-driven.
const (
	GameScheduled  GameStatus = "SCHEDULED"
	GameInProgress GameStatus = "IN_PROGRESS"
	GameCompleted  GameStatus = "COMPLETED"
	GameCancelled  GameStatus = "CANCELLED"
)

// Game is a scheduled session owned by one guild and created from one
// template.
type Game struct {
	ID         string `json:"id"`
	GuildID    string `json:"guild_id"`
	TemplateID string `json:"template_id"`

	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions,omitempty"`

	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	MaxPlayers      int       `json:"max_players"`

	// ReminderMinutes are offsets before ScheduledAt at which reminder DMs
	// fire. Each offset maps to one notification_schedule row.
	ReminderMinutes []int `json:"reminder_minutes"`

	// NotifyRoleIDs are mentioned in the announcement post.
	NotifyRoleIDs []string `json:"notify_role_ids"`

	Status       GameStatus   `json:"status"`
	SignupMethod SignupMethod `json:"signup_method"`

	// ChannelID is the Discord channel the announcement lives in.
	ChannelID string `json:"channel_id"`

	// MessageID is the Discord announcement message, nil until first post.
	MessageID *string `json:"message_id,omitempty"`

	ThumbnailMIME string `json:"thumbnail_mime,omitempty"`
	BannerMIME    string `json:"banner_mime,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EndsAt returns the scheduled end instant.
func (g *Game) EndsAt() time.Time {
	return g.ScheduledAt.Add(time.Duration(g.DurationMinutes) * time.Minute)
}

// Joinable reports whether self-signup joins are currently accepted.
func (g *Game) Joinable() bool {
	return g.Status == GameScheduled && g.SignupMethod == SignupSelf
}
