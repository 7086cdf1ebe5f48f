package models

import "time"

// SignupMethod controls how players get onto a game's roster.
type SignupMethod string

// Signup method values.
const (
	// SignupSelf lets any eligible member join via the announcement button.
	SignupSelf SignupMethod = "SELF_SIGNUP"
	// SignupHostSelected disables the join button; the host curates the roster.
	SignupHostSelected SignupMethod = "HOST_SELECTED"
)

// ValidSignupMethod reports whether m is a known signup method.
func ValidSignupMethod(m SignupMethod) bool {
	return m == SignupSelf || m == SignupHostSelected
}

// Template is a per-guild prototype for games. Fields marked locked are
// copied verbatim into new games; the rest pre-populate the create form and
// may be overridden by the host.
type Template struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Name    string `json:"name"`

	// ChannelID is the Discord channel announcements are posted in.
	ChannelID string `json:"channel_id"`

	// NotifyRoleIDs are mentioned in the announcement post.
	NotifyRoleIDs []string `json:"notify_role_ids"`

	// AllowedHostRoleIDs gates who may create games from this template.
	// Empty means any member (subject to the guild's RequireHostRole flag).
	AllowedHostRoleIDs []string `json:"allowed_host_role_ids"`

	// AllowedPlayerRoleIDs gates who may see and join games created from
	// this template. Empty means every member.
	AllowedPlayerRoleIDs []string `json:"allowed_player_role_ids"`

	DefaultMaxPlayers      int            `json:"default_max_players"`
	DefaultReminderMinutes []int          `json:"default_reminder_minutes"`
	DefaultDurationMinutes int            `json:"default_duration_minutes"`
	DefaultLocation        string         `json:"default_location"`
	DefaultInstructions    string         `json:"default_instructions"`
	AllowedSignupMethods   []SignupMethod `json:"allowed_signup_methods"`
	DefaultSignupMethod    SignupMethod   `json:"default_signup_method"`

	// LockedFields names game fields that games created from this template
	// may not override (e.g. "max_players", "location").
	LockedFields []string `json:"locked_fields"`

	// IsDefault marks the guild's default template. Exactly one per guild;
	// the default cannot be deleted.
	IsDefault bool `json:"is_default"`

	// SortOrder totally orders templates within a guild.
	SortOrder int `json:"sort_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the named game field is locked by the template.
func (t *Template) Locked(field string) bool {
	for _, f := range t.LockedFields {
		if f == field {
			return true
		}
	}
	return false
}

// AllowsSignupMethod reports whether m may be used for games created from
// this template. An empty allowed set permits every method.
func (t *Template) AllowsSignupMethod(m SignupMethod) bool {
	if len(t.AllowedSignupMethods) == 0 {
		return true
	}
	for _, a := range t.AllowedSignupMethods {
		if a == m {
			return true
		}
	}
	return false
}
