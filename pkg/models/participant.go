package models

import "time"

// PositionType orders participant tiers. The integer values are sparse so
// future tiers can slot between existing ones without renumbering rows.
type PositionType int

// Participant tiers, lowest sorts first. Placeholders carry no tier of
// their own: a placeholder keeps the (position_type, position) slot it was
// assigned, so it can hold a confirmed seat ahead of a later-joining user.
const (
	PositionHost    PositionType = 0
	PositionCohost  PositionType = 10
	PositionRegular PositionType = 20
)

// ValidPositionType reports whether p is a known tier.
func ValidPositionType(p PositionType) bool {
	switch p {
	case PositionHost, PositionCohost, PositionRegular:
		return true
	}
	return false
}

// Participant attaches a user or a placeholder string to a game.
// UserID is nil for placeholders. (game_id, user_id) is unique for real
// users, and every game has exactly one PositionHost row.
type Participant struct {
	ID     string `json:"id"`
	GameID string `json:"game_id"`

	// UserID is the internal user id; nil for placeholder rows.
	UserID *string `json:"user_id,omitempty"`

	// DiscordID is the participant's Discord snowflake; nil for placeholders.
	DiscordID *string `json:"discord_id,omitempty"`

	// Mention is the rendered display string: "<@snowflake>" for real users,
	// the raw placeholder text otherwise.
	Mention string `json:"mention"`

	PositionType PositionType `json:"position_type"`

	// Position orders participants within a tier.
	Position int `json:"position"`

	JoinedAt time.Time `json:"joined_at"`
}

// IsPlaceholder reports whether this row is a placeholder slot rather than
// a real Discord user.
func (p *Participant) IsPlaceholder() bool {
	return p.UserID == nil
}
