package models

import "time"

// NotificationType distinguishes the two kinds of notification-schedule rows.
type NotificationType string

// Notification kinds.
const (
	// NotificationReminder fires offset minutes before the game starts and
	// fans out DMs to every confirmed participant.
	NotificationReminder NotificationType = "reminder"
	// NotificationJoin fires shortly after a join and DMs the host.
	NotificationJoin NotificationType = "join_notification"
)

// NotificationScheduleRow is one pending notification fire. Rows are deleted
// after a confirmed publish; crash recovery re-picks surviving rows.
type NotificationScheduleRow struct {
	ID      int64  `json:"id"`
	GameID  string `json:"game_id"`
	GuildID string `json:"guild_id"`

	Type NotificationType `json:"notification_type"`

	// ParticipantID is set for join notifications only.
	ParticipantID *string `json:"participant_id,omitempty"`

	DueAt time.Time `json:"due_at"`

	// GameScheduledAt is denormalized so the daemon can derive the
	// per-message TTL without re-reading the game row.
	GameScheduledAt time.Time `json:"game_scheduled_at"`

	// OffsetMinutes is the reminder offset; zero for join notifications.
	OffsetMinutes int `json:"offset_minutes"`

	CreatedAt time.Time `json:"created_at"`
}

// StatusScheduleRow is one pending game status change. Two rows per game
// lifecycle: one flips the game to IN_PROGRESS at ScheduledAt, one to
// COMPLETED at ScheduledAt + duration.
type StatusScheduleRow struct {
	ID           int64      `json:"id"`
	GameID       string     `json:"game_id"`
	GuildID      string     `json:"guild_id"`
	TargetStatus GameStatus `json:"target_status"`
	DueAt        time.Time  `json:"due_at"`
	CreatedAt    time.Time  `json:"created_at"`
}
