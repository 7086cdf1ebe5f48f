package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/models"
	"github.com/gamenightbot/gamenight/pkg/services"
)

func strptr(s string) *string { return &s }

func testDetail() *services.GameDetail {
	return &services.GameDetail{
		Game: models.Game{
			ID:              "game-1",
			Title:           "Friday Catan",
			Description:     "Bring snacks",
			Instructions:    "Voice 1 at start time",
			Location:        "Voice 1",
			ScheduledAt:     time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC),
			DurationMinutes: 120,
			MaxPlayers:      2,
			Status:          models.GameScheduled,
			SignupMethod:    models.SignupSelf,
			NotifyRoleIDs:   []string{"role-1"},
		},
		Participants: []models.Participant{
			{ID: "p1", DiscordID: strptr("100"), Mention: "<@100>", PositionType: models.PositionHost},
			{ID: "p2", DiscordID: strptr("200"), Mention: "<@200>", PositionType: models.PositionRegular, Position: 0},
			{ID: "p3", DiscordID: strptr("300"), Mention: "<@300>", PositionType: models.PositionRegular, Position: 1},
		},
	}
}

func TestRenderAnnouncement(t *testing.T) {
	msg := RenderAnnouncement(testDetail(), "https://games.example.com")

	require.Len(t, msg.Embeds, 1)
	embed := msg.Embeds[0]
	assert.Equal(t, "Friday Catan", embed.Title)
	assert.Equal(t, colorScheduled, embed.Color)
	assert.Equal(t, "https://games.example.com/download-calendar/game-1", embed.URL)
	assert.Equal(t, "<@&role-1>", msg.Content)

	require.NotNil(t, msg.AllowedMentions)
	assert.Empty(t, msg.AllowedMentions.Parse)
	assert.Equal(t, []string{"role-1"}, msg.AllowedMentions.Roles)

	unix := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC).Unix()
	fields := map[string]string{}
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, fmt.Sprintf("<t:%d:F> (<t:%d:R>)", unix, unix), fields["When"])
	assert.Equal(t, "Voice 1", fields["Where"])
	assert.Equal(t, "Voice 1 at start time", fields["How to join"])
	assert.Equal(t, "1. <@100> (host)\n2. <@200>", fields["Players (2/2)"])
	assert.Equal(t, "1. <@300>", fields["Waitlist (1)"])
}

func TestRenderAnnouncementEmptyRoster(t *testing.T) {
	detail := testDetail()
	detail.Participants = nil

	msg := RenderAnnouncement(detail, "")
	fields := msg.Embeds[0].Fields
	assert.Equal(t, "*Nobody yet*", fields[len(fields)-2].Value)
	assert.Empty(t, msg.Embeds[0].URL)
}

func TestButtonRowStates(t *testing.T) {
	tests := []struct {
		name          string
		status        models.GameStatus
		signup        models.SignupMethod
		joinDisabled  bool
		leaveDisabled bool
	}{
		{"self signup scheduled", models.GameScheduled, models.SignupSelf, false, false},
		{"host selected scheduled", models.GameScheduled, models.SignupHostSelected, true, false},
		{"in progress", models.GameInProgress, models.SignupSelf, true, true},
		{"cancelled", models.GameCancelled, models.SignupSelf, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := &models.Game{ID: "g", Status: tt.status, SignupMethod: tt.signup}
			rows := buttonRow(game)
			require.Len(t, rows, 1)
			buttons := rows[0].Components
			require.Len(t, buttons, 2)

			assert.Equal(t, "join:g", buttons[0].CustomID)
			assert.Equal(t, tt.joinDisabled, buttons[0].Disabled)
			assert.Equal(t, "leave:g", buttons[1].CustomID)
			assert.Equal(t, tt.leaveDisabled, buttons[1].Disabled)
		})
	}
}

func TestStatusColors(t *testing.T) {
	assert.Equal(t, colorScheduled, statusColor(models.GameScheduled))
	assert.Equal(t, colorInProgress, statusColor(models.GameInProgress))
	assert.Equal(t, colorFinished, statusColor(models.GameCompleted))
	assert.Equal(t, colorCancelled, statusColor(models.GameCancelled))
}

func TestParseCustomID(t *testing.T) {
	action, gameID, ok := ParseCustomID("join:abc-123")
	require.True(t, ok)
	assert.Equal(t, "join", action)
	assert.Equal(t, "abc-123", gameID)

	_, _, ok = ParseCustomID("join")
	assert.False(t, ok)
	_, _, ok = ParseCustomID("join:")
	assert.False(t, ok)
}

func TestRenderReminderDM(t *testing.T) {
	game := &testDetail().Game
	msg := RenderReminderDM(game, 30)
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "Reminder: Friday Catan", msg.Embeds[0].Title)
	require.NotNil(t, msg.Embeds[0].Footer)
	assert.Equal(t, "30 minute heads-up", msg.Embeds[0].Footer.Text)
}

func TestFindHostAndParticipant(t *testing.T) {
	detail := testDetail()

	host := findHost(detail.Participants)
	require.NotNil(t, host)
	assert.Equal(t, "p1", host.ID)

	assert.Nil(t, findHost(nil))

	p := findParticipant(detail.Participants, "p3")
	require.NotNil(t, p)
	assert.Equal(t, "<@300>", p.Mention)
	assert.Nil(t, findParticipant(detail.Participants, "missing"))
}
