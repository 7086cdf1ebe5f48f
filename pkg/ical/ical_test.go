package ical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/models"
)

func testGame() *models.Game {
	return &models.Game{
		ID:              "11111111-2222-3333-4444-555555555555",
		Title:           "Friday Catan Night!",
		Description:     "Bring snacks",
		Location:        "Voice 1",
		ScheduledAt:     time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC),
		DurationMinutes: 120,
		UpdatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestExport(t *testing.T) {
	data, filename, err := Export(testGame(), "My Guild")
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "BEGIN:VEVENT")
	assert.Contains(t, body, "SUMMARY:Friday Catan Night!")
	assert.Contains(t, body, "LOCATION:Voice 1")
	assert.Contains(t, body, "DTSTART:20260306T190000Z")
	assert.Contains(t, body, "DTEND:20260306T210000Z")
	assert.Contains(t, body, "11111111-2222-3333-4444-555555555555@gamenight")

	assert.Equal(t, "Friday_Catan_Night_2026-03-06.ics", filename)
}

func TestExportNilGame(t *testing.T) {
	_, _, err := Export(nil, "")
	assert.Error(t, err)
}

func TestFilenameSanitizesTitle(t *testing.T) {
	g := testGame()
	g.Title = "../../etc/passwd \"quotes\""
	name := Filename(g)
	assert.Equal(t, "etcpasswd_quotes_2026-03-06.ics", name)

	g.Title = "🎲🎲🎲"
	assert.Equal(t, "game_2026-03-06.ics", Filename(g))
}
