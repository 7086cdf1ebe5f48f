package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/models"
)

func testTemplate() *models.Template {
	return &models.Template{
		ID:                     "tmpl-1",
		GuildID:                "guild-1",
		Name:                   "Friday games",
		ChannelID:              "chan-1",
		NotifyRoleIDs:          []string{"role-notify"},
		DefaultMaxPlayers:      4,
		DefaultReminderMinutes: []int{60, 15},
		DefaultDurationMinutes: 120,
		DefaultLocation:        "Voice 1",
		DefaultInstructions:    "Bring snacks",
		DefaultSignupMethod:    models.SignupSelf,
	}
}

func TestApplyTemplateToCreateFillsDefaults(t *testing.T) {
	tmpl := testTemplate()
	req := CreateGameRequest{
		TemplateID:  tmpl.ID,
		Title:       "Catan",
		ScheduledAt: time.Now().Add(time.Hour),
	}

	applyTemplateToCreate(&req, tmpl)

	assert.Equal(t, 120, req.DurationMinutes)
	assert.Equal(t, 4, req.MaxPlayers)
	assert.Equal(t, []int{60, 15}, req.ReminderMinutes)
	assert.Equal(t, []string{"role-notify"}, req.NotifyRoleIDs)
	assert.Equal(t, "Voice 1", req.Location)
	assert.Equal(t, "Bring snacks", req.Instructions)
	assert.Equal(t, models.SignupSelf, req.SignupMethod)
}

func TestApplyTemplateToCreateKeepsOverrides(t *testing.T) {
	tmpl := testTemplate()
	req := CreateGameRequest{
		TemplateID:      tmpl.ID,
		Title:           "Catan",
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 90,
		MaxPlayers:      6,
		Location:        "Voice 2",
		SignupMethod:    models.SignupHostSelected,
	}

	applyTemplateToCreate(&req, tmpl)

	assert.Equal(t, 90, req.DurationMinutes)
	assert.Equal(t, 6, req.MaxPlayers)
	assert.Equal(t, "Voice 2", req.Location)
	assert.Equal(t, models.SignupHostSelected, req.SignupMethod)
}

func TestApplyTemplateToCreateLockedFieldsWin(t *testing.T) {
	tmpl := testTemplate()
	tmpl.LockedFields = []string{"max_players", "location", "signup_method"}
	req := CreateGameRequest{
		TemplateID:      tmpl.ID,
		Title:           "Catan",
		ScheduledAt:     time.Now().Add(time.Hour),
		MaxPlayers:      99,
		Location:        "Somewhere else",
		SignupMethod:    models.SignupHostSelected,
		DurationMinutes: 90,
	}

	applyTemplateToCreate(&req, tmpl)

	assert.Equal(t, 4, req.MaxPlayers, "locked field overrides the request")
	assert.Equal(t, "Voice 1", req.Location)
	assert.Equal(t, models.SignupSelf, req.SignupMethod)
	assert.Equal(t, 90, req.DurationMinutes, "unlocked field keeps the override")
}

func TestValidateGameCreate(t *testing.T) {
	tmpl := testTemplate()
	base := CreateGameRequest{
		TemplateID:      tmpl.ID,
		Title:           "Catan",
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 60,
		MaxPlayers:      4,
		SignupMethod:    models.SignupSelf,
	}

	assert.NoError(t, validateGameCreate(base, tmpl))

	missingTitle := base
	missingTitle.Title = ""
	assert.True(t, IsValidationError(validateGameCreate(missingTitle, tmpl)))

	badDuration := base
	badDuration.DurationMinutes = 0
	assert.True(t, IsValidationError(validateGameCreate(badDuration, tmpl)))

	badOffset := base
	badOffset.ReminderMinutes = []int{60, -5}
	assert.True(t, IsValidationError(validateGameCreate(badOffset, tmpl)))

	badMethod := base
	badMethod.SignupMethod = models.SignupMethod("OPEN_DOOR")
	assert.True(t, IsValidationError(validateGameCreate(badMethod, tmpl)))
}

func TestValidateGameCreateSignupMethodConstrainedByTemplate(t *testing.T) {
	tmpl := testTemplate()
	tmpl.AllowedSignupMethods = []models.SignupMethod{models.SignupHostSelected}

	req := CreateGameRequest{
		TemplateID:      tmpl.ID,
		Title:           "Catan",
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 60,
		SignupMethod:    models.SignupSelf,
	}
	assert.True(t, IsValidationError(validateGameCreate(req, tmpl)))

	req.SignupMethod = models.SignupHostSelected
	assert.NoError(t, validateGameCreate(req, tmpl))
}

func TestCheckLockedFieldsRejectsLockedUpdates(t *testing.T) {
	tmpl := testTemplate()
	tmpl.LockedFields = []string{"max_players"}

	six := 6
	err := checkLockedFields(tmpl, UpdateGameRequest{MaxPlayers: &six})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	title := "New title"
	assert.NoError(t, checkLockedFields(tmpl, UpdateGameRequest{Title: &title}))
}

func TestCheckUpdatable(t *testing.T) {
	title := "t"
	later := time.Now().Add(time.Hour)

	scheduled := &models.Game{Status: models.GameScheduled}
	assert.NoError(t, checkUpdatable(scheduled, UpdateGameRequest{ScheduledAt: &later}))

	inProgress := &models.Game{Status: models.GameInProgress}
	assert.NoError(t, checkUpdatable(inProgress, UpdateGameRequest{Title: &title}))
	assert.Error(t, checkUpdatable(inProgress, UpdateGameRequest{ScheduledAt: &later}),
		"schedule fields freeze once the game started")

	done := &models.Game{Status: models.GameCompleted}
	assert.Error(t, checkUpdatable(done, UpdateGameRequest{Title: &title}))

	cancelled := &models.Game{Status: models.GameCancelled}
	assert.Error(t, checkUpdatable(cancelled, UpdateGameRequest{Title: &title}))
}

func TestScheduleChanged(t *testing.T) {
	at := time.Now()
	base := &models.Game{
		ScheduledAt:     at,
		DurationMinutes: 60,
		MaxPlayers:      4,
		ReminderMinutes: []int{60},
	}

	same := *base
	assert.False(t, scheduleChanged(base, &same))

	moved := *base
	moved.ScheduledAt = at.Add(time.Hour)
	assert.True(t, scheduleChanged(base, &moved))

	longer := *base
	longer.DurationMinutes = 90
	assert.True(t, scheduleChanged(base, &longer))

	bigger := *base
	bigger.MaxPlayers = 5
	assert.True(t, scheduleChanged(base, &bigger))

	reminders := *base
	reminders.ReminderMinutes = []int{60, 15}
	assert.True(t, scheduleChanged(base, &reminders))

	titleOnly := *base
	titleOnly.Title = "renamed"
	assert.False(t, scheduleChanged(base, &titleOnly))
}

func TestApplyGameUpdate(t *testing.T) {
	game := models.Game{
		Title:           "Old",
		MaxPlayers:      4,
		SignupMethod:    models.SignupSelf,
		ReminderMinutes: []int{60},
	}

	title := "New"
	six := 6
	hostSel := models.SignupHostSelected
	applyGameUpdate(&game, UpdateGameRequest{
		Title:        &title,
		MaxPlayers:   &six,
		SignupMethod: &hostSel,
	})

	assert.Equal(t, "New", game.Title)
	assert.Equal(t, 6, game.MaxPlayers)
	assert.Equal(t, models.SignupHostSelected, game.SignupMethod)
	assert.Equal(t, []int{60}, game.ReminderMinutes, "untouched field survives")
}
