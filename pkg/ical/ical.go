// Package ical renders a game as an iCalendar file for the export
// endpoint.
package ical

import (
	"fmt"
	"strings"

	ics "github.com/arran4/golang-ical"

	"github.com/gamenightbot/gamenight/pkg/models"
)

// ContentType is the MIME type for serialized calendars.
const ContentType = "text/calendar"

// Export serializes a game as a single-event calendar and returns the
// bytes plus the attachment filename ("<Title>_YYYY-MM-DD.ics").
func Export(game *models.Game, guildName string) ([]byte, string, error) {
	if game == nil {
		return nil, "", fmt.Errorf("no game to export")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//gamenight//EN")

	event := cal.AddEvent(game.ID + "@gamenight")
	event.SetDtStampTime(game.UpdatedAt.UTC())
	event.SetStartAt(game.ScheduledAt.UTC())
	event.SetEndAt(game.EndsAt().UTC())
	event.SetSummary(game.Title)
	if game.Description != "" {
		event.SetDescription(game.Description)
	}
	if game.Location != "" {
		event.SetLocation(game.Location)
	}
	if guildName != "" {
		event.SetOrganizer(guildName)
	}

	return []byte(cal.Serialize()), Filename(game), nil
}

// Filename builds the download name. Characters outside a conservative
// set are replaced so the Content-Disposition header stays well-formed.
func Filename(game *models.Game) string {
	title := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, game.Title)
	if title == "" {
		title = "game"
	}
	return fmt.Sprintf("%s_%s.ics", title, game.ScheduledAt.UTC().Format("2006-01-02"))
}
