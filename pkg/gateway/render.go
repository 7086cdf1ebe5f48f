// Package gateway is the Discord-facing service: it consumes bus events,
// renders and edits announcement messages, answers button and slash-command
// interactions, and sends DMs for notifications and promotions.
package gateway

import (
	"fmt"
	"strings"

	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/models"
	"github.com/gamenightbot/gamenight/pkg/ordering"
	"github.com/gamenightbot/gamenight/pkg/services"
)

// Embed accent colors per game status.
const (
	colorScheduled  = 0x57F287
	colorInProgress = 0xFEE75C
	colorFinished   = 0x99AAB5
	colorCancelled  = 0xED4245
)

// Button custom-id prefixes. The game id rides after the colon.
const (
	customIDJoin  = "join"
	customIDLeave = "leave"
)

// JoinCustomID builds the join button id for a game.
func JoinCustomID(gameID string) string { return customIDJoin + ":" + gameID }

// LeaveCustomID builds the leave button id for a game.
func LeaveCustomID(gameID string) string { return customIDLeave + ":" + gameID }

// ParseCustomID splits a button custom id into action and game id.
func ParseCustomID(customID string) (action, gameID string, ok bool) {
	action, gameID, ok = strings.Cut(customID, ":")
	if !ok || gameID == "" {
		return "", "", false
	}
	return action, gameID, true
}

// RenderAnnouncement builds the full announcement message for a game:
// embed, roster, waitlist, and the join/leave button row. Rendering is a
// pure projection of game state, which is what makes every message update
// idempotent.
func RenderAnnouncement(detail *services.GameDetail, frontendURL string) discord.MessageCreate {
	part := ordering.Partition(detail.Participants, detail.MaxPlayers)

	embed := discord.Embed{
		Title:       detail.Title,
		Description: detail.Description,
		Color:       statusColor(detail.Status),
		Timestamp:   detail.ScheduledAt.UTC().Format("2006-01-02T15:04:05Z"),
		Fields: []discord.EmbedField{
			{
				Name:   "When",
				Value:  fmt.Sprintf("<t:%d:F> (<t:%d:R>)", detail.ScheduledAt.Unix(), detail.ScheduledAt.Unix()),
				Inline: true,
			},
		},
	}
	if detail.Location != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name: "Where", Value: detail.Location, Inline: true,
		})
	}
	embed.Fields = append(embed.Fields, discord.EmbedField{
		Name:  fmt.Sprintf("Players (%d/%d)", len(part.Confirmed), detail.MaxPlayers),
		Value: rosterLines(part.Confirmed),
	})
	if len(part.Overflow) > 0 {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:  fmt.Sprintf("Waitlist (%d)", len(part.Overflow)),
			Value: rosterLines(part.Overflow),
		})
	}
	if detail.Instructions != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name: "How to join", Value: detail.Instructions,
		})
	}
	embed.Footer = &discord.EmbedFooter{Text: statusFooter(detail.Status)}
	if frontendURL != "" {
		embed.URL = frontendURL + "/download-calendar/" + detail.ID
	}

	return discord.MessageCreate{
		Content:         notifyContent(detail.NotifyRoleIDs),
		Embeds:          []discord.Embed{embed},
		Components:      buttonRow(&detail.Game),
		AllowedMentions: &discord.AllowedMentions{Parse: []string{}, Roles: detail.NotifyRoleIDs},
	}
}

// rosterLines numbers a bucket's entries in partition order.
func rosterLines(participants []models.Participant) string {
	if len(participants) == 0 {
		return "*Nobody yet*"
	}
	var b strings.Builder
	for i, p := range participants {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, p.Mention)
		if p.PositionType == models.PositionHost {
			b.WriteString(" (host)")
		}
	}
	return b.String()
}

func notifyContent(roleIDs []string) string {
	if len(roleIDs) == 0 {
		return ""
	}
	mentions := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		mentions[i] = "<@&" + id + ">"
	}
	return strings.Join(mentions, " ")
}

// buttonRow renders the join/leave buttons. The join button follows the
// signup method: self-signup games enable it, host-selected games disable
// it; non-SCHEDULED games disable both.
func buttonRow(game *models.Game) []discord.Component {
	open := game.Status == models.GameScheduled
	return []discord.Component{{
		Type: discord.ComponentActionRow,
		Components: []discord.Component{
			{
				Type:     discord.ComponentButton,
				Style:    discord.ButtonPrimary,
				Label:    "Join",
				CustomID: JoinCustomID(game.ID),
				Disabled: !open || game.SignupMethod != models.SignupSelf,
			},
			{
				Type:     discord.ComponentButton,
				Style:    discord.ButtonSecondary,
				Label:    "Leave",
				CustomID: LeaveCustomID(game.ID),
				Disabled: !open,
			},
		},
	}}
}

func statusColor(status models.GameStatus) int {
	switch status {
	case models.GameInProgress:
		return colorInProgress
	case models.GameCompleted:
		return colorFinished
	case models.GameCancelled:
		return colorCancelled
	default:
		return colorScheduled
	}
}

func statusFooter(status models.GameStatus) string {
	switch status {
	case models.GameInProgress:
		return "In progress"
	case models.GameCompleted:
		return "Finished"
	case models.GameCancelled:
		return "Cancelled"
	default:
		return "Scheduled"
	}
}

// RenderReminderDM builds the reminder direct message.
func RenderReminderDM(game *models.Game, offsetMinutes int) discord.MessageCreate {
	return discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       fmt.Sprintf("Reminder: %s", game.Title),
			Description: fmt.Sprintf("Starts <t:%d:R>.", game.ScheduledAt.Unix()),
			Color:       colorScheduled,
			Fields: []discord.EmbedField{{
				Name: "When", Value: fmt.Sprintf("<t:%d:F>", game.ScheduledAt.Unix()),
			}},
			Footer: &discord.EmbedFooter{Text: fmt.Sprintf("%d minute heads-up", offsetMinutes)},
		}},
	}
}

// RenderPromotionDM tells a user they moved off the waitlist.
func RenderPromotionDM(game *models.Game) discord.MessageCreate {
	return discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "You're in!",
			Description: fmt.Sprintf("A spot opened up in **%s** and you moved off the waitlist.", game.Title),
			Color:       colorScheduled,
			Fields: []discord.EmbedField{{
				Name: "When", Value: fmt.Sprintf("<t:%d:F>", game.ScheduledAt.Unix()),
			}},
		}},
	}
}

// RenderJoinDM tells a host someone joined their game.
func RenderJoinDM(game *models.Game, mention string) discord.MessageCreate {
	return discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "New signup",
			Description: fmt.Sprintf("%s joined **%s**.", mention, game.Title),
			Color:       colorScheduled,
		}},
	}
}
