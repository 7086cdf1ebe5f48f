package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/models"
	"github.com/gamenightbot/gamenight/pkg/ordering"
	"github.com/gamenightbot/gamenight/pkg/services"
)

// Gateway glues the bus and the Discord session to the services layer.
type Gateway struct {
	games        *services.GameService
	participants *services.ParticipantService
	guilds       *services.GuildService
	users        *services.UserService
	dc           *discord.CachedClient
	updater      *MessageUpdater
	frontendURL  string
	logger       *slog.Logger
}

// New wires a Gateway.
func New(
	games *services.GameService,
	participants *services.ParticipantService,
	guilds *services.GuildService,
	users *services.UserService,
	dc *discord.CachedClient,
	updater *MessageUpdater,
	frontendURL string,
) *Gateway {
	return &Gateway{
		games:        games,
		participants: participants,
		guilds:       guilds,
		users:        users,
		dc:           dc,
		updater:      updater,
		frontendURL:  frontendURL,
		logger:       slog.Default().With("component", "gateway"),
	}
}

// HandleEvent is the bus consumer handler. Every branch is idempotent:
// announcements are edited to a pure projection of current state, DMs are
// deduplicated by the platform's own semantics, and events referencing
// state that no longer exists return ErrStale so the message is acked
// instead of looping through the DLQ.
func (g *Gateway) HandleEvent(ctx context.Context, env bus.Envelope) error {
	switch env.EventType {
	case bus.KeyGameCreated, bus.KeyGameUpdated, bus.KeyGameCancelled,
		bus.KeyGameStarted, bus.KeyGameCompleted:
		var payload bus.GamePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.EventType, err)
		}
		return g.refreshAnnouncement(ctx, env.GuildID, payload.GameID)

	case bus.KeyParticipantJoined, bus.KeyParticipantLeft, bus.KeyParticipantRemoved:
		var payload bus.ParticipantPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.EventType, err)
		}
		return g.refreshAnnouncement(ctx, env.GuildID, payload.GameID)

	case bus.KeyParticipantPromoted:
		var payload bus.ParticipantPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("decoding promotion payload: %w", err)
		}
		return g.sendPromotionDM(ctx, env.GuildID, payload)

	case bus.KeyNotificationDue:
		var payload bus.NotificationPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("decoding notification payload: %w", err)
		}
		return g.sendNotification(ctx, env.GuildID, payload)

	default:
		g.logger.Warn("Ignoring unknown event type", "event_type", env.EventType)
		return nil
	}
}

// refreshAnnouncement re-renders a game's announcement and posts or edits
// it. Editing to a derived rendering makes duplicate deliveries harmless.
func (g *Gateway) refreshAnnouncement(ctx context.Context, guildID, gameID string) error {
	detail, err := g.games.Get(ctx, guildID, gameID)
	if errors.Is(err, services.ErrNotFound) {
		g.logger.Info("Game vanished before announcement refresh", "game_id", gameID)
		return bus.ErrStale
	}
	if err != nil {
		return err
	}

	msg := RenderAnnouncement(detail, g.frontendURL)

	if detail.MessageID == nil {
		created, err := g.dc.CreateMessage(ctx, detail.ChannelID, msg)
		if err != nil {
			return fmt.Errorf("posting announcement for game %s: %w", gameID, err)
		}
		return g.games.SetMessageID(ctx, guildID, gameID, created.ID)
	}

	return g.updater.Update(ctx, detail.ChannelID, *detail.MessageID, msg)
}

func (g *Gateway) sendPromotionDM(ctx context.Context, guildID string, payload bus.ParticipantPayload) error {
	detail, err := g.games.Get(ctx, guildID, payload.GameID)
	if errors.Is(err, services.ErrNotFound) {
		return bus.ErrStale
	}
	if err != nil {
		return err
	}
	if payload.DiscordID == "" {
		return bus.ErrStale
	}

	// Promotion is only news while the game is still upcoming.
	if detail.Status != models.GameScheduled {
		return bus.ErrStale
	}
	return g.dc.SendDM(ctx, payload.DiscordID, RenderPromotionDM(&detail.Game))
}

func (g *Gateway) sendNotification(ctx context.Context, guildID string, payload bus.NotificationPayload) error {
	detail, err := g.games.Get(ctx, guildID, payload.GameID)
	if errors.Is(err, services.ErrNotFound) {
		return bus.ErrStale
	}
	if err != nil {
		return err
	}

	switch payload.Kind {
	case bus.KindReminder:
		if detail.Status != models.GameScheduled {
			// The broker's TTL usually drops these; a late delivery inside
			// the expiry race is acked, not retried.
			return bus.ErrStale
		}
		part := ordering.Partition(detail.Participants, detail.MaxPlayers)
		msg := RenderReminderDM(&detail.Game, payload.OffsetMinutes)
		for _, p := range part.Confirmed {
			if p.DiscordID == nil {
				continue
			}
			if err := g.dc.SendDM(ctx, *p.DiscordID, msg); err != nil {
				return fmt.Errorf("reminding %s: %w", *p.DiscordID, err)
			}
		}
		return nil

	case bus.KindJoin:
		joined := findParticipant(detail.Participants, payload.ParticipantID)
		if joined == nil {
			// Left again before the notification delay elapsed.
			return bus.ErrStale
		}
		host := findHost(detail.Participants)
		if host == nil || host.DiscordID == nil {
			return bus.ErrStale
		}
		return g.dc.SendDM(ctx, *host.DiscordID, RenderJoinDM(&detail.Game, joined.Mention))

	default:
		g.logger.Warn("Ignoring unknown notification kind", "kind", payload.Kind)
		return nil
	}
}

func findParticipant(participants []models.Participant, id string) *models.Participant {
	for i := range participants {
		if participants[i].ID == id {
			return &participants[i]
		}
	}
	return nil
}

func findHost(participants []models.Participant) *models.Participant {
	for i := range participants {
		if participants[i].PositionType == models.PositionHost {
			return &participants[i]
		}
	}
	return nil
}
