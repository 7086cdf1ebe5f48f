package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/services"
)

// HandleGatewayEvent is the websocket session's dispatch handler. Only
// the events the bot cares about are decoded; everything else is dropped.
func (g *Gateway) HandleGatewayEvent(ctx context.Context, eventType string, data json.RawMessage) {
	switch eventType {
	case "INTERACTION_CREATE":
		var interaction discord.Interaction
		if err := json.Unmarshal(data, &interaction); err != nil {
			g.logger.Error("Failed to decode interaction", "error", err)
			return
		}
		if err := g.handleInteraction(ctx, &interaction); err != nil {
			g.logger.Error("Interaction handling failed",
				"interaction_id", interaction.ID, "error", err)
		}

	case "GUILD_CREATE":
		var payload discord.Guild
		if err := json.Unmarshal(data, &payload); err != nil {
			g.logger.Error("Failed to decode guild create", "error", err)
			return
		}
		if _, err := g.guilds.EnsureGuild(ctx, payload.ID, payload.Name, payload.Icon); err != nil {
			g.logger.Error("Failed to register guild",
				"guild_discord_id", payload.ID, "error", err)
		}
	}
}

func (g *Gateway) handleInteraction(ctx context.Context, interaction *discord.Interaction) error {
	switch interaction.Type {
	case discord.InteractionPing:
		return g.dc.RespondToInteraction(ctx, interaction.ID, interaction.Token,
			discord.InteractionResponse{Type: discord.ResponsePong})
	case discord.InteractionMessageComponent:
		return g.handleButton(ctx, interaction)
	case discord.InteractionApplicationCommand:
		return g.handleCommand(ctx, interaction)
	default:
		return nil
	}
}

// handleButton runs the join/leave mutation inline and acks with a
// deferred message update on success. The visible announcement edit
// arrives through the bus once the participant event lands.
func (g *Gateway) handleButton(ctx context.Context, interaction *discord.Interaction) error {
	action, gameID, ok := ParseCustomID(interaction.Data.CustomID)
	if !ok {
		return g.ephemeralReply(ctx, interaction, "That button is no longer valid.")
	}

	guild, err := g.guilds.GetByDiscordID(ctx, interaction.GuildID)
	if errors.Is(err, services.ErrNotFound) {
		return g.ephemeralReply(ctx, interaction, "This server is not set up yet.")
	}
	if err != nil {
		return err
	}

	invoker := interaction.Invoker()
	if invoker.ID == "" {
		return g.ephemeralReply(ctx, interaction, "Could not tell who pressed the button.")
	}

	switch action {
	case customIDJoin:
		user, err := g.users.EnsureUser(ctx, invoker)
		if err != nil {
			return err
		}
		result, err := g.participants.Join(ctx, guild.ID, gameID, user)
		switch {
		case errors.Is(err, services.ErrAlreadyExists):
			return g.ephemeralReply(ctx, interaction, "You're already signed up for this game.")
		case errors.Is(err, services.ErrGameNotJoinable):
			return g.ephemeralReply(ctx, interaction, "This game is not open for signup.")
		case errors.Is(err, services.ErrNotFound):
			return g.ephemeralReply(ctx, interaction, "This game no longer exists.")
		case err != nil:
			return err
		}
		if result.Waitlisted {
			return g.ephemeralReply(ctx, interaction,
				"The game is full, so you're on the waitlist. You'll get a DM if a spot opens up.")
		}
		return g.ackUpdate(ctx, interaction)

	case customIDLeave:
		err := g.participants.Leave(ctx, guild.ID, gameID, invoker.ID)
		switch {
		case errors.Is(err, services.ErrNotFound):
			return g.ephemeralReply(ctx, interaction, "You're not signed up for this game.")
		case err != nil:
			return err
		}
		return g.ackUpdate(ctx, interaction)

	default:
		return g.ephemeralReply(ctx, interaction, "That button is no longer valid.")
	}
}

func (g *Gateway) handleCommand(ctx context.Context, interaction *discord.Interaction) error {
	switch interaction.Data.Name {
	case commandName:
		content := "Plan game nights from the dashboard."
		if g.frontendURL != "" {
			content = fmt.Sprintf("Plan game nights from the dashboard: %s", g.frontendURL)
		}
		return g.ephemeralReply(ctx, interaction, content)
	default:
		return g.ephemeralReply(ctx, interaction, "Unknown command.")
	}
}

// ackUpdate acknowledges a component press without changing the message;
// the real edit comes from the event consumer.
func (g *Gateway) ackUpdate(ctx context.Context, interaction *discord.Interaction) error {
	return g.dc.RespondToInteraction(ctx, interaction.ID, interaction.Token,
		discord.InteractionResponse{Type: discord.ResponseDeferredUpdateMessage})
}

func (g *Gateway) ephemeralReply(ctx context.Context, interaction *discord.Interaction, content string) error {
	return g.dc.RespondToInteraction(ctx, interaction.ID, interaction.Token,
		discord.InteractionResponse{
			Type: discord.ResponseChannelMessage,
			Data: &discord.InteractionResponseData{
				Content: content,
				Flags:   discord.MessageFlagEphemeral,
			},
		})
}
