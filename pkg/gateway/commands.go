package gateway

import (
	"context"
	"fmt"

	"github.com/gamenightbot/gamenight/pkg/discord"
)

const commandName = "gamenight"

// Commands returns the slash commands the bot registers globally.
func Commands() []discord.ApplicationCommand {
	return []discord.ApplicationCommand{
		{
			Name:        commandName,
			Description: "Get a link to the game night dashboard",
		},
	}
}

// RegisterCommands overwrites the application's global command set. Safe
// to run on every startup; the platform treats the PUT as a full replace.
func (g *Gateway) RegisterCommands(ctx context.Context, applicationID string) error {
	if err := g.dc.RegisterGlobalCommands(ctx, applicationID, Commands()); err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	g.logger.Info("Registered slash commands", "count", len(Commands()))
	return nil
}
