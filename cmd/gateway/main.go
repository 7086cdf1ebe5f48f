// The chat gateway service: holds the Discord websocket session, consumes
// bot_events from the broker, and keeps announcements and DMs in sync with
// game state.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/cache"
	"github.com/gamenightbot/gamenight/pkg/config"
	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/gateway"
	"github.com/gamenightbot/gamenight/pkg/services"
	"github.com/gamenightbot/gamenight/pkg/version"
)

func main() {
	config.LoadDotEnv(".env")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("Starting gateway service", "version", version.Full(), "built", version.BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error("Gateway service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Gateway service stopped")
}

func run(ctx context.Context) error {
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	discordCfg, err := config.LoadDiscord()
	if err != nil {
		return err
	}
	brokerCfg := config.LoadBroker()
	redisCfg := config.LoadRedis()
	gatewayCfg := config.LoadGateway()

	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.NewClient(setupCtx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cacheClient, err := cache.NewClient(setupCtx, redisCfg.URL)
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()

	conn, err := bus.Connect(brokerCfg.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	pub := bus.NewPublisher(conn, brokerCfg.ConfirmTimeout)

	dc := discord.NewClient(discordCfg.APIBaseURL, discordCfg.BotToken)
	cached := discord.NewCachedClient(dc, cacheClient, gatewayCfg.CacheTTL)
	updater := gateway.NewMessageUpdater(dc, cacheClient, gatewayCfg.EditWindow)

	gw := gateway.New(
		services.NewGameService(db, pub),
		services.NewParticipantService(db, pub, gatewayCfg.JoinNotifyDelay),
		services.NewGuildService(db),
		services.NewUserService(db),
		cached,
		updater,
		discordCfg.FrontendURL,
	)

	if discordCfg.ClientID != "" {
		if err := gw.RegisterCommands(setupCtx, discordCfg.ClientID); err != nil {
			return err
		}
	}

	session := discord.NewSession(discordCfg.GatewayURL, discordCfg.BotToken, gw.HandleGatewayEvent)
	consumer := bus.NewConsumer(conn, bus.QueueBotEvents, gw.HandleEvent)

	errCh := make(chan error, 2)
	go func() { errCh <- session.Run(ctx) }()
	go func() { errCh <- consumer.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// Both loops stop on ctx; drain their exits.
	<-errCh
	<-errCh
	return nil
}
