// The API service: the dashboard's HTTP backend.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamenightbot/gamenight/pkg/api"
	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/cache"
	"github.com/gamenightbot/gamenight/pkg/config"
	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/services"
	"github.com/gamenightbot/gamenight/pkg/version"
)

func main() {
	config.LoadDotEnv(".env")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("Starting API service", "version", version.Full(), "built", version.BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error("API service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("API service stopped")
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
	httpCfg := config.LoadHTTP()
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
	oauth := discord.NewOAuth(discordCfg.ClientID, discordCfg.ClientSecret, discordCfg.APIBaseURL)

	server := api.NewServer(
		httpCfg,
		discordCfg.FrontendURL,
		db,
		cacheClient,
		cached,
		oauth,
		services.NewGuildService(db),
		services.NewUserService(db),
		services.NewTemplateService(db),
		services.NewGameService(db, pub),
		services.NewParticipantService(db, pub, gatewayCfg.JoinNotifyDelay),
	)
	return server.Run(ctx)
}
