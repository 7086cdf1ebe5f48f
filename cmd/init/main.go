// The init container: applies migrations with the privileged role, grants
// the application role its table privileges, and declares the broker
// topology. Runs to completion before the other services start.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/config"
	"github.com/gamenightbot/gamenight/pkg/database"
)

func main() {
	config.LoadDotEnv(".env")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Init failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Init complete")
}

func run(logger *slog.Logger) error {
	migratorCfg, err := database.LoadMigratorConfigFromEnv()
	if err != nil {
		return err
	}
	appCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	logger.Info("Applying migrations", "database", migratorCfg.Database)
	if err := database.Migrate(migratorCfg); err != nil {
		return err
	}

	logger.Info("Granting application role", "role", appCfg.User)
	if err := database.GrantApplicationRole(migratorCfg, appCfg.User); err != nil {
		return err
	}

	brokerCfg := config.LoadBroker()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("Waiting for broker")
	if err := bus.WaitReady(ctx, brokerCfg.URL); err != nil {
		return err
	}

	conn, err := bus.Connect(brokerCfg.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	logger.Info("Declaring broker topology")
	return bus.DeclareTopology(ch)
}
