// The DLQ retry daemon: drains each dead-letter queue on startup and on a
// periodic tick, republishing messages to their original destination.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/config"
	"github.com/gamenightbot/gamenight/pkg/retry"
	"github.com/gamenightbot/gamenight/pkg/version"
)

func main() {
	config.LoadDotEnv(".env")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("Starting retry daemon", "version", version.Full(), "built", version.BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error("Retry daemon failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Retry daemon stopped")
}

func run(ctx context.Context) error {
	brokerCfg := config.LoadBroker()
	retryCfg := config.LoadRetry()

	conn, err := bus.Connect(brokerCfg.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	daemon := retry.NewDaemon(conn, retryCfg.Tick, brokerCfg.ConfirmTimeout)
	return daemon.Run(ctx)
}
