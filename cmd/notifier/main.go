// The notification schedule daemon: watches notification_schedule and
// publishes notification.due events when rows come due.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamenightbot/gamenight/pkg/bus"
	"github.com/gamenightbot/gamenight/pkg/config"
	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/schedule"
	"github.com/gamenightbot/gamenight/pkg/version"
)

func main() {
	config.LoadDotEnv(".env")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("Starting notification daemon", "version", version.Full(), "built", version.BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error("Notification daemon failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Notification daemon stopped")
}

func run(ctx context.Context) error {
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	brokerCfg := config.LoadBroker()
	daemonCfg := config.LoadDaemon()

	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.NewClient(setupCtx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	conn, err := bus.Connect(brokerCfg.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	pub := bus.NewPublisher(conn, brokerCfg.ConfirmTimeout)

	listener := schedule.NewWakeListener(dbCfg.DSN(), schedule.NotificationChannel)
	go listener.Run(ctx)

	daemon := schedule.NewDaemon(schedule.NewNotificationSource(db, pub), listener.Wake(), daemonCfg)
	return daemon.Run(ctx)
}
