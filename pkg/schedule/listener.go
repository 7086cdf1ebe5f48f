// Package schedule implements the notification and status-transition
// daemons: LISTEN/NOTIFY-woken loops that fire due schedule rows, publish
// the resulting events with broker confirms, and delete the rows in the
// same transaction.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// WakeListener holds a dedicated PostgreSQL connection LISTENing on one
// channel and coalesces incoming NOTIFYs into a wake signal. The payload is
// discarded: daemons re-query MIN(due_at) on every wake, so a lost or
// duplicated notification never drops work.
type WakeListener struct {
	connString string
	channel    string
	wake       chan struct{}
	logger     *slog.Logger
}

// NewWakeListener creates a listener for the given NOTIFY channel.
func NewWakeListener(connString, channel string) *WakeListener {
	return &WakeListener{
		connString: connString,
		channel:    channel,
		wake:       make(chan struct{}, 1),
		logger:     slog.Default().With("component", "wake-listener", "channel", channel),
	}
}

// Wake returns the signal channel. One buffered slot; concurrent NOTIFYs
// coalesce into a single wake.
func (l *WakeListener) Wake() <-chan struct{} {
	return l.wake
}

// Run connects, LISTENs, and receives until ctx is cancelled. The
// connection is re-established with exponential backoff on any error; the
// receive loop is the sole user of the connection.
func (l *WakeListener) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := pgx.Connect(ctx, l.connString)
		if err != nil {
			l.logger.Error("LISTEN connect failed", "error", err, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}

		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
			l.logger.Error("LISTEN failed", "error", err)
			_ = conn.Close(ctx)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		l.logger.Info("Listening for schedule changes")
		l.receive(ctx, conn)
		_ = conn.Close(context.Background())
	}
}

// receive blocks on WaitForNotification until ctx is cancelled or the
// connection errors, signalling a wake per notification.
func (l *WakeListener) receive(ctx context.Context, conn *pgx.Conn) {
	for {
		_, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("NOTIFY receive error", "error", err)
			return
		}
		select {
		case l.wake <- struct{}{}:
		default:
			// A wake is already pending; coalesce.
		}
	}
}

// sleep waits for d or ctx cancellation, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
