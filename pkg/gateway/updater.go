package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gamenightbot/gamenight/pkg/cache"
	"github.com/gamenightbot/gamenight/pkg/discord"
)

// MessageUpdater edits announcement messages with a per-message rate
// limit. The limit is a cache key with a short TTL; while it exists,
// updates are coalesced into a pending slot and flushed when the window
// clears, so only the freshest rendering goes out.
type MessageUpdater struct {
	dc     *discord.Client
	cache  *cache.Client
	window time.Duration
	logger *slog.Logger
}

// NewMessageUpdater wires the updater.
func NewMessageUpdater(dc *discord.Client, c *cache.Client, window time.Duration) *MessageUpdater {
	return &MessageUpdater{
		dc:     dc,
		cache:  c,
		window: window,
		logger: slog.Default().With("component", "message-updater"),
	}
}

// Update edits the message now if the edit window is clear, otherwise
// parks msg as the pending content and schedules a flush. Later calls
// within the window overwrite the pending content; the scheduled flush
// sends whatever is newest.
func (u *MessageUpdater) Update(ctx context.Context, channelID, messageID string, msg discord.MessageCreate) error {
	won, err := u.cache.Acquire(ctx, cache.EditWindowKey(channelID, messageID), u.window)
	if err != nil {
		// Cache trouble must not block updates; edit directly.
		u.logger.Warn("Edit window check failed, editing anyway", "error", err)
		won = true
	}

	if won {
		_, err := u.dc.EditMessage(ctx, channelID, messageID, msg)
		return err
	}

	pendingKey := cache.PendingEditKey(channelID, messageID)
	if err := u.cache.SetJSON(ctx, pendingKey, msg, u.window*4); err != nil {
		return err
	}
	u.scheduleFlush(channelID, messageID)
	return nil
}

// scheduleFlush sends the pending content once the window has passed.
// Several flushes may race after a burst; the pending-key delete makes all
// but one a no-op, and an extra edit of identical content is harmless.
func (u *MessageUpdater) scheduleFlush(channelID, messageID string) {
	time.AfterFunc(u.window, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pendingKey := cache.PendingEditKey(channelID, messageID)
		var msg discord.MessageCreate
		hit, err := u.cache.GetJSON(ctx, pendingKey, &msg)
		if err != nil || !hit {
			return
		}
		if err := u.cache.Delete(ctx, pendingKey); err != nil {
			u.logger.Warn("Failed to clear pending edit", "error", err)
		}

		if _, err := u.dc.EditMessage(ctx, channelID, messageID, msg); err != nil {
			u.logger.Error("Coalesced edit failed",
				"channel_id", channelID, "message_id", messageID, "error", err)
		}
	})
}
