package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/gamenightbot/gamenight/pkg/config"
)

// Source is one schedule table as seen by the daemon loop. Implementations
// own the SQL; the loop owns the sleeping and retry policy.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// NextDue returns the earliest pending due_at, or ok=false when the
	// table has no pending rows.
	NextDue(ctx context.Context) (due time.Time, ok bool, err error)

	// FireNext fires at most one row due at or before now: lock it, publish
	// its event with a broker confirm, delete it, commit. fired reports
	// whether a row was processed. A non-nil error means the transaction
	// rolled back and the row survives for retry.
	FireNext(ctx context.Context, now time.Time) (fired bool, err error)
}

// Daemon drives one Source: fire everything due, query the next deadline,
// sleep until it, wake early on LISTEN notifications. Single instance per
// deployment; FOR UPDATE SKIP LOCKED in the sources keeps an accidental
// second instance harmless.
type Daemon struct {
	source Source
	wake   <-chan struct{}
	cfg    config.Daemon
	logger *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewDaemon wires a daemon over a source and a wake channel.
func NewDaemon(source Source, wake <-chan struct{}, cfg config.Daemon) *Daemon {
	return &Daemon{
		source: source,
		wake:   wake,
		cfg:    cfg,
		logger: slog.Default().With("daemon", source.Name()),
		now:    time.Now,
	}
}

// Run loops until ctx is cancelled. An in-flight fire finishes before the
// loop observes cancellation, so SIGTERM never strands a half-fired row in
// memory: either the transaction committed or the row survives.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("Schedule daemon started", "safety_tick", d.cfg.SafetyTick)
	backoff := d.cfg.PublishBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.fireDue(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("Fire failed, backing off", "error", err, "backoff", backoff)
			d.wait(ctx, backoff)
			backoff = min(backoff*2, d.cfg.PublishBackoffMax)
			continue
		}
		backoff = d.cfg.PublishBackoff

		pause := d.cfg.SafetyTick
		due, ok, err := d.source.NextDue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("Next-due query failed", "error", err)
		} else if ok {
			until := due.Sub(d.now())
			if until <= 0 {
				// Became due while we were querying.
				continue
			}
			pause = min(until, d.cfg.SafetyTick)
		}

		d.wait(ctx, pause)
	}
}

// fireDue drains the table: one row per transaction, oldest due first,
// until nothing due remains.
func (d *Daemon) fireDue(ctx context.Context) error {
	for {
		fired, err := d.source.FireNext(ctx, d.now())
		if err != nil {
			return err
		}
		if !fired {
			return nil
		}
	}
}

// wait sleeps for at most d, returning early on a wake signal or ctx
// cancellation.
func (d *Daemon) wait(ctx context.Context, pause time.Duration) {
	t := time.NewTimer(pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-d.wake:
		d.logger.Debug("Woken by schedule change")
	case <-t.C:
	}
}
