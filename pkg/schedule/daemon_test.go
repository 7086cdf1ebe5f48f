package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/config"
)

// fakeSource is an in-memory Source: a set of due instants that "fire" by
// being sent on a channel.
type fakeSource struct {
	mu       sync.Mutex
	pending  []time.Time
	failures int

	fired chan time.Time
}

func newFakeSource(pending ...time.Time) *fakeSource {
	return &fakeSource{pending: pending, fired: make(chan time.Time, 16)}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) NextDue(ctx context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return time.Time{}, false, nil
	}
	earliest := f.pending[0]
	for _, t := range f.pending[1:] {
		if t.Before(earliest) {
			earliest = t
		}
	}
	return earliest, true, nil
}

func (f *fakeSource) FireNext(ctx context.Context, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return false, errors.New("broker unavailable")
	}
	for i, t := range f.pending {
		if !t.After(now) {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			f.fired <- t
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSource) add(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, t)
}

func testDaemonConfig() config.Daemon {
	return config.Daemon{
		SafetyTick:        time.Hour,
		PublishBackoff:    5 * time.Millisecond,
		PublishBackoffMax: 20 * time.Millisecond,
	}
}

func awaitFire(t *testing.T, src *fakeSource) time.Time {
	t.Helper()
	select {
	case fired := <-src.fired:
		return fired
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fire")
		return time.Time{}
	}
}

func TestDaemonFiresAllDueRows(t *testing.T) {
	now := time.Now()
	src := newFakeSource(now.Add(-2*time.Minute), now.Add(-time.Minute))
	wake := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDaemon(src, wake, testDaemonConfig())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	first := awaitFire(t, src)
	second := awaitFire(t, src)
	assert.True(t, first.Before(second), "rows should fire in due_at order")

	cancel()
	<-done

	_, ok, err := src.NextDue(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "no pending rows should remain")
}

func TestDaemonWakesOnNotify(t *testing.T) {
	src := newFakeSource()
	wake := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDaemon(src, wake, testDaemonConfig())
	go func() { _ = d.Run(ctx) }()

	// Let the daemon reach its indefinite sleep, then insert a due row and
	// poke it the way the trigger would.
	time.Sleep(50 * time.Millisecond)
	src.add(time.Now().Add(-time.Second))
	wake <- struct{}{}

	awaitFire(t, src)
}

func TestDaemonSleepsUntilFutureRow(t *testing.T) {
	src := newFakeSource(time.Now().Add(80 * time.Millisecond))
	wake := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDaemon(src, wake, testDaemonConfig())
	go func() { _ = d.Run(ctx) }()

	select {
	case <-src.fired:
		t.Fatal("row fired before it was due")
	case <-time.After(30 * time.Millisecond):
	}

	awaitFire(t, src)
}

func TestDaemonRetriesAfterFireError(t *testing.T) {
	src := newFakeSource(time.Now().Add(-time.Second))
	src.failures = 2
	wake := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDaemon(src, wake, testDaemonConfig())
	go func() { _ = d.Run(ctx) }()

	// Both failures are consumed by backoff retries, then the row fires.
	awaitFire(t, src)
}

func TestDaemonStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	wake := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDaemon(src, wake, testDaemonConfig())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop on cancellation")
	}
}
