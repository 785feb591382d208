package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recurpay/internal/eventbus"
	"recurpay/internal/storage"
	logx "recurpay/pkg/logx"
)

type recorder struct {
	mu    sync.Mutex
	texts []string
	fails int
	got   chan string
}

func newRecorder(fails int) *recorder {
	return &recorder{fails: fails, got: make(chan string, 32)}
}

func (r *recorder) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("telegram: 502")
	}
	r.texts = append(r.texts, text)
	r.got <- text
	return nil
}

func (r *recorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case s := <-r.got:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("no alert delivered")
		return ""
	}
}

func fastConfig() Config {
	return Config{
		Enabled:       true,
		Workers:       1,
		RatePerSec:    100,
		RetryMax:      3,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		DedupWindow:   time.Minute,
	}
}

func stop(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()
	rec := newRecorder(0)
	s := New(fastConfig(), rec, logx.Nop(), nil, nil)
	s.Start(context.Background())
	defer stop(t, s)

	require.NoError(t, s.Notify(context.Background(), Message{Severity: SeverityCritical, Text: "tick failed"}))
	require.Equal(t, "🚨 tick failed", rec.wait(t))

	require.Eventually(t, func() bool { return len(s.History()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	rec := newRecorder(2)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	s := New(fastConfig(), rec, logx.Nop(), bus, nil)
	s.Start(context.Background())
	defer stop(t, s)

	require.NoError(t, s.Notify(context.Background(), Message{Text: "x"}))
	require.Equal(t, "x", rec.wait(t))
	ev := <-events
	require.Equal(t, eventbus.NotifySent, ev.Type)
}

func TestNotifyGivesUpAfterRetries(t *testing.T) {
	t.Parallel()
	rec := newRecorder(100)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	s := New(fastConfig(), rec, logx.Nop(), bus, nil)
	s.Start(context.Background())
	defer stop(t, s)

	require.NoError(t, s.Notify(context.Background(), Message{Text: "never"}))
	select {
	case ev := <-events:
		require.Equal(t, eventbus.NotifyDeliveryFail, ev.Type)
		require.Contains(t, ev.Data.(eventbus.NotificationEvent).Error, "502")
	case <-time.After(3 * time.Second):
		t.Fatal("no failure event")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, 96, rec.fails, "one attempt plus three retries")
}

func TestNotifyDedup(t *testing.T) {
	t.Parallel()
	rec := newRecorder(0)
	s := New(fastConfig(), rec, logx.Nop(), nil, nil)
	s.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, s.Notify(ctx, Message{Key: "a", Text: "first"}))
	require.NoError(t, s.Notify(ctx, Message{Key: "a", Text: "second"}))
	require.NoError(t, s.Notify(ctx, Message{Key: "b", Text: "third"}))
	stop(t, s)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.ElementsMatch(t, []string{"first", "third"}, rec.texts)
}

func TestNotifyPersistentDedup(t *testing.T) {
	t.Parallel()
	db, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "n.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := fastConfig()
	cfg.PersistDedup = true
	ctx := context.Background()

	first := newRecorder(0)
	s := New(cfg, first, logx.Nop(), nil, db)
	s.Start(ctx)
	require.NoError(t, s.Notify(ctx, Message{Key: "k", Text: "once"}))
	first.wait(t)
	require.Eventually(t, func() bool {
		_, ok, err := db.GetDedup(ctx, dedupKey(Message{Key: "k"}))
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)
	stop(t, s)

	// A fresh process sees the stored window.
	second := newRecorder(0)
	s2 := New(cfg, second, logx.Nop(), nil, db)
	s2.Start(ctx)
	require.NoError(t, s2.Notify(ctx, Message{Key: "k", Text: "once"}))
	stop(t, s2)
	second.mu.Lock()
	defer second.mu.Unlock()
	require.Empty(t, second.texts)
}

func TestNotifyStates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	off := New(Config{}, newRecorder(0), logx.Nop(), nil, nil)
	require.ErrorIs(t, off.Notify(ctx, Message{Text: "x"}), ErrDisabled)

	s := New(fastConfig(), newRecorder(0), logx.Nop(), nil, nil)
	require.ErrorIs(t, s.Notify(ctx, Message{Text: "x"}), ErrStopped)
	s.Start(ctx)
	stop(t, s)
	require.ErrorIs(t, s.Notify(ctx, Message{Text: "x"}), ErrStopped)
}

func TestNotifyQueueFull(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	sender := SenderFunc(func(ctx context.Context, _ string) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})
	cfg := fastConfig()
	cfg.QueueSize = 1
	cfg.DedupWindow = 0
	s := New(cfg, sender, logx.Nop(), nil, nil)
	s.Start(context.Background())
	defer func() {
		close(block)
		stop(t, s)
	}()

	ctx := context.Background()
	var full bool
	for i := 0; i < 5 && !full; i++ {
		full = errors.Is(s.Notify(ctx, Message{Text: "x"}), ErrQueueFull)
	}
	require.True(t, full)
}

func TestRetryDelayBounds(t *testing.T) {
	t.Parallel()
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for i := 0; i < 50; i++ {
		d := retryDelay(cfg, 1)
		require.GreaterOrEqual(t, d, 70*time.Millisecond)
		require.LessOrEqual(t, d, 130*time.Millisecond)
		require.LessOrEqual(t, retryDelay(cfg, 10), time.Second)
	}
}

func TestForwardTurnsFailuresIntoAlerts(t *testing.T) {
	t.Parallel()
	rec := newRecorder(0)
	bus := eventbus.New()
	s := New(fastConfig(), rec, logx.Nop(), nil, nil)
	s.Start(context.Background())
	defer stop(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	subscribed := make(chan struct{})
	go func() {
		close(subscribed)
		done <- s.Forward(ctx, bus)
	}()
	<-subscribed

	// Subscription happens inside Forward; publish until one alert lands.
	require.Eventually(t, func() bool {
		bus.Publish(eventbus.Event{Type: eventbus.RecurringApplied, Data: eventbus.ItemEvent{DefinitionID: "ok"}})
		bus.Publish(eventbus.Event{Type: eventbus.RecurringFailed, Data: eventbus.ItemEvent{
			DefinitionID: "d1",
			Outcome:      "failed",
			Reason:       "missing account",
		}})
		return len(rec.got) > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "⚠️ recurring payment d1 failed: missing account", rec.wait(t))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestAlertFor(t *testing.T) {
	t.Parallel()
	m, ok := AlertFor(eventbus.Event{Type: eventbus.SchedulerTickFail, Data: eventbus.TickEvent{Trigger: "cron", Error: "list due: db gone"}})
	require.True(t, ok)
	require.Equal(t, SeverityCritical, m.Severity)
	require.Equal(t, "scheduler tick (cron) failed: list due: db gone", m.Text)

	m, ok = AlertFor(eventbus.Event{Type: eventbus.RecurringFailed, Data: eventbus.ItemEvent{DefinitionID: "d", Reason: "r", Error: "load account: not found"}})
	require.True(t, ok)
	require.Contains(t, m.Text, "load account: not found")

	_, ok = AlertFor(eventbus.Event{Type: eventbus.SchedulerTick, Data: eventbus.TickEvent{}})
	require.False(t, ok)
}
