package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
)

func newTestLimiter(cfg RateLimiterConfig) *RateLimitService {
	return NewRateLimitService(cfg, NewMemoryCounterStore())
}

func TestExecute_QuotaConservation(t *testing.T) {
	svc := newTestLimiter(DefaultRateLimiterConfig())

	for i := 0; i < 5; i++ {
		err := svc.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	}

	status := svc.Status()
	assert.Equal(t, 5, status.Daily.Used)
	assert.Equal(t, 5, status.Minute.Used)
	assert.Equal(t, 95, status.Daily.Remaining)
}

func TestExecute_FailedCallDoesNotConsumeQuota(t *testing.T) {
	svc := newTestLimiter(DefaultRateLimiterConfig())

	boom := errors.New("upstream down")
	err := svc.Execute(context.Background(), func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	status := svc.Status()
	assert.Equal(t, 0, status.Daily.Used)
	assert.Equal(t, 0, status.Minute.Used)
}

func TestExecute_DailyQuotaExceeded(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerDay = 2
	cfg.PerMinute = 10
	svc := newTestLimiter(cfg)

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		}))
	}

	err := svc.Execute(context.Background(), func(ctx context.Context) error {
		t.Fatal("must not dispatch past the daily quota")
		return nil
	})

	var dailyErr *DailyQuotaExceededError
	require.ErrorAs(t, err, &dailyErr)
	assert.False(t, dailyErr.ResetAt.IsZero())

	status := svc.Status()
	assert.True(t, status.IsLimited)
	require.NotNil(t, status.NextAvailableSlot)
	assert.Equal(t, dailyErr.ResetAt, *status.NextAvailableSlot)
}

func TestExecute_MinuteQuotaExceededWithQueueDisabled(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerMinute = 1
	cfg.QueueEnabled = false
	svc := newTestLimiter(cfg)

	require.NoError(t, svc.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))

	err := svc.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	var minuteErr *MinuteQuotaExceededError
	require.ErrorAs(t, err, &minuteErr)
}

func TestExecute_QueuedCallRunsAfterWindowReset(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerMinute = 1
	svc := newTestLimiter(cfg)

	// Exhaust the minute window with a reset right around the corner.
	svc.mu.Lock()
	svc.counter.MinuteCount = 1
	svc.counter.MinuteResetAt = time.Now().Add(50 * time.Millisecond)
	svc.counter.DailyResetAt = time.Now().Add(24 * time.Hour)
	svc.mu.Unlock()

	var ran atomic.Bool
	err := svc.Execute(context.Background(), func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestExecute_QueueFull(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerMinute = 1
	cfg.QueueMaxSize = 1
	svc := newTestLimiter(cfg)

	// Minute window stays exhausted for the whole test.
	svc.mu.Lock()
	svc.counter.MinuteCount = 1
	svc.counter.MinuteResetAt = time.Now().Add(time.Hour)
	svc.counter.DailyResetAt = time.Now().Add(24 * time.Hour)
	svc.mu.Unlock()

	go func() {
		_ = svc.Execute(context.Background(), func(ctx context.Context) error { return nil })
	}()

	// Wait for the first call to occupy the queue slot.
	require.Eventually(t, func() bool {
		return svc.Status().QueueSize == 1
	}, time.Second, 5*time.Millisecond)

	err := svc.Execute(context.Background(), func(ctx context.Context) error { return nil })

	var fullErr *QueueFullError
	require.ErrorAs(t, err, &fullErr)
	assert.Equal(t, 1, fullErr.Size)
}

func TestExecute_QueuedCallHonorsContext(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerMinute = 1
	svc := newTestLimiter(cfg)

	svc.mu.Lock()
	svc.counter.MinuteCount = 1
	svc.counter.MinuteResetAt = time.Now().Add(time.Hour)
	svc.counter.DailyResetAt = time.Now().Add(24 * time.Hour)
	svc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := svc.Execute(ctx, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_QueuedRetryBudget(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerMinute = 1
	cfg.MaxRetries = 2
	cfg.RetryBaseDelay = time.Millisecond
	svc := newTestLimiter(cfg)

	svc.mu.Lock()
	svc.counter.MinuteCount = 1
	svc.counter.MinuteResetAt = time.Now().Add(30 * time.Millisecond)
	svc.counter.DailyResetAt = time.Now().Add(24 * time.Hour)
	svc.mu.Unlock()

	var attempts atomic.Int32
	boom := errors.New("always failing")

	err := svc.Execute(context.Background(), func(ctx context.Context) error {
		attempts.Add(1)
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), attempts.Load(), "initial attempt plus two retries")

	// Failed attempts must not leave consumed quota behind.
	status := svc.Status()
	assert.Equal(t, 0, status.Daily.Used)
}

func TestExecute_RetriedCallKeepsQueuePosition(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerMinute = 600
	cfg.RetryBaseDelay = time.Millisecond
	svc := newTestLimiter(cfg)

	// Exhaust the minute window for long enough to queue both callers.
	svc.mu.Lock()
	svc.counter.MinuteCount = 600
	svc.counter.MinuteResetAt = time.Now().Add(250 * time.Millisecond)
	svc.counter.DailyResetAt = time.Now().Add(24 * time.Hour)
	svc.mu.Unlock()

	var mu sync.Mutex
	var events []string
	record := func(ev string) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	var firstAttempts atomic.Int32
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- svc.Execute(context.Background(), func(ctx context.Context) error {
			if firstAttempts.Add(1) == 1 {
				record("first failed")
				return errors.New("transient")
			}
			record("first succeeded")
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return svc.Status().QueueSize == 1
	}, time.Second, time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- svc.Execute(context.Background(), func(ctx context.Context) error {
			record("second ran")
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return svc.Status().QueueSize == 2
	}, time.Second, time.Millisecond)

	select {
	case err := <-firstDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first caller was not released")
	}

	select {
	case err := <-secondDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller was not released")
	}

	// A failed-and-retried call keeps its slot at the head of the queue, so
	// it completes before anything enqueued after it is dispatched.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first failed", "first succeeded", "second ran"}, events)
}

func TestClearQueue_RejectsPending(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerMinute = 1
	svc := newTestLimiter(cfg)

	svc.mu.Lock()
	svc.counter.MinuteCount = 1
	svc.counter.MinuteResetAt = time.Now().Add(time.Hour)
	svc.counter.DailyResetAt = time.Now().Add(24 * time.Hour)
	svc.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Execute(context.Background(), func(ctx context.Context) error { return nil })
	}()

	require.Eventually(t, func() bool {
		return svc.Status().QueueSize == 1
	}, time.Second, 5*time.Millisecond)

	dropped := svc.ClearQueue()
	assert.Equal(t, 1, dropped)

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("queued caller was not released")
	}
}

func TestSubscribe_WarningThreshold(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerDay = 10
	cfg.PerMinute = 10
	cfg.WarnThreshold = 0.5
	svc := newTestLimiter(cfg)

	notified := make(chan dto.RateLimitStatus, 1)
	id := svc.Subscribe(func(status dto.RateLimitStatus) {
		select {
		case notified <- status:
		default:
		}
	})
	defer svc.Unsubscribe(id)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		}))
	}

	select {
	case status := <-notified:
		assert.GreaterOrEqual(t, status.Daily.Used, 5)
	case <-time.After(time.Second):
		t.Fatal("threshold observer was not notified")
	}
}

func TestSubscribe_RefundedCallDoesNotWarn(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.PerDay = 2
	cfg.PerMinute = 10
	cfg.WarnThreshold = 0.5
	svc := newTestLimiter(cfg)

	notified := make(chan dto.RateLimitStatus, 1)
	id := svc.Subscribe(func(status dto.RateLimitStatus) {
		select {
		case notified <- status:
		default:
		}
	})
	defer svc.Unsubscribe(id)

	boom := errors.New("upstream down")
	require.ErrorIs(t, svc.Execute(context.Background(), func(ctx context.Context) error {
		return boom
	}), boom)

	select {
	case <-notified:
		t.Fatal("a refunded call must not count toward the warning threshold")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, svc.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))

	select {
	case status := <-notified:
		assert.Equal(t, 1, status.Daily.Used)
	case <-time.After(time.Second):
		t.Fatal("threshold observer was not notified")
	}
}

func TestWindowBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 59, 30, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), nextUTCMidnight(now))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), nextMinuteBoundary(now))

	noon := time.Date(2026, 3, 14, 12, 30, 15, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), nextUTCMidnight(noon))
	assert.Equal(t, time.Date(2026, 3, 14, 12, 31, 0, 0, time.UTC), nextMinuteBoundary(noon))
}

func TestWindowReset_ClearsCounts(t *testing.T) {
	svc := newTestLimiter(DefaultRateLimiterConfig())

	base := time.Date(2026, 3, 14, 12, 0, 30, 0, time.UTC)
	svc.now = func() time.Time { return base }

	require.NoError(t, svc.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))
	assert.Equal(t, 1, svc.Status().Minute.Used)

	// Cross the minute boundary; the minute window resets, the daily does not.
	svc.now = func() time.Time { return base.Add(time.Minute) }
	status := svc.Status()
	assert.Equal(t, 0, status.Minute.Used)
	assert.Equal(t, 1, status.Daily.Used)

	// Cross midnight; the daily window resets too.
	svc.now = func() time.Time { return base.Add(24 * time.Hour) }
	status = svc.Status()
	assert.Equal(t, 0, status.Daily.Used)
}

func TestCounterStore_PersistsAcrossInstances(t *testing.T) {
	store := NewMemoryCounterStore()
	cfg := DefaultRateLimiterConfig()

	first := NewRateLimitService(cfg, store)
	for i := 0; i < 3; i++ {
		require.NoError(t, first.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		}))
	}

	second := NewRateLimitService(cfg, store)
	require.NoError(t, second.Start())

	assert.Equal(t, 3, second.Status().Daily.Used)
}
