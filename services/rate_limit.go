package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
)

// DailyQuotaExceededError means the daily upstream quota is spent. Nothing
// can be dispatched or queued until the next UTC midnight.
type DailyQuotaExceededError struct {
	ResetAt time.Time
}

func (e *DailyQuotaExceededError) Error() string {
	return fmt.Sprintf("daily request quota exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// MinuteQuotaExceededError means the per-minute window is full and queueing
// is disabled.
type MinuteQuotaExceededError struct {
	ResetAt time.Time
}

func (e *MinuteQuotaExceededError) Error() string {
	return fmt.Sprintf("per-minute request quota exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// QueueFullError means the wait queue hit its cap and the call was rejected
// rather than queued.
type QueueFullError struct {
	Size int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("request queue is full (%d waiting)", e.Size)
}

// CounterStore persists quota counters across restarts. The limiter keeps
// the authoritative copy in memory; the store is written through after each
// mutation and read once at startup.
type CounterStore interface {
	Load(ctx context.Context) (*model.RateLimitCounter, error)
	Save(ctx context.Context, counter *model.RateLimitCounter) error
}

// MemoryCounterStore keeps counters in process memory only. Restarting the
// service forfeits any consumed-quota knowledge.
type MemoryCounterStore struct {
	mu      sync.Mutex
	counter *model.RateLimitCounter
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{}
}

func (s *MemoryCounterStore) Load(_ context.Context) (*model.RateLimitCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counter == nil {
		return nil, nil
	}
	c := *s.counter
	c.RequestTimestamps = append([]time.Time(nil), s.counter.RequestTimestamps...)
	return &c, nil
}

func (s *MemoryCounterStore) Save(_ context.Context, counter *model.RateLimitCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *counter
	c.RequestTimestamps = append([]time.Time(nil), counter.RequestTimestamps...)
	s.counter = &c
	return nil
}

const rateLimitCounterKey = "fixtureapp:ratelimit:counter"

// RedisCounterStore shares quota counters between instances through Redis.
type RedisCounterStore struct {
	redis *RedisService
}

func NewRedisCounterStore(redis *RedisService) *RedisCounterStore {
	return &RedisCounterStore{redis: redis}
}

func (s *RedisCounterStore) Load(ctx context.Context) (*model.RateLimitCounter, error) {
	var counter model.RateLimitCounter
	raw, err := s.redis.Get(ctx, rateLimitCounterKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	if err := s.redis.GetJSON(ctx, rateLimitCounterKey, &counter); err != nil {
		return nil, err
	}
	return &counter, nil
}

func (s *RedisCounterStore) Save(ctx context.Context, counter *model.RateLimitCounter) error {
	// Counters self-expire a day after the last write; a stale counter past
	// its daily reset is discarded on load anyway.
	return s.redis.Set(ctx, rateLimitCounterKey, counter, 25*time.Hour)
}

// RateLimiterConfig holds the quota, queue and retry knobs.
type RateLimiterConfig struct {
	PerDay        int
	PerMinute     int
	WarnThreshold float64

	QueueEnabled bool
	QueueMaxSize int

	MaxRetries     int
	RetryBaseDelay time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		PerDay:         100,
		PerMinute:      10,
		WarnThreshold:  0.80,
		QueueEnabled:   true,
		QueueMaxSize:   50,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

func rateLimiterConfigFromEnv() RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	cfg.PerDay = envInt("API_REQUESTS_PER_DAY", cfg.PerDay)
	cfg.PerMinute = envInt("API_REQUESTS_PER_MINUTE", cfg.PerMinute)
	cfg.WarnThreshold = envFloat("API_WARN_THRESHOLD", cfg.WarnThreshold)
	cfg.QueueEnabled = envBool("API_QUEUE_ENABLED", cfg.QueueEnabled)
	cfg.QueueMaxSize = envInt("API_QUEUE_MAX_SIZE", cfg.QueueMaxSize)
	cfg.MaxRetries = envInt("API_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryBaseDelay = time.Duration(envInt("API_RETRY_BASE_DELAY_MS", int(cfg.RetryBaseDelay/time.Millisecond))) * time.Millisecond
	return cfg
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

type queuedCall struct {
	id         uuid.UUID
	ctx        context.Context
	run        func(context.Context) error
	enqueuedAt time.Time
	retryCount int
	done       chan error
}

// RateLimitService gates every upstream call behind the daily and per-minute
// quotas. Calls over the minute quota wait in a FIFO queue drained by a
// single processor goroutine; calls over the daily quota fail immediately.
type RateLimitService struct {
	appContext.DefaultService

	cfg   RateLimiterConfig
	store CounterStore

	mu         sync.Mutex
	counter    model.RateLimitCounter
	queue      []*queuedCall
	processing bool

	warnedDaily  bool
	warnedMinute bool

	observers  map[int]func(dto.RateLimitStatus)
	observerID int

	closed bool

	// Injected in tests; defaults to the wall clock.
	now func() time.Time
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *appContext.Context) error {
	svc.cfg = rateLimiterConfigFromEnv()
	svc.observers = map[int]func(dto.RateLimitStatus){}
	svc.now = time.Now

	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	if svc.store == nil {
		if os.Getenv("RATE_LIMIT_STORE") == "redis" {
			redisSvc := svc.Service(REDIS_SVC).(*RedisService)
			svc.store = NewRedisCounterStore(redisSvc)
		} else {
			svc.store = NewMemoryCounterStore()
		}
	}

	loaded, err := svc.store.Load(context.Background())
	if err != nil {
		log.WithError(err).Warn("Failed to load persisted rate-limit counters, starting fresh")
	} else if loaded != nil {
		svc.mu.Lock()
		svc.counter = *loaded
		svc.resetWindowsLocked(svc.now())
		svc.mu.Unlock()
	}

	log.WithFields(log.Fields{
		"per_day":    svc.cfg.PerDay,
		"per_minute": svc.cfg.PerMinute,
		"queue_size": svc.cfg.QueueMaxSize,
	}).Info("Rate limiter configured")
	return nil
}

func (svc *RateLimitService) Shutdown() {
	svc.mu.Lock()
	svc.closed = true
	pending := svc.queue
	svc.queue = nil
	svc.mu.Unlock()

	for _, call := range pending {
		call.done <- fmt.Errorf("rate limiter shutting down")
	}
}

// NewRateLimitService builds a limiter outside the service container, for
// callers that wire dependencies by hand.
func NewRateLimitService(cfg RateLimiterConfig, store CounterStore) *RateLimitService {
	return &RateLimitService{
		cfg:       cfg,
		store:     store,
		observers: map[int]func(dto.RateLimitStatus){},
		now:       time.Now,
	}
}

// Execute runs fn under quota control. If the per-minute window is full the
// call waits in the queue (honoring ctx while waiting); if the daily window
// is full it fails immediately with DailyQuotaExceededError. A failed fn
// refunds its quota slot.
func (svc *RateLimitService) Execute(ctx context.Context, fn func(context.Context) error) error {
	svc.mu.Lock()
	if svc.closed {
		svc.mu.Unlock()
		return fmt.Errorf("rate limiter is shut down")
	}

	now := svc.now()
	svc.resetWindowsLocked(now)

	if svc.counter.DailyCount >= svc.cfg.PerDay {
		resetAt := svc.counter.DailyResetAt
		svc.mu.Unlock()
		return &DailyQuotaExceededError{ResetAt: resetAt}
	}

	if svc.counter.MinuteCount >= svc.cfg.PerMinute {
		if !svc.cfg.QueueEnabled {
			resetAt := svc.counter.MinuteResetAt
			svc.mu.Unlock()
			return &MinuteQuotaExceededError{ResetAt: resetAt}
		}
		if len(svc.queue) >= svc.cfg.QueueMaxSize {
			size := len(svc.queue)
			svc.mu.Unlock()
			return &QueueFullError{Size: size}
		}

		call := &queuedCall{
			id:         uuid.New(),
			ctx:        ctx,
			run:        fn,
			enqueuedAt: now,
			done:       make(chan error, 1),
		}
		svc.queue = append(svc.queue, call)
		svc.ensureProcessorLocked()
		queueDepth := len(svc.queue)
		svc.mu.Unlock()

		log.WithFields(log.Fields{
			"call_id":     call.id,
			"queue_depth": queueDepth,
		}).Debug("Request queued, minute quota exhausted")

		select {
		case err := <-call.done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	dailyWindow, minuteWindow := svc.consumeLocked(now)
	svc.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		svc.refund(dailyWindow, minuteWindow)
		return err
	}
	svc.notifyThreshold()
	return nil
}

// ensureProcessorLocked starts the queue drainer if it is not already
// running. Callers must hold svc.mu.
func (svc *RateLimitService) ensureProcessorLocked() {
	if svc.processing {
		return
	}
	svc.processing = true
	go svc.processQueue()
}

func (svc *RateLimitService) processQueue() {
	var pacing time.Duration
	if svc.cfg.PerMinute > 0 {
		pacing = time.Duration(60000/svc.cfg.PerMinute) * time.Millisecond
	}

	for {
		svc.mu.Lock()
		now := svc.now()
		svc.resetWindowsLocked(now)

		if len(svc.queue) == 0 || svc.closed {
			svc.processing = false
			svc.mu.Unlock()
			return
		}

		if svc.counter.DailyCount >= svc.cfg.PerDay {
			// No point keeping anyone waiting until midnight.
			pending := svc.queue
			svc.queue = nil
			svc.processing = false
			resetAt := svc.counter.DailyResetAt
			svc.mu.Unlock()

			for _, call := range pending {
				call.done <- &DailyQuotaExceededError{ResetAt: resetAt}
			}
			return
		}

		if svc.counter.MinuteCount >= svc.cfg.PerMinute {
			wait := svc.counter.MinuteResetAt.Sub(now)
			svc.mu.Unlock()
			if wait > 0 {
				time.Sleep(wait)
			}
			continue
		}

		call := svc.queue[0]
		svc.queue = svc.queue[1:]

		if call.ctx.Err() != nil {
			svc.mu.Unlock()
			call.done <- call.ctx.Err()
			continue
		}

		dailyWindow, minuteWindow := svc.consumeLocked(now)
		svc.mu.Unlock()

		err := call.run(call.ctx)
		if err != nil {
			svc.refund(dailyWindow, minuteWindow)

			if call.retryCount < svc.cfg.MaxRetries {
				delay := svc.cfg.RetryBaseDelay << call.retryCount
				call.retryCount++
				log.WithFields(log.Fields{
					"call_id": call.id,
					"attempt": call.retryCount,
					"delay":   delay,
					"error":   err.Error(),
				}).Warn("Queued request failed, retrying")

				time.Sleep(delay)

				// Retries go back to the front so one flaky call cannot be
				// starved by newer arrivals.
				svc.mu.Lock()
				svc.queue = append([]*queuedCall{call}, svc.queue...)
				svc.mu.Unlock()
				continue
			}

			call.done <- err
		} else {
			svc.notifyThreshold()
			call.done <- nil
		}

		time.Sleep(pacing)
	}
}

// consumeLocked records one dispatched request in both windows and returns
// the window reset marks, so a later refund can tell whether the windows
// have rolled over since. Callers must hold svc.mu.
func (svc *RateLimitService) consumeLocked(now time.Time) (dailyWindow, minuteWindow time.Time) {
	svc.counter.DailyCount++
	svc.counter.MinuteCount++
	svc.counter.RequestTimestamps = append(svc.counter.RequestTimestamps, now)

	svc.persistLocked()

	return svc.counter.DailyResetAt, svc.counter.MinuteResetAt
}

// refund releases a quota slot after a failed call. A slot is only returned
// to a window that has not rolled over since the call was dispatched.
func (svc *RateLimitService) refund(dailyWindow, minuteWindow time.Time) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	now := svc.now()
	svc.resetWindowsLocked(now)

	if svc.counter.DailyResetAt.Equal(dailyWindow) && svc.counter.DailyCount > 0 {
		svc.counter.DailyCount--
	}
	if svc.counter.MinuteResetAt.Equal(minuteWindow) && svc.counter.MinuteCount > 0 {
		svc.counter.MinuteCount--
	}
	if n := len(svc.counter.RequestTimestamps); n > 0 {
		svc.counter.RequestTimestamps = svc.counter.RequestTimestamps[:n-1]
	}

	svc.persistLocked()
}

func (svc *RateLimitService) persistLocked() {
	if svc.store == nil {
		return
	}
	counter := svc.counter
	counter.RequestTimestamps = append([]time.Time(nil), svc.counter.RequestTimestamps...)
	if err := svc.store.Save(context.Background(), &counter); err != nil {
		log.WithError(err).Warn("Failed to persist rate-limit counters")
	}
}

func (svc *RateLimitService) resetWindowsLocked(now time.Time) {
	if svc.counter.DailyResetAt.IsZero() || !now.Before(svc.counter.DailyResetAt) {
		svc.counter.DailyCount = 0
		svc.counter.DailyResetAt = nextUTCMidnight(now)
		svc.warnedDaily = false
	}
	if svc.counter.MinuteResetAt.IsZero() || !now.Before(svc.counter.MinuteResetAt) {
		svc.counter.MinuteCount = 0
		svc.counter.MinuteResetAt = nextMinuteBoundary(now)
		svc.warnedMinute = false
	}

	cutoff := now.Add(-time.Minute)
	kept := svc.counter.RequestTimestamps[:0]
	for _, ts := range svc.counter.RequestTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	svc.counter.RequestTimestamps = kept
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

func nextMinuteBoundary(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute).Add(time.Minute)
}

// ClearQueue rejects every pending queued call immediately and returns how
// many were dropped.
func (svc *RateLimitService) ClearQueue() int {
	svc.mu.Lock()
	pending := svc.queue
	svc.queue = nil
	svc.mu.Unlock()

	for _, call := range pending {
		call.done <- fmt.Errorf("request queue cleared")
	}
	return len(pending)
}

// Status returns a point-in-time snapshot of both quota windows and the
// queue.
func (svc *RateLimitService) Status() dto.RateLimitStatus {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.resetWindowsLocked(svc.now())
	return svc.statusLocked()
}

func (svc *RateLimitService) statusLocked() dto.RateLimitStatus {
	status := dto.RateLimitStatus{
		Daily:     windowStatus(svc.cfg.PerDay, svc.counter.DailyCount, svc.counter.DailyResetAt),
		Minute:    windowStatus(svc.cfg.PerMinute, svc.counter.MinuteCount, svc.counter.MinuteResetAt),
		QueueSize: len(svc.queue),
	}

	if svc.counter.DailyCount >= svc.cfg.PerDay {
		status.IsLimited = true
		resetAt := svc.counter.DailyResetAt
		status.NextAvailableSlot = &resetAt
	} else if svc.counter.MinuteCount >= svc.cfg.PerMinute {
		status.IsLimited = true
		resetAt := svc.counter.MinuteResetAt
		status.NextAvailableSlot = &resetAt
	}

	return status
}

func windowStatus(limit, used int, resetAt time.Time) dto.WindowStatus {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return dto.WindowStatus{
		Limit:       limit,
		Used:        used,
		Remaining:   remaining,
		ResetAt:     resetAt,
		PercentUsed: float64(used) / float64(limit),
	}
}

// Subscribe registers an observer fired when either window first crosses the
// warning threshold. The returned id is used to unsubscribe.
func (svc *RateLimitService) Subscribe(fn func(dto.RateLimitStatus)) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.observerID++
	svc.observers[svc.observerID] = fn
	return svc.observerID
}

func (svc *RateLimitService) Unsubscribe(id int) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.observers, id)
}

// notifyThreshold runs the crossing check after a successful dispatch.
// Refunded failures never count toward the warning threshold.
func (svc *RateLimitService) notifyThreshold() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.notifyThresholdLocked()
}

// notifyThresholdLocked fires observers once per window per crossing.
// Callers must hold svc.mu.
func (svc *RateLimitService) notifyThresholdLocked() {
	dailyOver := float64(svc.counter.DailyCount) >= svc.cfg.WarnThreshold*float64(svc.cfg.PerDay)
	minuteOver := float64(svc.counter.MinuteCount) >= svc.cfg.WarnThreshold*float64(svc.cfg.PerMinute)

	crossed := (dailyOver && !svc.warnedDaily) || (minuteOver && !svc.warnedMinute)
	if !crossed {
		return
	}
	if dailyOver {
		svc.warnedDaily = true
	}
	if minuteOver {
		svc.warnedMinute = true
	}

	log.WithFields(log.Fields{
		"daily_used":  svc.counter.DailyCount,
		"minute_used": svc.counter.MinuteCount,
	}).Warn("Upstream quota usage crossed warning threshold")

	status := svc.statusLocked()
	for _, fn := range svc.observers {
		go fn(status)
	}
}
