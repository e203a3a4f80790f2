package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum interval between accepted commands per
// (chat, command) key, using a burst-1 token bucket. A rejected attempt
// does not consume the token, so hammering a limited command never extends
// the wait.
type RateLimiter struct {
	limiters sync.Map     // key → *limiterEntry
	window   atomic.Int64 // nanoseconds; config hot reload writes it
	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter creates a limiter with the given window. window <= 0
// disables limiting entirely.
func NewRateLimiter(window time.Duration) *RateLimiter {
	rl := &RateLimiter{stop: make(chan struct{})}
	rl.window.Store(int64(window))
	go rl.cleanupLoop()
	return rl
}

// SetWindow swaps the window for new and existing keys (config hot reload).
func (rl *RateLimiter) SetWindow(window time.Duration) {
	rl.window.Store(int64(window))

	limit := rate.Inf
	if window > 0 {
		limit = rate.Every(window)
	}
	rl.limiters.Range(func(_, v any) bool {
		entry := v.(*limiterEntry)
		entry.mu.Lock()
		entry.limiter.SetLimit(limit)
		entry.mu.Unlock()
		return true
	})
}

// Allow checks whether the key may run now. Returns (true, 0) and consumes
// the slot when allowed, or (false, wait) without consuming when limited.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.window.Load() <= 0 {
		return true, 0
	}
	entry := rl.getOrCreate(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	res := entry.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	entry.lastSeen = now
	return true, 0
}

func (rl *RateLimiter) getOrCreate(key string) *limiterEntry {
	if v, ok := rl.limiters.Load(key); ok {
		return v.(*limiterEntry)
	}
	entry := &limiterEntry{
		limiter:  rate.NewLimiter(rate.Every(time.Duration(rl.window.Load())), 1),
		lastSeen: time.Now(),
	}
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry)
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)
	rl.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		stale := entry.lastSeen.Before(cutoff)
		entry.mu.Unlock()
		if stale {
			rl.limiters.Delete(key)
		}
		return true
	})
}
