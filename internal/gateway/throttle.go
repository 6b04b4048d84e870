package gateway

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"whatado/event-service/pkg/auth"
)

// requestRecord tracks the number of requests in the current window
type requestRecord struct {
	count       int
	windowStart time.Time
	mu          sync.Mutex
}

// throttleStore holds fixed-window counters per user
type throttleStore struct {
	records map[uint64]*requestRecord
	mu      sync.RWMutex
	now     func() time.Time
}

func newThrottleStore(now func() time.Time) *throttleStore {
	if now == nil {
		now = time.Now
	}
	return &throttleStore{records: make(map[uint64]*requestRecord), now: now}
}

// runCleanup drops idle records until ctx is done
func (ts *throttleStore) runCleanup(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.cleanup(idle)
		}
	}
}

func (ts *throttleStore) cleanup(idle time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	cutoff := ts.now().Add(-idle)
	for userID, record := range ts.records {
		record.mu.Lock()
		if record.windowStart.Before(cutoff) {
			delete(ts.records, userID)
		}
		record.mu.Unlock()
	}
}

func (ts *throttleStore) getOrCreateRecord(userID uint64) *requestRecord {
	ts.mu.RLock()
	record, exists := ts.records[userID]
	ts.mu.RUnlock()
	if exists {
		return record
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if record, exists := ts.records[userID]; exists {
		return record
	}
	record = &requestRecord{windowStart: ts.now()}
	ts.records[userID] = record
	return record
}

// allow reports whether userID may make another request and counts it
func (ts *throttleStore) allow(userID uint64, maxRequests int, period time.Duration) bool {
	record := ts.getOrCreateRecord(userID)

	record.mu.Lock()
	defer record.mu.Unlock()

	now := ts.now()
	if now.Sub(record.windowStart) >= period {
		record.count = 1
		record.windowStart = now
		return true
	}
	if record.count >= maxRequests {
		return false
	}
	record.count++
	return true
}

// Throttle rate limits authenticated users with a fixed window
type Throttle struct {
	store       *throttleStore
	maxRequests int
	period      time.Duration
}

func NewThrottle(maxRequests int, period time.Duration, now func() time.Time) *Throttle {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if period <= 0 {
		period = time.Minute
	}
	return &Throttle{store: newThrottleStore(now), maxRequests: maxRequests, period: period}
}

// Run evicts idle users until ctx is done
func (t *Throttle) Run(ctx context.Context) {
	t.store.runCleanup(ctx, 5*time.Minute, time.Hour)
}

// Middleware must run after AuthMiddleware. Requests without a user pass.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, err := auth.GetUserFromContext(r.Context())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if !t.store.allow(userCtx.UserID, t.maxRequests, t.period) {
			w.Header().Set("Retry-After", formatRetryAfter(t.period))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// formatRetryAfter formats the period as seconds for Retry-After header
func formatRetryAfter(period time.Duration) string {
	seconds := int(period.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
