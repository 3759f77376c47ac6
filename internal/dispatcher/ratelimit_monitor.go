package dispatcher

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type RateLimitBucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimitMonitor remembers Discord's per-route buckets from response
// headers so callers can wait out a depleted bucket.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
	now     func() time.Time
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{
		buckets: make(map[string]*RateLimitBucket),
		now:     time.Now,
	}
}

func (rlm *RateLimitMonitor) CanExecute(route, guildID string) bool {
	return rlm.WaitTime(route, guildID) == 0
}

// WaitTime is how long a call on route must wait for its bucket to reset.
func (rlm *RateLimitMonitor) WaitTime(route, guildID string) time.Duration {
	rlm.mu.RLock()
	bucket, exists := rlm.buckets[rlm.getKey(route, guildID)]
	rlm.mu.RUnlock()

	if !exists || bucket.Remaining > 0 {
		return 0
	}
	if wait := bucket.ResetAt.Sub(rlm.now()); wait > 0 {
		return wait
	}
	return 0
}

func (rlm *RateLimitMonitor) UpdateFromFastHTTPResponse(resp *fasthttp.Response, route, guildID string) {
	remaining := string(resp.Header.Peek("X-RateLimit-Remaining"))
	if remaining == "" && resp.StatusCode() != fasthttp.StatusTooManyRequests {
		return
	}

	bucket := &RateLimitBucket{}
	bucket.Remaining, _ = strconv.Atoi(remaining)
	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		bucket.Limit, _ = strconv.Atoi(limit)
	}

	if after := string(resp.Header.Peek("X-RateLimit-Reset-After")); after != "" {
		secs, _ := strconv.ParseFloat(after, 64)
		bucket.ResetAt = rlm.now().Add(time.Duration(secs * float64(time.Second)))
	} else if after := string(resp.Header.Peek("Retry-After")); after != "" {
		secs, _ := strconv.ParseFloat(after, 64)
		bucket.ResetAt = rlm.now().Add(time.Duration(secs * float64(time.Second)))
	} else if reset := string(resp.Header.Peek("X-RateLimit-Reset")); reset != "" {
		resetUnix, _ := strconv.ParseFloat(reset, 64)
		bucket.ResetAt = time.Unix(0, int64(resetUnix*float64(time.Second)))
	}

	rlm.mu.Lock()
	rlm.buckets[rlm.getKey(route, guildID)] = bucket
	rlm.mu.Unlock()
}

func (rlm *RateLimitMonitor) getKey(route, guildID string) string {
	return route + ":" + guildID
}

func (rlm *RateLimitMonitor) GetBucket(route, guildID string) *RateLimitBucket {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()
	return rlm.buckets[rlm.getKey(route, guildID)]
}
