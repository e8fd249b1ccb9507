package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"lectureflow/internal/metrics"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges requests per client address.
func ByClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// TokenBucket is an in-memory per-key rate limiter refilled every minute.
type TokenBucket struct {
	capacity int
	rate     int
	key      KeyFunc
	now      func() time.Time

	mu     sync.Mutex
	state  map[string]*bucket
	pruned time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
func NewTokenBucket(capacity, perMinute int, key KeyFunc) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if key == nil {
		key = ByClientIP
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		key:      key,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// Middleware rejects requests over the limit with 429.
func (l *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.Allow(l.key(c)) {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.pruned) >= time.Minute {
		l.prune(now)
	}
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets that have refilled to capacity; a new bucket for the
// same key starts full, so nothing is lost.
func (l *TokenBucket) prune(now time.Time) {
	for k, b := range l.state {
		if b.tokens+int(now.Sub(b.last).Minutes()*float64(l.rate)) >= l.capacity {
			delete(l.state, k)
		}
	}
	l.pruned = now
}
