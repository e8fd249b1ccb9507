package httpmiddleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllow(t *testing.T) {
	l := NewTokenBucket(2, 60, nil)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per key")

	now = now.Add(time.Second) // one token per second at 60/min
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestTokenBucketPrunesIdleKeys(t *testing.T) {
	l := NewTokenBucket(2, 1, nil)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	assert.Len(t, l.state, 100)

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.Len(t, l.state, 1, "refilled buckets are dropped")

	// a drained key survives a prune
	now = now.Add(10 * time.Second)
	l.Allow("busy")
	l.Allow("busy")
	now = now.Add(50 * time.Second)
	l.Allow("other")
	_, kept := l.state["busy"]
	assert.True(t, kept)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucket(1, 1, func(*gin.Context) string { return "same" })
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucket(0, 0, nil)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
