package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestLimiter(window time.Duration, clock *fakeClock) *rateLimiter {
	return &rateLimiter{
		window:        window,
		last:          make(map[string]time.Time),
		sweepInterval: window * 10,
		now:           clock.now,
	}
}

func hit(l *rateLimiter, user, path string) bool {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", path, nil)
	if user != "" {
		c.Set(ContextUserIDKey, user)
	}
	l.handle(c)
	return !c.IsAborted()
}

func TestRateLimitPerUserAndPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := newTestLimiter(5*time.Second, clock)

	steps := []struct {
		name    string
		user    string
		path    string
		advance time.Duration
		allowed bool
	}{
		{"first ask", "alice", "/api/v1/assistant/ask", 0, true},
		{"repeat inside window", "alice", "/api/v1/assistant/ask", time.Second, false},
		{"other user", "bob", "/api/v1/assistant/ask", 0, true},
		{"other path", "alice", "/api/v1/assistant/index", 0, true},
		{"anonymous", "", "/api/v1/assistant/ask", 0, true},
		{"after window", "alice", "/api/v1/assistant/ask", 5 * time.Second, true},
	}
	for _, st := range steps {
		clock.t = clock.t.Add(st.advance)
		require.Equal(t, st.allowed, hit(l, st.user, st.path), st.name)
	}
}

func TestRateLimitDisabledWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := newTestLimiter(0, &fakeClock{t: time.Now()})
	for i := 0; i < 3; i++ {
		require.True(t, hit(l, "alice", "/api/v1/assistant/ask"))
	}
	require.Empty(t, l.last)
}

func TestRateLimitSweepDropsStaleKeys(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(10*time.Second, &fakeClock{t: base})
	l.last["stale"] = base.Add(-30 * time.Second)
	l.last["fresh"] = base.Add(-time.Second)

	l.mu.Lock()
	l.cleanupExpiredLocked(base)
	l.mu.Unlock()

	require.NotContains(t, l.last, "stale")
	require.Contains(t, l.last, "fresh")
	require.Equal(t, base, l.lastSweep)
}
