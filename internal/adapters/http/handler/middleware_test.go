package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingObserver struct {
	inFlight int
	paths    []string
	statuses []string
}

func (o *recordingObserver) InFlight() func() {
	o.inFlight++
	return func() { o.inFlight-- }
}

func (o *recordingObserver) ObserveHTTP(_, path, status string, _ time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	h := &Handler{logger: zap.New(core)}
	wrapped := h.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.Len())
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	h := &Handler{logger: zap.New(core)}

	var seen string
	wrapped := h.requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, 1, logs.Len())
}

func TestObserve_UsesRouteTemplate(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	env := newTestEnv(t, func(d *Deps) { d.Metrics = obs })

	env.do(t, http.MethodPost, "/manager/api/approvals/abc/escalate", managerToken, map[string]string{})

	assert.Equal(t, []string{"/manager/api/approvals/{id}/escalate"}, obs.paths)
	assert.Equal(t, []string{"404"}, obs.statuses)
	assert.Zero(t, obs.inFlight)
}

func TestIPRateLimiter_PerClient(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"))
}

func TestIPRateLimiter_SweepsIdleVisitors(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(1, 1)
	l.now = func() time.Time { return now }
	for i := 0; i < limiterSweepThreshold; i++ {
		l.visitors[string(rune(i))] = &visitor{lastSeen: now}
	}

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("fresh"))
	assert.Len(t, l.visitors, 1)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", clientIP(req))
}
