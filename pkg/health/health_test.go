package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	pingOK   = pingFunc(func(context.Context) error { return nil })
	pingFail = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("redis", PingCheck(pingOK, false))
	c.Register("index", IndexCheck(func() int { return 0 }))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["redis"].Status)
	assert.Equal(t, "index is empty", report.Components["index"].Message)

	c.Register("neo4j", PingCheck(pingFail, true))
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "connection refused", report.Components["neo4j"].Message)
}

func TestOptionalDependencyOnlyDegrades(t *testing.T) {
	h := PingCheck(pingFail, false)(context.Background())
	assert.Equal(t, StatusDegraded, h.Status)
}

func TestBreakerCheck(t *testing.T) {
	assert.Equal(t, StatusUp, BreakerCheck(func() string { return "closed" })(context.Background()).Status)
	h := BreakerCheck(func() string { return "open" })(context.Background())
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Equal(t, "circuit open", h.Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("index", IndexCheck(func() int { return 3 }))
	c.Register("graph", BreakerCheck(func() string { return "half-open" }))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("postgres", PingCheck(pingFail, true))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}
