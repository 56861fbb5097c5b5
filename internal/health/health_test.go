// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tvhgate/internal/config"
)

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		wantReady bool
		wantState Status
	}{
		{name: "no checkers", wantReady: true, wantState: StatusHealthy},
		{
			name:      "degraded stays ready",
			checkers:  []Checker{&mockChecker{name: "a", status: StatusHealthy}, &mockChecker{name: "b", status: StatusDegraded}},
			wantReady: true, wantState: StatusDegraded,
		},
		{
			name:      "unhealthy wins over degraded",
			checkers:  []Checker{&mockChecker{name: "a", status: StatusUnhealthy}, &mockChecker{name: "b", status: StatusDegraded}},
			wantReady: false, wantState: StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.wantState, resp.Status)
		})
	}
}

func TestManager_ServeReady(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(&mockChecker{name: "tvheadend", status: StatusUnhealthy, err: "connection refused"})

	w := httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Ready)
	assert.Equal(t, "connection refused", resp.Checks["tvheadend"].Error)
}

func TestManager_ServeHealth_AlwaysOK(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(&mockChecker{name: "x", status: StatusUnhealthy})

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)

	// a failing writer must not panic
	m.ServeHealth(&brokenWriter{header: make(http.Header)}, httptest.NewRequest(http.MethodGet, "/healthz", nil))
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "xmltv.xml")
	empty := filepath.Join(dir, "empty.xml")
	require.NoError(t, os.WriteFile(full, []byte("<tv/>"), 0o600))
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	tests := []struct {
		path string
		want Status
	}{
		{full, StatusHealthy},
		{empty, StatusDegraded},
		{dir, StatusUnhealthy},
		{filepath.Join(dir, "missing.xml"), StatusUnhealthy},
	}
	for _, tt := range tests {
		c := NewFileChecker("xmltv", tt.path)
		assert.Equal(t, "xmltv", c.Name())
		assert.Equal(t, tt.want, c.Check(context.Background()).Status, tt.path)
	}
}

func TestLastRunChecker(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		last    time.Time
		lastErr string
		want    Status
	}{
		{name: "never ran", want: StatusUnhealthy},
		{name: "never succeeded", lastErr: "fetch events: no response", want: StatusUnhealthy},
		{name: "fresh", last: now.Add(-time.Minute), want: StatusHealthy},
		{name: "latest failed", last: now.Add(-time.Minute), lastErr: "disk full", want: StatusDegraded},
		{name: "stale", last: now.Add(-7 * time.Hour), want: StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLastRunChecker(func() (time.Time, string) { return tt.last, tt.lastErr }, 6*time.Hour)
			c.now = func() time.Time { return now }
			res := c.Check(context.Background())
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, tt.lastErr, res.Error)
		})
	}
}

func TestConnectionChecker(t *testing.T) {
	var state error
	c := NewConnectionChecker("tvheadend", func() error { return state })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	state = errors.New("connection reset by peer")
	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "connection reset by peer", res.Error)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.EPG.Path = filepath.Join(t.TempDir(), "out", "xmltv.xml")
	require.NoError(t, PerformStartupChecks(cfg))
	assert.DirExists(t, filepath.Dir(cfg.EPG.Path))

	cfg.HTTP.ListenAddr = "8080"
	assert.ErrorContains(t, PerformStartupChecks(cfg), "listen address")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg = config.Defaults()
	cfg.EPG.Path = filepath.Join(blocker, "xmltv.xml")
	assert.ErrorContains(t, PerformStartupChecks(cfg), "output directory")
}

type mockChecker struct {
	name   string
	status Status
	err    string
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{Status: m.status, Error: m.err}
}

// brokenWriter always fails to write.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func (w *brokenWriter) WriteHeader(int) {}
