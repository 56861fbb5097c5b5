// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestObserveHTSPCall(t *testing.T) {
	before := testutil.ToFloat64(HTSPCallsTotal.WithLabelValues("getEvents", "timeout"))
	ObserveHTSPCall("getEvents", "timeout", 250*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTSPCallsTotal.WithLabelValues("getEvents", "timeout")))
}

func TestSetHTSPConnected(t *testing.T) {
	SetHTSPConnected(true)
	assert.Equal(t, 1.0, gaugeValue(t, HTSPConnected))
	SetHTSPConnected(false)
	assert.Equal(t, 0.0, gaugeValue(t, HTSPConnected))
}

func TestSetCircuitBreakerState_OneHot(t *testing.T) {
	SetCircuitBreakerState("unit", "open")
	for state, want := range map[string]float64{"closed": 0, "half-open": 0, "open": 1} {
		assert.Equal(t, want, gaugeValue(t, circuitBreakerState.WithLabelValues("unit", state)), state)
	}

	SetCircuitBreakerState("unit", "closed")
	assert.Equal(t, 1.0, gaugeValue(t, circuitBreakerState.WithLabelValues("unit", "closed")))
	assert.Equal(t, 0.0, gaugeValue(t, circuitBreakerState.WithLabelValues("unit", "open")))
}

func TestDeadlineMetrics(t *testing.T) {
	before := testutil.ToFloat64(DeadlineTimeouts.WithLabelValues("unit_op"))
	IncDeadlineTimeout("unit_op")
	AddDeadlineAbandoned("unit_op", 1)
	assert.Equal(t, before+1, testutil.ToFloat64(DeadlineTimeouts.WithLabelValues("unit_op")))
	assert.Equal(t, 1.0, gaugeValue(t, DeadlineAbandonedInFlight.WithLabelValues("unit_op")))
	AddDeadlineAbandoned("unit_op", -1)
	assert.Equal(t, 0.0, gaugeValue(t, DeadlineAbandonedInFlight.WithLabelValues("unit_op")))
}

func TestRecordEPGRefresh(t *testing.T) {
	RecordEPGRefresh("success", time.Second, 12, 340)
	assert.Equal(t, 12.0, gaugeValue(t, epgItems.WithLabelValues("channels")))
	assert.Equal(t, 340.0, gaugeValue(t, epgItems.WithLabelValues("programmes")))
	assert.Positive(t, gaugeValue(t, epgLastSuccess))

	// a failed run keeps the last exported counts
	failures := testutil.ToFloat64(epgRefreshTotal.WithLabelValues("failure"))
	RecordEPGRefresh("failure", time.Second, 0, 0)
	assert.Equal(t, failures+1, testutil.ToFloat64(epgRefreshTotal.WithLabelValues("failure")))
	assert.Equal(t, 12.0, gaugeValue(t, epgItems.WithLabelValues("channels")))
}

func TestPromhttpExposure(t *testing.T) {
	IncHTSPEvent("channelAdd")

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"tvhgate_htsp_events_total",
		"tvhgate_htsp_calls_total",
		"tvhgate_epg_refresh_total",
		"tvhgate_circuit_breaker_state",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
