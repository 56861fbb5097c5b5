// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTSPCallDuration tracks request/response round-trips by method.
	HTSPCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tvhgate_htsp_call_duration_seconds",
		Help:    "HTSP request/response round-trip time",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method"})

	// HTSPCallsTotal tracks call outcomes.
	HTSPCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvhgate_htsp_calls_total",
		Help: "HTSP calls by method and result (ok, timeout, server_error, transport_error, circuit_open, canceled)",
	}, []string{"method", "result"})

	// HTSPInFlight is the number of requests waiting for a reply.
	HTSPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvhgate_htsp_inflight_requests",
		Help: "HTSP requests currently waiting for a reply",
	})

	// HTSPLateReplies counts replies that arrived after their request gave up.
	HTSPLateReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvhgate_htsp_late_replies_total",
		Help: "Replies received for requests that were no longer waiting",
	})

	// HTSPEventsTotal counts asynchronous server messages by method.
	HTSPEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvhgate_htsp_events_total",
		Help: "Asynchronous HTSP messages received by method",
	}, []string{"method"})

	// HTSPEventQueueDepth is the number of events buffered for the handler.
	HTSPEventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvhgate_htsp_event_queue_depth",
		Help: "Asynchronous events buffered and not yet handled",
	})

	// HTSPConnected is 1 while a session is established.
	HTSPConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvhgate_htsp_connected",
		Help: "Whether an HTSP session is established (1) or not (0)",
	})
)

// ObserveHTSPCall records a finished call.
func ObserveHTSPCall(method, result string, d time.Duration) {
	HTSPCallDuration.WithLabelValues(method).Observe(d.Seconds())
	HTSPCallsTotal.WithLabelValues(method, result).Inc()
}

// IncHTSPEvent records one asynchronous message.
func IncHTSPEvent(method string) {
	HTSPEventsTotal.WithLabelValues(method).Inc()
}

// SetHTSPConnected publishes the session state.
func SetHTSPConnected(connected bool) {
	if connected {
		HTSPConnected.Set(1)
		return
	}
	HTSPConnected.Set(0)
}
