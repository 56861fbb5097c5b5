// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeadlineTimeouts counts waits abandoned because the operation outlived its deadline.
	DeadlineTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvhgate_deadline_timeouts_total",
		Help: "Operations whose result was abandoned after the wait deadline elapsed",
	}, []string{"operation"})

	// DeadlineAbandonedInFlight tracks abandoned operations that are still running.
	DeadlineAbandonedInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tvhgate_deadline_abandoned_inflight",
		Help: "Abandoned operations still running in the background",
	}, []string{"operation"})
)

// IncDeadlineTimeout records one abandoned wait for operation.
func IncDeadlineTimeout(operation string) {
	DeadlineTimeouts.WithLabelValues(operation).Inc()
}

// AddDeadlineAbandoned adjusts the number of abandoned operations still running.
func AddDeadlineAbandoned(operation string, delta float64) {
	DeadlineAbandonedInFlight.WithLabelValues(operation).Add(delta)
}
