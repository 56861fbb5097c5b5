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
	epgRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tvhgate_epg_refresh_duration_seconds",
		Help:    "Duration of EPG refresh and XMLTV export runs",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	epgRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvhgate_epg_refresh_total",
		Help: "EPG refresh runs by status",
	}, []string{"status"})

	epgLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvhgate_epg_last_success_timestamp_seconds",
		Help: "Unix time of the last successful XMLTV export",
	})

	epgItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tvhgate_epg_items",
		Help: "Channels and programmes in the last exported XMLTV document",
	}, []string{"kind"})
)

// RecordEPGRefresh records the outcome of one refresh run.
func RecordEPGRefresh(status string, d time.Duration, channels, programmes int) {
	epgRefreshDuration.Observe(d.Seconds())
	epgRefreshTotal.WithLabelValues(status).Inc()
	if status == "success" {
		epgLastSuccess.SetToCurrentTime()
		epgItems.WithLabelValues("channels").Set(float64(channels))
		epgItems.WithLabelValues("programmes").Set(float64(programmes))
	}
}
