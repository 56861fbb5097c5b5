// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/tvhgate/internal/validate"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}

// Validate checks every field and reports all failures at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	s := cfg.Server
	v.HostPort("server.addr", s.Addr, false)
	v.NotEmpty("server.clientName", s.ClientName)
	if s.Password != "" && s.Username == "" {
		v.AddError("server.username", "username is required when a password is set", s.Username)
	}
	v.DurationRange("server.dialTimeout", s.DialTimeout, 100*time.Millisecond, 5*time.Minute)
	v.DurationRange("server.requestTimeout", s.RequestTimeout, 100*time.Millisecond, 5*time.Minute)
	v.Range("server.eventBuffer", s.EventBuffer, 1, 1<<20)
	v.FloatRange("server.rateLimit", s.RateLimit, 0.1, 10000)
	v.Range("server.rateLimitBurst", s.RateLimitBurst, 1, 100000)
	v.Range("server.breakerThreshold", s.BreakerThreshold, 1, 1000)
	v.DurationRange("server.breakerReset", s.BreakerReset, time.Second, time.Hour)
	v.DurationRange("server.reconnectMin", s.ReconnectMin, 10*time.Millisecond, time.Hour)
	if s.ReconnectMax < s.ReconnectMin {
		v.AddError("server.reconnectMax", "must not be smaller than reconnectMin", s.ReconnectMax)
	}

	e := cfg.EPG
	v.FilePath("epg.path", e.Path)
	v.DurationRange("epg.interval", e.Interval, time.Minute, 7*24*time.Hour)
	v.DurationRange("epg.horizon", e.Horizon, time.Hour, 30*24*time.Hour)
	if e.MaxAge < e.Interval {
		v.AddError("epg.maxAge", "must not be smaller than epg.interval", e.MaxAge)
	}

	v.HostPort("http.listenAddr", cfg.HTTP.ListenAddr, true)
	v.Range("http.refreshPerMinute", cfg.HTTP.RefreshPerMinute, 1, 600)

	v.OneOf("log.level", cfg.Log.Level, logLevels)
	if cfg.Log.File != "" {
		v.FilePath("log.file", cfg.Log.File)
		v.Range("log.maxSizeMB", cfg.Log.MaxSizeMB, 1, 10240)
		v.Range("log.maxBackups", cfg.Log.MaxBackups, 0, 1000)
	}

	if t := cfg.Telemetry; t.Enabled {
		v.OneOf("telemetry.exporter", t.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", t.Endpoint)
		v.FloatRange("telemetry.samplingRate", t.SamplingRate, 0, 1)
	}

	return v.Err()
}
