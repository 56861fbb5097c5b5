// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads tvhgate settings from defaults, a strict YAML file
// and TVHGATE_* environment variables, in that order of precedence.
package config

import "time"

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	EPG       EPGConfig       `yaml:"epg"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig describes the Tvheadend HTSP connection.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	ClientName string `yaml:"clientName"`

	DialTimeout    time.Duration `yaml:"dialTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	EventBuffer    int           `yaml:"eventBuffer"`

	RateLimit      float64 `yaml:"rateLimit"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`

	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`

	// ReconnectMin and ReconnectMax bound the reconnect backoff.
	ReconnectMin time.Duration `yaml:"reconnectMin"`
	ReconnectMax time.Duration `yaml:"reconnectMax"`
}

// EPGConfig controls the XMLTV export.
type EPGConfig struct {
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Horizon  time.Duration `yaml:"horizon"`
	IconBase string        `yaml:"iconBase"`
	Lang     string        `yaml:"lang"`
	// MaxAge is how old the last successful export may be before /readyz
	// reports it as stale.
	MaxAge time.Duration `yaml:"maxAge"`
}

// HTTPConfig controls the status API.
type HTTPConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// RefreshPerMinute limits POST /api/v1/epg/refresh per client.
	RefreshPerMinute int `yaml:"refreshPerMinute"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	// File enables a rotated log file next to stdout.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:             "localhost:9982",
			ClientName:       "tvhgate",
			DialTimeout:      5 * time.Second,
			RequestTimeout:   10 * time.Second,
			EventBuffer:      256,
			RateLimit:        50,
			RateLimitBurst:   100,
			BreakerThreshold: 3,
			BreakerReset:     30 * time.Second,
			ReconnectMin:     time.Second,
			ReconnectMax:     time.Minute,
		},
		EPG: EPGConfig{
			Path:     "data/xmltv.xml",
			Interval: time.Hour,
			Horizon:  48 * time.Hour,
			MaxAge:   6 * time.Hour,
		},
		HTTP: HTTPConfig{
			ListenAddr:       ":8080",
			RefreshPerMinute: 6,
		},
		Log: LogConfig{
			Level:      "info",
			Service:    "tvhgate",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
