// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment key the loader reads.
const EnvPrefix = "TVHGATE_"

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every key the loader looked up.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. configPath may be empty for env-only setups.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, def)
}

// Load applies defaults, then the file, then the environment, and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	if abs, err := filepath.Abs(cfg.EPG.Path); err == nil {
		cfg.EPG.Path = abs
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg. Unknown keys and trailing
// documents are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the config path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	s := &cfg.Server
	s.Addr = l.envString("SERVER_ADDR", s.Addr)
	s.Username = l.envString("SERVER_USERNAME", s.Username)
	s.Password = l.envString("SERVER_PASSWORD", s.Password)
	s.ClientName = l.envString("SERVER_CLIENT_NAME", s.ClientName)
	s.DialTimeout = l.envDuration("SERVER_DIAL_TIMEOUT", s.DialTimeout)
	s.RequestTimeout = l.envDuration("SERVER_REQUEST_TIMEOUT", s.RequestTimeout)
	s.EventBuffer = l.envInt("SERVER_EVENT_BUFFER", s.EventBuffer)
	s.RateLimit = l.envFloat("SERVER_RATE_LIMIT", s.RateLimit)
	s.RateLimitBurst = l.envInt("SERVER_RATE_LIMIT_BURST", s.RateLimitBurst)
	s.BreakerThreshold = l.envInt("SERVER_BREAKER_THRESHOLD", s.BreakerThreshold)
	s.BreakerReset = l.envDuration("SERVER_BREAKER_RESET", s.BreakerReset)
	s.ReconnectMin = l.envDuration("SERVER_RECONNECT_MIN", s.ReconnectMin)
	s.ReconnectMax = l.envDuration("SERVER_RECONNECT_MAX", s.ReconnectMax)

	e := &cfg.EPG
	e.Path = l.envString("EPG_PATH", e.Path)
	e.Interval = l.envDuration("EPG_INTERVAL", e.Interval)
	e.Horizon = l.envDuration("EPG_HORIZON", e.Horizon)
	e.IconBase = l.envString("EPG_ICON_BASE", e.IconBase)
	e.Lang = l.envString("EPG_LANG", e.Lang)
	e.MaxAge = l.envDuration("EPG_MAX_AGE", e.MaxAge)

	cfg.HTTP.ListenAddr = l.envString("HTTP_LISTEN_ADDR", cfg.HTTP.ListenAddr)
	cfg.HTTP.RefreshPerMinute = l.envInt("HTTP_REFRESH_PER_MINUTE", cfg.HTTP.RefreshPerMinute)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)
	cfg.Log.File = l.envString("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSizeMB = l.envInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)
	cfg.Log.MaxBackups = l.envInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = l.envString("TELEMETRY_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", t.SamplingRate)
}
