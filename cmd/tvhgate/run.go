// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/tvhgate/internal/api"
	"github.com/ManuGH/tvhgate/internal/config"
	"github.com/ManuGH/tvhgate/internal/epg"
	"github.com/ManuGH/tvhgate/internal/health"
	"github.com/ManuGH/tvhgate/internal/htsp"
	xglog "github.com/ManuGH/tvhgate/internal/log"
	"github.com/ManuGH/tvhgate/internal/refresher"
	"github.com/ManuGH/tvhgate/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// gateway is the wired process: tuner session, EPG store, exporter and
// HTTP surface.
type gateway struct {
	session   *htsp.Session
	store     *epg.Store
	refresher *refresher.Refresher
	api       *api.Server
}

func newGateway(cfg config.AppConfig) *gateway {
	store := epg.NewStore()
	session := htsp.NewSession(htsp.SessionOptions{
		Client: htsp.Options{
			Addr:             cfg.Server.Addr,
			Username:         cfg.Server.Username,
			Password:         cfg.Server.Password,
			ClientName:       cfg.Server.ClientName,
			ClientVersion:    cfg.Version,
			DialTimeout:      cfg.Server.DialTimeout,
			RequestTimeout:   cfg.Server.RequestTimeout,
			EventBuffer:      cfg.Server.EventBuffer,
			Handler:          store,
			RateLimit:        rate.Limit(cfg.Server.RateLimit),
			RateLimitBurst:   cfg.Server.RateLimitBurst,
			BreakerThreshold: cfg.Server.BreakerThreshold,
			BreakerReset:     cfg.Server.BreakerReset,
		},
		Horizon:    cfg.EPG.Horizon,
		MinBackoff: cfg.Server.ReconnectMin,
		MaxBackoff: cfg.Server.ReconnectMax,
	})
	ref := refresher.New(session, store, refresher.Options{
		Path:     cfg.EPG.Path,
		Interval: cfg.EPG.Interval,
		Horizon:  cfg.EPG.Horizon,
		Build: epg.BuildOptions{
			Generator: "tvhgate",
			IconBase:  cfg.EPG.IconBase,
			Lang:      cfg.EPG.Lang,
		},
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewConnectionChecker("tvheadend", session.Err))
	hm.RegisterChecker(health.NewLastRunChecker(ref.LastRun, cfg.EPG.MaxAge))
	hm.RegisterChecker(health.NewFileChecker("xmltv_file", cfg.EPG.Path))

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.Log.Service
	}
	srv := api.New(api.Deps{
		Version:          cfg.Version,
		Tuner:            session,
		Exporter:         ref,
		Channels:         store,
		Health:           hm,
		XMLTVPath:        cfg.EPG.Path,
		RefreshPerMinute: cfg.HTTP.RefreshPerMinute,
		TracingService:   tracing,
	})

	return &gateway{session: session, store: store, refresher: ref, api: srv}
}

// run starts every component and blocks until ctx ends or one of them
// fails.
func run(ctx context.Context, holder *config.Holder) error {
	cfg := holder.Get()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	holder.OnReload(applyReload)

	gw := newGateway(cfg)
	ln, err := net.Listen("tcp", cfg.HTTP.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTP.ListenAddr, err)
	}
	return gw.serve(ctx, ln, holder)
}

func (gw *gateway) serve(ctx context.Context, ln net.Listener, holder *config.Holder) error {
	logger := xglog.WithComponent("daemon")
	httpSrv := gw.api.HTTPServer(ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.session.Run(gctx) })
	g.Go(func() error { return gw.refresher.Run(gctx) })
	g.Go(func() error { return holder.Watch(gctx) })
	g.Go(func() error {
		logger.Info().
			Str(xglog.FieldEvent, "http.listening").
			Str("addr", ln.Addr().String()).
			Msg("HTTP server listening")
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// applyReload applies what can change at runtime. Connection and export
// settings take effect on restart.
func applyReload(old, cur config.AppConfig) {
	if old.Log != cur.Log {
		xglog.Configure(logConfig(cur))
	}
	if old.Server != cur.Server || old.EPG != cur.EPG || old.HTTP != cur.HTTP || old.Telemetry != cur.Telemetry {
		logger := xglog.WithComponent("daemon")
		logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Msg("configuration changed; restart tvhgate to apply connection, export and HTTP settings")
	}
}

func logConfig(cfg config.AppConfig) xglog.Config {
	return xglog.Config{
		Level:      cfg.Log.Level,
		Service:    cfg.Log.Service,
		Version:    cfg.Version,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
}
