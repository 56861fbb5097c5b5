// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the gateway's HTTP surface: probes, metrics, the
// XMLTV file and a small JSON status API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/tvhgate/internal/api/middleware"
	"github.com/ManuGH/tvhgate/internal/health"
	"github.com/ManuGH/tvhgate/internal/htsp"
	"github.com/ManuGH/tvhgate/internal/refresher"
)

// Tuner is the server connection; *htsp.Session implements it.
type Tuner interface {
	Info() (htsp.ServerInfo, error)
	GetSysTime(ctx context.Context) (htsp.SysTime, error)
	GetDiskSpace(ctx context.Context) (htsp.DiskSpace, error)
}

// Exporter triggers and reports EPG exports; *refresher.Refresher
// implements it.
type Exporter interface {
	Status() refresher.Status
	Refresh(ctx context.Context) (refresher.Status, error)
}

// ChannelFinder resolves channel names; *epg.Store implements it.
type ChannelFinder interface {
	FindChannel(name string, maxDist int) (htsp.Channel, bool)
}

// Deps wires the server to the rest of the gateway.
type Deps struct {
	Version  string
	Tuner    Tuner
	Exporter Exporter
	Channels ChannelFinder
	Health   *health.Manager

	// XMLTVPath is served at /xmltv.xml.
	XMLTVPath string
	// RefreshPerMinute limits manual refreshes per client IP.
	RefreshPerMinute int
	// TracingService enables request tracing when set.
	TracingService string
}

// Server routes HTTP requests.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.RefreshPerMinute <= 0 {
		deps.RefreshPerMinute = 6
	}
	s := &Server{deps: deps}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics())
	if s.deps.TracingService != "" {
		r.Use(middleware.Tracing(s.deps.TracingService))
	}
	r.Use(middleware.AccessLog)

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/xmltv.xml", s.handleXMLTV)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/channels/lookup", s.handleChannelLookup)
		r.With(middleware.RateLimit(s.deps.RefreshPerMinute, time.Minute)).
			Post("/epg/refresh", s.handleRefresh)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns an http.Server for addr with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
