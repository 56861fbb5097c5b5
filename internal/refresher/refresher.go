// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package refresher periodically pulls upcoming EPG events from the server
// and exports the store as XMLTV.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/tvhgate/internal/epg"
	"github.com/ManuGH/tvhgate/internal/htsp"
	xglog "github.com/ManuGH/tvhgate/internal/log"
	"github.com/ManuGH/tvhgate/internal/metrics"
	"github.com/ManuGH/tvhgate/internal/telemetry"
)

// ErrNotSynced is returned while the initial metadata sync is outstanding.
var ErrNotSynced = errors.New("refresher: initial sync not completed")

// EventSource fetches events; *htsp.Client implements it.
type EventSource interface {
	GetEvents(ctx context.Context, q htsp.EventQuery) ([]htsp.Event, error)
}

// Options configures a Refresher.
type Options struct {
	// Path is the XMLTV output file.
	Path string
	// Interval between scheduled refreshes. Defaults to 1h.
	Interval time.Duration
	// Horizon limits how far ahead events are fetched. Defaults to 48h.
	Horizon time.Duration
	Build   epg.BuildOptions

	// Now is the clock; tests override it.
	Now func() time.Time
}

// Status describes the most recent refresh.
type Status struct {
	LastRun     time.Time     `json:"last_run"`
	LastSuccess time.Time     `json:"last_success"`
	LastError   string        `json:"last_error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Channels    int           `json:"channels"`
	Programmes  int           `json:"programmes"`
}

// Refresher exports the EPG on a schedule and on demand. Concurrent
// requests share one run.
type Refresher struct {
	src   EventSource
	store *epg.Store
	opts  Options

	group singleflight.Group

	mu     sync.RWMutex
	status Status
}

// New returns a Refresher writing store to opts.Path.
func New(src EventSource, store *epg.Store, opts Options) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 48 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Refresher{src: src, store: store, opts: opts}
}

// Status returns the outcome of the last completed refresh.
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastRun reports the last successful export and the last error, if the
// latest run failed.
func (r *Refresher) LastRun() (time.Time, string) {
	s := r.Status()
	return s.LastSuccess, s.LastError
}

// Run waits for the initial sync, refreshes once and then every Interval
// until ctx ends. Failed runs are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context) error {
	logger := xglog.WithComponentFromContext(ctx, "refresher")
	if err := r.store.WaitSynced(ctx); err != nil {
		return nil
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "epg.refresh_failed").
				Msg("EPG refresh failed; retrying on next tick")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh fetches events up to the horizon, merges them into the store and
// rewrites the XMLTV file. A call made while a refresh is running waits for
// that run and shares its result.
//
// The run itself does not observe ctx cancellation; a caller whose ctx ends
// stops waiting with ctx.Err() while the run completes for everyone else.
// Each HTSP request within the run is still bounded by the request timeout.
func (r *Refresher) Refresh(ctx context.Context) (Status, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			logger := xglog.WithComponentFromContext(ctx, "refresher")
			logger.Debug().
				Str(xglog.FieldEvent, "epg.refresh_shared").
				Msg("joined in-flight EPG refresh")
		}
		st, _ := res.Val.(Status)
		return st, res.Err
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (r *Refresher) refresh(ctx context.Context) (Status, error) {
	if !r.store.Synced() {
		return r.Status(), ErrNotSynced
	}

	ctx, span := telemetry.Tracer("tvhgate/refresher").Start(ctx, "epg.refresh")
	defer span.End()
	logger := xglog.WithComponentFromContext(ctx, "refresher")

	start := r.opts.Now()
	st := Status{LastRun: start}

	err := r.export(ctx, start, &st)
	st.Duration = time.Since(start)

	r.mu.Lock()
	if err != nil {
		st.LastSuccess = r.status.LastSuccess
		st.LastError = err.Error()
	} else {
		st.LastSuccess = start
	}
	r.status = st
	r.mu.Unlock()

	span.SetAttributes(telemetry.EPGAttributes(r.opts.Path, int(r.opts.Horizon/time.Hour), st.Channels, st.Programmes)...)
	if err != nil {
		metrics.RecordEPGRefresh("failure", st.Duration, st.Channels, st.Programmes)
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return st, err
	}

	metrics.RecordEPGRefresh("success", st.Duration, st.Channels, st.Programmes)
	logger.Info().
		Str(xglog.FieldEvent, "epg.refreshed").
		Str(xglog.FieldPath, r.opts.Path).
		Int("channels", st.Channels).
		Int("programmes", st.Programmes).
		Dur(xglog.FieldElapsed, st.Duration).
		Msg("XMLTV export written")
	return st, nil
}

func (r *Refresher) export(ctx context.Context, now time.Time, st *Status) error {
	events, err := r.src.GetEvents(ctx, htsp.EventQuery{MaxTime: now.Add(r.opts.Horizon)})
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	r.store.Merge(events)
	r.store.Prune(now)

	tv := epg.BuildTV(r.store.Snapshot(), r.opts.Build)
	st.Channels, st.Programmes = len(tv.Channels), len(tv.Programs)
	if err := epg.WriteXMLTV(ctx, r.opts.Path, tv); err != nil {
		return err
	}
	return nil
}
