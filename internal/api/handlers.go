// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ManuGH/tvhgate/internal/htsp"
	"github.com/ManuGH/tvhgate/internal/log"
	"github.com/ManuGH/tvhgate/internal/refresher"
)

const defaultMaxDistance = 2

type serverStatus struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	HTSPVersion  int64    `json:"htspVersion"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type clockStatus struct {
	Time      time.Time `json:"time"`
	GMTOffset string    `json:"gmtOffset"`
	Timezone  string    `json:"timezone,omitempty"`
}

type diskStatus struct {
	Free  int64 `json:"free"`
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

type statusResponse struct {
	Version   string           `json:"version"`
	Connected bool             `json:"connected"`
	Error     string           `json:"error,omitempty"`
	Server    *serverStatus    `json:"server,omitempty"`
	Clock     *clockStatus     `json:"clock,omitempty"`
	Disk      *diskStatus      `json:"disk,omitempty"`
	EPG       refresher.Status `json:"epg"`
}

type channelResponse struct {
	ID     uint32 `json:"id"`
	Number int64  `json:"number"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
}

// handleStatus reports the tuner and the last export. Tuner failures are
// reported in the body; the endpoint itself stays 200.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statusResponse{
		Version: s.deps.Version,
		EPG:     s.deps.Exporter.Status(),
	}

	info, err := s.deps.Tuner.Info()
	if err == nil {
		resp.Server = &serverStatus{
			Name:         info.Name,
			Version:      info.Version,
			HTSPVersion:  info.HTSPVersion,
			Capabilities: info.Capabilities,
		}
		var st htsp.SysTime
		if st, err = s.deps.Tuner.GetSysTime(ctx); err == nil {
			resp.Clock = &clockStatus{Time: st.Time, GMTOffset: st.GMTOffset.String(), Timezone: st.Timezone}
			var ds htsp.DiskSpace
			if ds, err = s.deps.Tuner.GetDiskSpace(ctx); err == nil {
				resp.Disk = &diskStatus{Free: ds.Free, Used: ds.Used, Total: ds.Total}
			}
		}
	}
	resp.Connected = resp.Server != nil
	if err != nil {
		resp.Error = err.Error()
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Debug().Err(err).Str(log.FieldEvent, "status.tuner_error").Msg("tuner status incomplete")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChannelLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "missing_name", "query parameter name is required")
		return
	}
	maxDist := defaultMaxDistance
	if v := q.Get("maxDistance"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 10 {
			writeError(w, r, http.StatusBadRequest, "invalid_max_distance", "maxDistance must be an integer between 0 and 10")
			return
		}
		maxDist = n
	}

	ch, ok := s.deps.Channels.FindChannel(name, maxDist)
	if !ok {
		writeError(w, r, http.StatusNotFound, "channel_not_found", "no channel matches "+strconv.Quote(name))
		return
	}
	writeJSON(w, http.StatusOK, channelResponse{ID: ch.ID, Number: ch.Number, Name: ch.Name, Icon: ch.Icon})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Exporter.Refresh(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, refresher.ErrNotSynced):
		writeError(w, r, http.StatusConflict, "not_synced", err.Error())
	case errors.Is(err, htsp.ErrNotConnected), errors.Is(err, htsp.ErrClosed), errors.Is(err, htsp.ErrTransport):
		writeError(w, r, http.StatusServiceUnavailable, "tuner_unavailable", err.Error())
	default:
		writeError(w, r, http.StatusBadGateway, "refresh_failed", err.Error())
	}
}

// handleXMLTV serves the last export with conditional request support.
func (s *Server) handleXMLTV(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	// #nosec G304 -- the path comes from validated configuration
	f, err := os.Open(s.deps.XMLTVPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, r, http.StatusNotFound, "xmltv_not_available", "no XMLTV export yet")
			return
		}
		logger.Error().Err(err).Str(log.FieldEvent, "xmltv.open_failed").Msg("failed to open XMLTV file")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "cannot read XMLTV file")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "cannot read XMLTV file")
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, "xmltv.xml", info.ModTime(), f)
}
