// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tvhgate/internal/config"
	"github.com/ManuGH/tvhgate/internal/epg"
	"github.com/ManuGH/tvhgate/internal/htsp"
)

func TestHealthcheck(t *testing.T) {
	ready := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" && !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	assert.Equal(t, 0, healthcheck([]string{"-url", srv.URL}, &out, &errOut))
	assert.Contains(t, out.String(), "successful (ready)")

	ready = false
	assert.Equal(t, 1, healthcheck([]string{"-url", srv.URL}, &out, &errOut))
	assert.Equal(t, 0, healthcheck([]string{"-url", srv.URL, "-mode", "live"}, &out, &errOut))
	assert.Equal(t, 2, healthcheck([]string{"-bogus"}, &out, &errOut))
}

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("server:\n  addr: tvh:9982\n"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("server:\n  addres: tvh:9982\n"), 0o600))

	var out, errOut bytes.Buffer
	assert.Equal(t, 0, validateConfig([]string{"-f", good}, &out, &errOut))
	assert.Contains(t, out.String(), "is valid")
	assert.Equal(t, 1, validateConfig([]string{"--file", bad}, &out, &errOut))
	assert.Contains(t, errOut.String(), "unknown config field")
	assert.Equal(t, 2, validateConfig(nil, &out, &errOut))
}

// TestGateway_EndToEnd wires the gateway against the mock server and
// drives it over HTTP.
func TestGateway_EndToEnd(t *testing.T) {
	mock := htsp.NewMockServer()
	defer mock.Close()
	mock.SetDefaultData()

	cfg := config.Defaults()
	cfg.Version = "e2e"
	cfg.Server.Addr = mock.Addr()
	cfg.Server.ReconnectMin = 10 * time.Millisecond
	cfg.EPG.Path = filepath.Join(t.TempDir(), "xmltv.xml")

	gw := newGateway(cfg)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.serve(ctx, ln, config.NewHolder(cfg, config.NewLoader("", "e2e"), "")) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("gateway did not shut down")
		}
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 20*time.Millisecond, "ready once connected and exported")

	resp, err := http.Get(base + "/xmltv.xml")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tv, err := epg.ReadXMLTV(cfg.EPG.Path)
	require.NoError(t, err)
	assert.Len(t, tv.Channels, 2)

	lookup, err := http.Get(base + "/api/v1/channels/lookup?name=zdf")
	require.NoError(t, err)
	defer func() { _ = lookup.Body.Close() }()
	require.Equal(t, http.StatusOK, lookup.StatusCode)
	var ch struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(lookup.Body).Decode(&ch))
	assert.Equal(t, "ZDF HD", ch.Name)
}
