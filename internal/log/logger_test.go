// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestConfigure_ServiceVersionAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "tvhgate-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("htsp")
	l.Info().Str(FieldEvent, "htsp.connected").Msg("connected")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "tvhgate-test", entry["service"])
	assert.Equal(t, "v0.0.1", entry["version"])
	assert.Equal(t, "htsp", entry[FieldComponent])
	assert.Equal(t, "htsp.connected", entry[FieldEvent])
	assert.Equal(t, "info", entry["level"])
}

func TestConfigure_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "loud", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	b := Base()
	b.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
}

func TestConfigure_FileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "tvhgate.log")
	Configure(Config{Output: &buf, File: path})

	l := WithComponent("epg")
	l.Info().Str(FieldEvent, "epg.exported").Msg("exported")
	Configure(Config{})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"epg.exported"`)
	assert.Contains(t, buf.String(), `"event":"epg.exported"`)
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSessionID(ctx, "sess-9")
	cl := WithContext(ctx, l)
	cl.Info().Msg("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "sess-9", entry[FieldSessionID])
	assert.NotContains(t, entry, FieldTraceID)
}
