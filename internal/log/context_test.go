// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		request string
		session string
	}{
		{name: "nil context", ctx: nil},
		{name: "empty", ctx: context.Background()},
		{name: "request only", ctx: ContextWithRequestID(context.Background(), "req-1"), request: "req-1"},
		{name: "session only", ctx: ContextWithSessionID(context.Background(), "sess-1"), session: "sess-1"},
		{
			name:    "both",
			ctx:     ContextWithSessionID(ContextWithRequestID(context.Background(), "req-2"), "sess-2"),
			request: "req-2",
			session: "sess-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.request, RequestIDFromContext(tt.ctx))
			assert.Equal(t, tt.session, SessionIDFromContext(tt.ctx))
		})
	}
}

func TestWithContext_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	l := WithContext(ContextWithRequestID(spanContext(t), "req-7"), zerolog.New(&buf))
	l.Info().Msg("traced")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry[FieldTraceID])
	assert.Equal(t, "00f067aa0ba902b7", entry[FieldSpanID])
	assert.Equal(t, "req-7", entry[FieldRequestID])
}

func TestWithContext_NoopSpanAddsNothing(t *testing.T) {
	ctx, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "noop")
	defer span.End()

	var buf bytes.Buffer
	l := WithContext(ctx, zerolog.New(&buf))
	l.Info().Msg("plain")

	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry, FieldTraceID)
	assert.NotContains(t, entry, FieldRequestID)
}

func TestWithComponentFromContext(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithSessionID(spanContext(t), "sess-3")
	l := WithComponentFromContext(ctx, "deadline")
	l.Info().Msg("timed out")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "deadline", entry[FieldComponent])
	assert.Equal(t, "sess-3", entry[FieldSessionID])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry[FieldTraceID])
}

func TestFromContext_PrefersContextLogger(t *testing.T) {
	var buf bytes.Buffer
	stored := zerolog.New(&buf).With().Str("origin", "ctx").Logger()
	ctx := stored.WithContext(context.Background())

	FromContext(ctx).Info().Msg("hello")
	assert.Equal(t, "ctx", decodeLine(t, &buf)["origin"])

	assert.NotNil(t, FromContext(nil))
	assert.NotNil(t, FromContext(context.Background()))
}
