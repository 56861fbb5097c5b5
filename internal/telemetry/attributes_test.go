// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/api/v1/status", 200)
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, HTTPMethodKey, attribute.StringValue("GET"))
	verifyAttribute(t, attrs, HTTPRouteKey, attribute.StringValue("/api/v1/status"))
	verifyAttribute(t, attrs, HTTPStatusCodeKey, attribute.IntValue(200))
}

func TestHTSPCallAttributes(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		wantLen int
	}{
		{name: "with server", server: "tvh.lan:9982", wantLen: 2},
		{name: "without server", server: "", wantLen: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := HTSPCallAttributes(tt.server, "getEvents")
			if len(attrs) != tt.wantLen {
				t.Fatalf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyAttribute(t, attrs, HTSPMethodKey, attribute.StringValue("getEvents"))
		})
	}
}

func TestEPGAttributes(t *testing.T) {
	attrs := EPGAttributes("/data/xmltv.xml", 48, 120, 4000)
	verifyAttribute(t, attrs, EPGPathKey, attribute.StringValue("/data/xmltv.xml"))
	verifyAttribute(t, attrs, EPGHorizonKey, attribute.IntValue(48))
	verifyAttribute(t, attrs, EPGChannelsKey, attribute.IntValue(120))
	verifyAttribute(t, attrs, EPGProgrammesKey, attribute.IntValue(4000))
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want attribute.Value) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value != want {
				t.Errorf("Attribute %s: expected %v, got %v", key, want.Emit(), attr.Value.Emit())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
