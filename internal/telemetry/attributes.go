// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the service.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	HTSPMethodKey   = "htsp.method"
	HTSPSeqKey      = "htsp.seq"
	HTSPResultKey   = "htsp.result"
	HTSPTimedOutKey = "htsp.timed_out"
	HTSPServerKey   = "htsp.server"

	EPGChannelsKey   = "epg.channels"
	EPGProgrammesKey = "epg.programmes"
	EPGHorizonKey    = "epg.horizon_hours"
	EPGPathKey       = "epg.path"

	ErrorTypeKey = "error.type"
)

// HTTPAttributes describes an inbound HTTP request.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// HTSPCallAttributes describes one request to the server.
func HTSPCallAttributes(server, method string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(HTSPMethodKey, method)}
	if server != "" {
		attrs = append(attrs, attribute.String(HTSPServerKey, server))
	}
	return attrs
}

// EPGAttributes describes an XMLTV export.
func EPGAttributes(path string, horizonHours, channels, programmes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EPGPathKey, path),
		attribute.Int(EPGHorizonKey, horizonHours),
		attribute.Int(EPGChannelsKey, channels),
		attribute.Int(EPGProgrammesKey, programmes),
	}
}

// ErrorAttributes classifies a failure.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ErrorTypeKey, errorType),
	}
}
