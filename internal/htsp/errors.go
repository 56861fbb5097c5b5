// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htsp

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNoResponse      = errors.New("htsp: no response within deadline")
	ErrServer          = errors.New("htsp: server returned an error")
	ErrAccessDenied    = errors.New("htsp: access denied")
	ErrClosed          = errors.New("htsp: connection closed")
	ErrTransport       = errors.New("htsp: transport failure")
	ErrMalformed       = errors.New("htsp: malformed message")
	ErrUnsupportedType = errors.New("htsp: unsupported field type")
)

// CallError wraps a sentinel error with the request it belongs to.
type CallError struct {
	Sentinel error
	Method   string
	Seq      uint32
	Message  string // server supplied error text
	Err      error  // lower-level cause (e.g. net.Error)
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("htsp: %s (seq %d): %v", e.Method, e.Seq, e.Sentinel)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CallError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// countsAsFailure reports whether err says the server is unhealthy rather
// than that it answered with a refusal.
func countsAsFailure(err error) bool {
	return errors.Is(err, ErrNoResponse) || errors.Is(err, ErrTransport)
}
