// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package deadline bounds how long a caller waits for an operation without
// stopping the operation itself.
//
// A timed-out operation keeps running on its own goroutine and its eventual
// result is discarded. Callers must not assume it has stopped; operations
// that need to end early have to observe their own cancellation signal.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/tvhgate/internal/log"
	"github.com/ManuGH/tvhgate/internal/metrics"
)

// ErrPanic wraps a panic recovered from an operation.
var ErrPanic = errors.New("deadline: operation panicked")

// Result is the outcome of one Run.
type Result[T any] struct {
	// Value is the operation's result, or the zero value when TimedOut.
	Value T
	// TimedOut reports that the deadline elapsed before the operation finished.
	TimedOut bool
}

// Runner waits up to Timeout for an operation. It holds no mutable state and
// may be shared between goroutines.
type Runner[T any] struct {
	// Timeout bounds the wait. Zero or negative waits without a deadline.
	Timeout time.Duration
	// Name labels timeout metrics and logs. Defaults to "unnamed".
	Name string
}

type outcome[T any] struct {
	value T
	err   error
}

// Run starts op on its own goroutine and returns when op finishes, the
// timeout elapses or ctx is done, whichever comes first.
//
// A timeout is not an error: the result has TimedOut set and err is nil.
// An error from op is returned only if op finished in time. When ctx ends
// first, ctx.Err() is returned.
func (r Runner[T]) Run(ctx context.Context, op func() (T, error)) (Result[T], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	name := r.Name
	if name == "" {
		name = "unnamed"
	}

	var state atomic.Int32
	// Buffered so the goroutine never blocks on delivery.
	done := make(chan outcome[T], 1)
	go func() {
		out := call(op)
		if state.CompareAndSwap(pending, finished) {
			done <- out
			return
		}
		metrics.AddDeadlineAbandoned(name, -1)
	}()

	var timeout <-chan time.Time
	if r.Timeout > 0 {
		timer := time.NewTimer(r.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case out := <-done:
		return Result[T]{Value: out.value}, out.err
	case <-timeout:
		if !abandon(&state, name) {
			out := <-done
			return Result[T]{Value: out.value}, out.err
		}
		metrics.IncDeadlineTimeout(name)
		logger := xglog.WithComponentFromContext(ctx, "deadline")
		logger.Debug().
			Str(xglog.FieldEvent, "deadline.timed_out").
			Str(xglog.FieldOperation, name).
			Dur(xglog.FieldTimeout, r.Timeout).
			Msg("operation outlived its deadline; result will be discarded")
		return Result[T]{TimedOut: true}, nil
	case <-ctx.Done():
		if !abandon(&state, name) {
			out := <-done
			return Result[T]{Value: out.value}, out.err
		}
		return Result[T]{}, ctx.Err()
	}
}

const (
	pending int32 = iota
	finished
	abandoned
)

// abandon marks a still-pending operation as orphaned. It reports false when
// the operation finished first, in which case its outcome is on the channel.
func abandon(state *atomic.Int32, name string) bool {
	metrics.AddDeadlineAbandoned(name, 1)
	if state.CompareAndSwap(pending, abandoned) {
		return true
	}
	metrics.AddDeadlineAbandoned(name, -1)
	return false
}

// RunWithTimeout runs op with a one-off Runner.
func RunWithTimeout[T any](ctx context.Context, timeout time.Duration, op func() (T, error)) (Result[T], error) {
	return Runner[T]{Timeout: timeout}.Run(ctx, op)
}

func call[T any](op func() (T, error)) (out outcome[T]) {
	defer func() {
		if p := recover(); p != nil {
			out = outcome[T]{err: fmt.Errorf("%w: %v", ErrPanic, p)}
		}
	}()
	v, err := op()
	return outcome[T]{value: v, err: err}
}
