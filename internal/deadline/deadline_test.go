// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/tvhgate/internal/metrics"
	"github.com/ManuGH/tvhgate/internal/queue"
)

func TestRun_TimesOutOnEmptyQueue(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := queue.New[string](1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := Runner[string]{Timeout: 100 * time.Millisecond, Name: "test_empty_queue"}
	before := testutil.ToFloat64(metrics.DeadlineTimeouts.WithLabelValues("test_empty_queue"))

	start := time.Now()
	res, err := r.Run(context.Background(), func() (string, error) {
		return q.DequeueContext(ctx)
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, "", res.Value)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DeadlineTimeouts.WithLabelValues("test_empty_queue")))

	// release the abandoned dequeue so the leak check passes
	cancel()
}

func TestRun_CompletesBeforeDeadline(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := queue.New[string](1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		q.Enqueue("X")
	}()

	start := time.Now()
	res, err := RunWithTimeout(context.Background(), 5*time.Second, func() (string, error) {
		return q.Dequeue(), nil
	})

	require.NoError(t, err)
	assert.Equal(t, Result[string]{Value: "X", TimedOut: false}, res)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRun_AbandonedDequeueLeavesQueueConsistent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := queue.New[string](1)
	discarded := make(chan string, 1)

	res, err := RunWithTimeout(context.Background(), 30*time.Millisecond, func() (string, error) {
		v := q.Dequeue()
		discarded <- v
		return v, nil
	})
	require.NoError(t, err)
	require.True(t, res.TimedOut)

	// The abandoned dequeue is still waiting and takes the first late item.
	q.Enqueue("late")
	select {
	case v := <-discarded:
		assert.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("abandoned operation never completed")
	}

	// A fresh producer/consumer pair sees a consistent queue.
	q.Enqueue("fresh")
	assert.Equal(t, "fresh", q.Dequeue())
	assert.Equal(t, 0, q.Len())
}

func TestRun_PropagatesOperationError(t *testing.T) {
	boom := errors.New("boom")
	res, err := RunWithTimeout(context.Background(), time.Second, func() (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.TimedOut)
}

func TestRun_SwallowsErrorAfterTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	finished := make(chan struct{})
	res, err := RunWithTimeout(context.Background(), 20*time.Millisecond, func() (int, error) {
		defer close(finished)
		<-release
		return 0, errors.New("too late")
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)

	close(release)
	<-finished
}

func TestRun_RecoversPanic(t *testing.T) {
	_, err := RunWithTimeout(context.Background(), time.Second, func() (int, error) {
		panic("kaboom")
	})
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRun_CallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := Runner[int]{Timeout: 5 * time.Second}.Run(ctx, func() (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.TimedOut)
	close(release)
}

func TestRun_NoTimeoutWaitsForCompletion(t *testing.T) {
	res, err := Runner[int]{}.Run(context.Background(), func() (int, error) {
		time.Sleep(30 * time.Millisecond)
		return 9, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Value)
	assert.False(t, res.TimedOut)
}

func TestRunner_ReusableConcurrently(t *testing.T) {
	r := Runner[int]{Timeout: time.Second, Name: "test_reuse"}

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			res, err := r.Run(context.Background(), func() (int, error) { return i * i, nil })
			if err == nil && res.Value != i*i {
				err = errors.New("result crossed invocations")
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
}
