// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// waitBlocked gives a goroutine time to park on the queue's condition.
const waitBlocked = 50 * time.Millisecond

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
	assert.Panics(t, func() { New[int](-3) })
	assert.Equal(t, 4, New[int](4).Cap())
}

func TestFIFO_SingleProducerSingleConsumer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const total = 1000
	q := New[int](3)

	go func() {
		for i := 0; i < total; i++ {
			q.Enqueue(i)
		}
	}()

	got := make([]int, 0, total)
	for i := 0; i < total; i++ {
		got = append(got, q.Dequeue())
	}

	for i, v := range got {
		require.Equal(t, i, v, "position %d out of order", i)
	}
	assert.Equal(t, 0, q.Len())
}

func TestMailbox_CapacityOne(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := New[string](1)
	q.Enqueue("R1")

	got := make(chan string, 1)
	go func() { got <- q.Dequeue() }()
	assert.Equal(t, "R1", <-got)

	second := make(chan string, 1)
	go func() { second <- q.Dequeue() }()

	select {
	case v := <-second:
		t.Fatalf("dequeue on empty mailbox returned %q", v)
	case <-time.After(waitBlocked):
	}

	q.Enqueue("R2")
	select {
	case v := <-second:
		assert.Equal(t, "R2", v)
	case <-time.After(time.Second):
		t.Fatal("blocked dequeue was not woken by enqueue")
	}
}

func TestEnqueue_BlocksWhenFullUntilDequeue(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := New[string](1)
	q.Enqueue("A")

	done := make(chan struct{})
	go func() {
		q.Enqueue("B")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("enqueue on full queue did not block")
	case <-time.After(waitBlocked):
	}

	assert.Equal(t, "A", q.Dequeue())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue did not complete after dequeue")
	}
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, "B", q.Dequeue())
}

func TestCapacityInvariant_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const (
		capacity  = 4
		producers = 4
		consumers = 4
		perWorker = 500
	)
	q := New[int](capacity)

	var violations atomic.Int64
	stopObserver := make(chan struct{})
	observerDone := make(chan struct{})
	go func() {
		defer close(observerDone)
		for {
			select {
			case <-stopObserver:
				return
			default:
			}
			if n := q.Len(); n < 0 || n > capacity {
				violations.Add(1)
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				q.Enqueue(base*perWorker + i)
			}
		}(p)
	}

	var mu sync.Mutex
	seen := make([]int, 0, producers*perWorker)
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := q.Dequeue()
				mu.Lock()
				seen = append(seen, v)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	close(stopObserver)
	<-observerDone

	assert.Zero(t, violations.Load())
	require.Len(t, seen, producers*perWorker)
	sort.Ints(seen)
	for i, v := range seen {
		require.Equal(t, i, v, "item lost or duplicated")
	}
}

func TestFIFO_PerProducerOrder(t *testing.T) {
	const perProducer = 300
	q := New[[2]int](2)

	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue([2]int{id, i})
			}
		}(p)
	}

	// A single consumer must see each producer's items in its own order.
	last := map[int]int{0: -1, 1: -1}
	for i := 0; i < 2*perProducer; i++ {
		v := q.Dequeue()
		require.Greater(t, v[1], last[v[0]])
		last[v[0]] = v[1]
	}
	wg.Wait()
}

func TestTryOperations(t *testing.T) {
	q := New[int](2)

	_, ok := q.TryDequeue()
	assert.False(t, ok)

	assert.True(t, q.TryEnqueue(1))
	assert.True(t, q.TryEnqueue(2))
	assert.False(t, q.TryEnqueue(3))
	assert.Equal(t, 2, q.Len())

	v, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// wrap around the ring
	assert.True(t, q.TryEnqueue(3))
	assert.Equal(t, 2, q.Dequeue())
	assert.Equal(t, 3, q.Dequeue())
}

func TestDequeueContext_CanceledWhileEmpty(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.DequeueContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// The queue stays usable after an abandoned wait.
	q.Enqueue(7)
	assert.Equal(t, 7, q.Dequeue())
}

func TestDequeueContext_ItemWinsOverDoneContext(t *testing.T) {
	q := New[int](1)
	q.Enqueue(5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := q.DequeueContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestDequeueContext_WokenByEnqueue(t *testing.T) {
	q := New[string](1)

	got := make(chan string, 1)
	go func() {
		v, err := q.DequeueContext(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(waitBlocked)
	q.Enqueue("X")
	select {
	case v := <-got:
		assert.Equal(t, "X", v)
	case <-time.After(time.Second):
		t.Fatal("DequeueContext was not woken")
	}
}

func TestEnqueueContext_CanceledWhileFull(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := New[int](1)
	q.Enqueue(1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- q.EnqueueContext(ctx, 2) }()

	time.Sleep(waitBlocked)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("EnqueueContext did not observe cancellation")
	}
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, q.Dequeue())
}

func TestCanceledWaiterDoesNotStealWakeup(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := New[int](1)

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := q.DequeueContext(ctx)
		canceled <- err
	}()

	plain := make(chan int, 1)
	go func() { plain <- q.Dequeue() }()

	time.Sleep(waitBlocked)
	cancel()
	assert.ErrorIs(t, <-canceled, context.Canceled)

	q.Enqueue(42)
	select {
	case v := <-plain:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("remaining waiter missed the enqueue")
	}
}
