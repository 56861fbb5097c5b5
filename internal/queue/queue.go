// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue provides a fixed-capacity blocking FIFO used as the
// rendezvous point between the HTSP reader goroutine and the goroutines
// waiting for replies or events.
package queue

import (
	"context"
	"sync"
)

// Bounded is a concurrency-safe FIFO with a fixed capacity.
//
// Enqueue blocks while the queue is full and Dequeue blocks while it is
// empty. With capacity 1 it behaves as a single-slot mailbox. The zero value
// is not usable; construct with New.
type Bounded[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	// ring buffer
	buf  []T
	head int
	n    int
}

// New creates a queue holding at most capacity items.
// It panics if capacity is less than 1.
func New[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		panic("queue: capacity must be positive")
	}
	q := &Bounded[T]{buf: make([]T, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends v at the tail, blocking until there is room.
func (q *Bounded[T]) Enqueue(v T) {
	q.mu.Lock()
	for q.n == len(q.buf) {
		q.notFull.Wait()
	}
	q.push(v)
	q.mu.Unlock()
}

// Dequeue removes and returns the head, blocking until an item exists.
func (q *Bounded[T]) Dequeue() T {
	q.mu.Lock()
	for q.n == 0 {
		q.notEmpty.Wait()
	}
	v := q.pop()
	q.mu.Unlock()
	return v
}

// TryEnqueue appends v if there is room and reports whether it did.
func (q *Bounded[T]) TryEnqueue(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.buf) {
		return false
	}
	q.push(v)
	return true
}

// TryDequeue removes the head if one exists. ok is false when empty.
func (q *Bounded[T]) TryDequeue() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return v, false
	}
	return q.pop(), true
}

// EnqueueContext is Enqueue that gives up once ctx is done.
// A free slot wins over a done context.
func (q *Bounded[T]) EnqueueContext(ctx context.Context, v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n < len(q.buf) {
		q.push(v)
		return nil
	}
	stop := context.AfterFunc(ctx, q.wake(q.notFull))
	defer stop()
	for q.n == len(q.buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	q.push(v)
	return nil
}

// DequeueContext is Dequeue that gives up once ctx is done.
// A queued item wins over a done context.
func (q *Bounded[T]) DequeueContext(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n > 0 {
		return q.pop(), nil
	}
	stop := context.AfterFunc(ctx, q.wake(q.notEmpty))
	defer stop()
	for q.n == 0 {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.notEmpty.Wait()
	}
	return q.pop(), nil
}

// Len returns the number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap returns the fixed capacity.
func (q *Bounded[T]) Cap() int {
	return len(q.buf)
}

// wake broadcasts c under the queue lock so a waiter cannot miss it between
// its ctx check and Wait.
func (q *Bounded[T]) wake(c *sync.Cond) func() {
	return func() {
		q.mu.Lock()
		c.Broadcast()
		q.mu.Unlock()
	}
}

// push and pop require q.mu.
func (q *Bounded[T]) push(v T) {
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
	q.notEmpty.Signal()
}

func (q *Bounded[T]) pop() T {
	var zero T
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	q.notFull.Signal()
	return v
}
