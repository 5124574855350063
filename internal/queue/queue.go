// Package queue serializes sync operations so that at most one touches
// the filesystem at a time, in arrival order.
package queue

import (
	"context"
	"sync"
)

// Kind classifies a filesystem change.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
	KindRemoved  Kind = "removed"
)

// Operation is one pending unit of sync work. Produced by the watcher or
// the initial scanner, consumed exactly once by the queue worker.
type Operation struct {
	Path string
	Kind Kind
}

// Handler executes one operation. Failures are the handler's concern;
// the queue moves on to the next operation regardless.
type Handler func(ctx context.Context, op Operation)

// Queue is a FIFO of operations with single-flight execution. Multiple
// producers may enqueue concurrently; a single Run worker drains.
type Queue struct {
	mu      sync.Mutex
	pending []Operation
	closed  bool

	wake chan struct{}
}

// New creates an empty, accepting queue.
func New() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Enqueue appends op to the tail and wakes the worker. Returns false if
// the queue has been closed.
func (q *Queue) Enqueue(op Operation) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, op)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of operations not yet started.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the queue from accepting new operations and discards any
// that are still pending. An operation already handed to the worker is
// unaffected.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
}

// Run drains the queue until ctx is cancelled, executing one operation
// at a time in FIFO order. The operation in flight when cancellation
// arrives runs to completion; a copy interrupted mid-write would leave a
// stray temporary file behind.
func (q *Queue) Run(ctx context.Context, handle Handler) {
	for {
		op, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		handle(context.WithoutCancel(ctx), op)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (q *Queue) pop() (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Operation{}, false
	}
	op := q.pending[0]
	q.pending = q.pending[1:]
	return op, true
}
