// Package progress forwards progress messages produced on engine goroutines to
// an asynchronous consumer such as a websocket connection.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"vidflow/internal/observability"
)

// Sink delivers one message to the consumer.
type Sink[T any] func(ctx context.Context, msg T) error

// Relay is a bounded FIFO between a synchronous producer and a Sink. Push never
// blocks: when the buffer is full the oldest message is dropped. After the sink
// fails once, remaining messages are drained and discarded.
type Relay[T any] struct {
	log     *slog.Logger
	metrics *observability.Metrics
	name    string
	sink    Sink[T]

	mu     sync.Mutex
	ch     chan T
	closed bool

	done    chan struct{}
	failed  atomic.Bool
	dropped atomic.Int64
}

// New creates a relay with room for size messages and starts forwarding to
// sink until Close is called and the buffer is drained.
func New[T any](ctx context.Context, log *slog.Logger, metrics *observability.Metrics, name string, size int,
	sink Sink[T],
) *Relay[T] {
	if size < 1 {
		size = 1
	}

	r := &Relay[T]{
		log:     log.With(slog.String("package", "progress"), slog.String("relay", name)),
		metrics: metrics,
		name:    name,
		sink:    sink,
		ch:      make(chan T, size),
		done:    make(chan struct{}),
	}

	go r.run(ctx)

	return r
}

// Push enqueues msg without blocking. It reports false when the relay is closed.
func (r *Relay[T]) Push(msg T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	for {
		select {
		case r.ch <- msg:
			return true
		default:
		}

		select {
		case <-r.ch:
			r.dropped.Add(1)
			r.metrics.RecordRelayDropped(r.name)
		default:
		}
	}
}

// Close stops accepting messages. Buffered messages are still forwarded.
// It is safe to call more than once.
func (r *Relay[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.closed = true
	close(r.ch)
}

// Wait blocks until every message accepted before Close was handled or ctx is done.
func (r *Relay[T]) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failed reports whether the sink returned an error.
func (r *Relay[T]) Failed() bool {
	return r.failed.Load()
}

// Dropped returns the number of messages discarded because the buffer was full.
func (r *Relay[T]) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Relay[T]) run(ctx context.Context) {
	defer close(r.done)

	for msg := range r.ch {
		if r.failed.Load() {
			continue
		}

		if err := r.sink(ctx, msg); err != nil {
			r.failed.Store(true)
			r.metrics.RecordRelayDeliverFailure(r.name)
			r.log.WarnContext(ctx, "relay delivery stopped", slog.Any("error", err))
		}
	}
}
