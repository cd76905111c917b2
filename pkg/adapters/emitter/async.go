// Package emitter delivers engine side effects outside of the request path.
package emitter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/concierge/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// ErrClosed is returned by Start on an emitter that was already closed.
var ErrClosed = errors.New("emitter closed")

// Dispatcher delivers a single side effect. *registry.Registry satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind string, payload map[string]any) error
}

type job struct {
	ctx     context.Context
	kind    string
	payload map[string]any
}

// Async is a ports.Emitter backed by a bounded queue and a worker pool.
// Emit never blocks: when the queue is full the side effect is dropped and logged.
type Async struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	workers    int

	queue   chan job
	mu      sync.RWMutex
	closed  bool
	started bool
	group   *errgroup.Group

	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// Option configures an Async emitter.
type Option func(*Async)

// WithWorkers sets the number of delivery goroutines.
func WithWorkers(n int) Option {
	return func(a *Async) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) Option {
	return func(a *Async) {
		if n > 0 {
			a.queue = make(chan job, n)
		}
	}
}

// WithLogger sets the emitter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Async) {
		a.logger = logger
	}
}

// NewAsync creates an emitter that hands side effects to dispatcher.
// Call Start before emitting and Close on shutdown.
func NewAsync(dispatcher Dispatcher, opts ...Option) *Async {
	a := &Async{
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
		workers:    DefaultWorkers,
		queue:      make(chan job, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the workers. They run until Close drains the queue.
func (a *Async) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.started {
		return nil
	}
	a.started = true

	a.group = &errgroup.Group{}
	for i := 0; i < a.workers; i++ {
		a.group.Go(a.work)
	}
	return nil
}

func (a *Async) work() error {
	for j := range a.queue {
		if err := a.dispatcher.Dispatch(j.ctx, j.kind, j.payload); err != nil {
			a.failed.Add(1)
			a.logger.Warn("side effect delivery failed", "kind", j.kind, "err", err)
			continue
		}
		a.delivered.Add(1)
	}
	return nil
}

// Emit enqueues a side effect. The caller's cancellation does not reach delivery.
func (a *Async) Emit(ctx context.Context, kind string, payload map[string]any) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		a.logger.Warn("side effect dropped after close", "kind", kind)
		return
	}

	select {
	case a.queue <- job{ctx: context.WithoutCancel(ctx), kind: kind, payload: payload}:
	default:
		a.dropped.Add(1)
		a.logger.Warn("side effect queue full, dropping", "kind", kind, "capacity", cap(a.queue))
	}
}

// Close stops accepting side effects and waits for queued ones to be delivered.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	group := a.group
	a.mu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

// Stats reports delivery counters.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Queued    int   `json:"queued"`
}

// Stats returns a snapshot of the delivery counters.
func (a *Async) Stats() Stats {
	return Stats{
		Delivered: a.delivered.Load(),
		Failed:    a.failed.Load(),
		Dropped:   a.dropped.Load(),
		Queued:    len(a.queue),
	}
}
