// Package engine orchestrates one-way continuous synchronization: it
// owns the lifecycle of a sync run, wiring the watcher and the initial
// scanner into the serialized operation queue.
package engine

import (
	"context"
	"sync"

	"github.com/mirrordapp/mirrord-server/internal/logger"
	"github.com/mirrordapp/mirrord-server/internal/queue"
	"github.com/mirrordapp/mirrord-server/internal/scanner"
	"github.com/mirrordapp/mirrord-server/internal/sse"
	"github.com/mirrordapp/mirrord-server/internal/watcher"
)

// Engine is a restartable sync engine. Multiple independent engines can
// coexist; there is no shared state between instances.
type Engine struct {
	log    *logger.Logger
	events *sse.Manager

	mu      sync.Mutex
	state   State
	current *run
	q       *queue.Queue
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status is a point-in-time view of the engine for the control API.
type Status struct {
	State         string          `json:"state"`
	SourceDir     string          `json:"source_dir,omitempty"`
	TargetDir     string          `json:"target_dir,omitempty"`
	Extensions    []string        `json:"extensions,omitempty"`
	AllowDeletion bool            `json:"allow_deletion"`
	QueueDepth    int             `json:"queue_depth"`
	Counters      CounterSnapshot `json:"counters"`
}

// New creates a stopped engine. The SSE manager may be nil; the engine
// then reports only through the log.
func New(log *logger.Logger, events *sse.Manager) *Engine {
	return &Engine{
		log:    log,
		events: events,
		state:  StateStopped,
	}
}

// Start begins a sync run with the given configuration. Returns false
// if the engine is not stopped or the configuration is invalid; true
// once a start attempt is underway. Watch subscription failures after
// that point are reported asynchronously and stop the engine.
func (e *Engine) Start(cfg Config) bool {
	if err := cfg.validate(); err != nil {
		e.log.Error("invalid sync configuration", "error", err)
		return false
	}

	e.mu.Lock()
	if e.state != StateStopped {
		state := e.state
		e.mu.Unlock()
		e.log.Warn("start rejected, engine is not stopped", "state", state.String())
		return false
	}

	r := newRun(e.log, e.events, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.state = StateStarting
	e.current = r
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	e.log.Info("sync engine starting",
		"source", cfg.SourceDir,
		"target", cfg.TargetDir,
		"extensions", cfg.Extensions,
		"allow_deletion", cfg.AllowDeletion,
		"use_polling", cfg.UsePolling)

	go e.runLoop(ctx, r, done)
	return true
}

// Stop ends the current run. Pending queue entries are discarded; the
// operation in flight finishes first. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateStarting && e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	e.log.Info("sync engine stopping")
	cancel()
	<-done

	e.mu.Lock()
	e.state = StateStopped
	r := e.current
	e.current = nil
	e.q = nil
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	e.log.Info("sync engine stopped")
	if r != nil {
		r.emit(sse.NewEngineStoppedEvent())
	}
}

// IsRunning reports whether a sync run is active (starting counts).
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateStarting || e.state == StateRunning
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns a snapshot of the engine for the control API.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := Status{State: e.state.String()}
	if e.current != nil {
		status.SourceDir = e.current.cfg.SourceDir
		status.TargetDir = e.current.cfg.TargetDir
		status.Extensions = e.current.cfg.Extensions
		status.AllowDeletion = e.current.cfg.AllowDeletion
		status.Counters = e.current.counters.Snapshot()
	}
	if e.q != nil {
		status.QueueDepth = e.q.Len()
	}
	return status
}

// Shutdown stops the engine. Implements the container's shutdown hook.
func (e *Engine) Shutdown() error {
	e.Stop()
	return nil
}

// runLoop is the body of one sync run. It sets up the watcher, confirms
// the subscription, then drives the queue worker, the event pump and
// the initial scan until the run context is cancelled.
func (e *Engine) runLoop(ctx context.Context, r *run, done chan struct{}) {
	defer close(done)

	w, err := watcher.New(e.log.Logger, watcher.Options{
		Ignore:     r.pol.ShouldIgnore,
		UsePolling: r.cfg.UsePolling,
	})
	if err != nil {
		e.fatal(r, err)
		return
	}

	if err := w.Watch(r.cfg.SourceDir); err != nil {
		_ = w.Stop()
		e.fatal(r, err)
		return
	}

	q := queue.New()

	e.mu.Lock()
	if e.state != StateStarting {
		// Stopped before the watch was confirmed.
		e.mu.Unlock()
		_ = w.Stop()
		return
	}
	e.state = StateRunning
	e.q = q
	e.mu.Unlock()

	e.log.Info("sync engine running")
	r.emit(sse.NewEngineStartedEvent(r.cfg.SourceDir, r.cfg.TargetDir))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = w.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Run(ctx, r.apply)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.pumpEvents(ctx, r, w, q)
	}()

	// The scan runs only after the watch is live, so changes during
	// the scan are not lost; the queue serializes both sources.
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.initialScan(ctx, r, q)
	}()

	<-ctx.Done()
	q.Close()
	_ = w.Stop()
	wg.Wait()
}

// pumpEvents forwards watcher events into the queue and escalates
// watcher errors. A failing watch subsystem stops the whole engine;
// continuing would silently stop mirroring.
func (e *Engine) pumpEvents(ctx context.Context, r *run, w *watcher.Watcher, q *queue.Queue) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			q.Enqueue(queue.Operation{
				Path: ev.Path,
				Kind: kindOf(ev.Type),
			})

		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			e.fatal(r, err)
			return
		}
	}
}

// initialScan seeds the queue with a created operation per eligible
// file. The copy path's timestamp comparison makes already up-to-date
// targets a cheap no-op.
func (e *Engine) initialScan(ctx context.Context, r *run, q *queue.Queue) {
	s := scanner.New(e.log.Logger, r.pol)

	e.log.Info("initial scan started", "source", r.cfg.SourceDir)
	r.emit(sse.NewScanStartedEvent(r.cfg.SourceDir))

	enqueued := 0
	for result := range s.Scan(ctx) {
		if q.Enqueue(queue.Operation{Path: result.Path, Kind: queue.KindCreated}) {
			enqueued++
		}
	}

	if ctx.Err() != nil {
		return
	}

	e.log.Info("initial scan complete", "source", r.cfg.SourceDir, "enqueued", enqueued)
	r.emit(sse.NewScanCompleteEvent(r.cfg.SourceDir, enqueued))
}

// fatal reports an unrecoverable watch failure and stops the engine.
func (e *Engine) fatal(r *run, err error) {
	e.log.Error("fatal watch error, stopping engine", "error", err)
	r.emit(sse.NewEngineErrorEvent(err.Error()))
	go e.Stop()
}

// kindOf maps a watcher event type onto a queue operation kind.
func kindOf(t watcher.EventType) queue.Kind {
	switch t {
	case watcher.EventRemoved:
		return queue.KindRemoved
	case watcher.EventAdded:
		return queue.KindCreated
	default:
		return queue.KindModified
	}
}
