package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	domainerrors "github.com/mirrordapp/mirrord-server/internal/errors"
	"github.com/mirrordapp/mirrord-server/internal/fsops"
	"github.com/mirrordapp/mirrord-server/internal/logger"
	"github.com/mirrordapp/mirrord-server/internal/policy"
	"github.com/mirrordapp/mirrord-server/internal/queue"
	"github.com/mirrordapp/mirrord-server/internal/sse"
)

// Counters tracks per-run operation outcomes.
type Counters struct {
	copied  atomic.Int64
	deleted atomic.Int64
	skipped atomic.Int64
	blocked atomic.Int64
	errors  atomic.Int64
}

// CounterSnapshot is a point-in-time copy of the run counters.
type CounterSnapshot struct {
	Copied  int64 `json:"copied"`
	Deleted int64 `json:"deleted"`
	Skipped int64 `json:"skipped"`
	Blocked int64 `json:"blocked"`
	Errors  int64 `json:"errors"`
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Copied:  c.copied.Load(),
		Deleted: c.deleted.Load(),
		Skipped: c.skipped.Load(),
		Blocked: c.blocked.Load(),
		Errors:  c.errors.Load(),
	}
}

// run holds everything one sync run needs to apply operations. Built at
// start, read-only while the queue worker drains.
type run struct {
	log      *logger.Logger
	events   *sse.Manager
	cfg      Config
	pol      *policy.Policy
	ops      *fsops.Ops
	counters *Counters
}

func newRun(log *logger.Logger, events *sse.Manager, cfg Config) *run {
	return &run{
		log:      log,
		events:   events,
		cfg:      cfg,
		pol:      cfg.newPolicy(),
		ops:      fsops.New(log, fsops.DefaultRetryPolicy()),
		counters: &Counters{},
	}
}

// emit publishes an SSE event when a manager is attached.
func (r *run) emit(event sse.Event) {
	if r.events != nil {
		r.events.Emit(event)
	}
}

// apply executes one operation to completion. All failures are handled
// here; the queue never sees them.
func (r *run) apply(ctx context.Context, op queue.Operation) {
	if op.Kind == queue.KindRemoved {
		r.applyRemove(ctx, op.Path)
		return
	}
	r.applyCopy(ctx, op.Path)
}

// applyCopy mirrors a created or modified source file onto the target.
func (r *run) applyCopy(ctx context.Context, path string) {
	if !r.pol.Eligible(path) {
		return
	}

	target, err := r.pol.ResolveTargetPath(path)
	if err != nil {
		r.securityBlock(path, err)
		return
	}

	if err := r.ops.EnsureDir(filepath.Dir(target)); err != nil {
		r.fileError(path, "failed to create target directory", err)
		return
	}

	sourceInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Raced with a fast delete. The removal event will follow.
			r.log.Debug("source vanished before copy", "path", path)
			return
		}
		r.fileError(path, "failed to stat source", err)
		return
	}

	// Never regress the target to an older state. A target with the
	// same timestamp is treated as already in sync.
	if targetInfo, err := os.Stat(target); err == nil {
		if !targetInfo.ModTime().Before(sourceInfo.ModTime()) {
			r.log.Info("skipped copy, destination is newer", "path", path, "target", target)
			r.counters.skipped.Add(1)
			r.emit(sse.NewFileSkippedEvent(path, "destination is newer"))
			return
		}
	}

	if err := r.ops.AtomicCopy(ctx, path, target); err != nil {
		r.fileError(path, "copy failed", err)
		return
	}

	r.log.Info("copied", "path", path, "target", target, "size", sourceInfo.Size())
	r.counters.copied.Add(1)
	r.emit(sse.NewFileCopiedEvent(path, target))
}

// applyRemove deletes the target counterpart of a removed source file.
func (r *run) applyRemove(ctx context.Context, path string) {
	// The source file is gone, so eligibility is judged on the path
	// alone.
	if !r.pol.Eligible(path) {
		return
	}

	if !r.cfg.AllowDeletion {
		r.log.Info("deletion skipped (disabled)", "path", path)
		r.counters.skipped.Add(1)
		r.emit(sse.NewFileSkippedEvent(path, "deletion disabled"))
		return
	}

	target, err := r.pol.ResolveTargetPath(path)
	if err != nil {
		r.securityBlock(path, err)
		return
	}

	// Remove tolerates an already absent target.
	if err := r.ops.Remove(ctx, target); err != nil {
		r.fileError(path, "delete failed", err)
		return
	}

	r.log.Info("deleted", "path", path, "target", target)
	r.counters.deleted.Add(1)
	r.emit(sse.NewFileDeletedEvent(path, target))
}

// securityBlock records a rejected target path. Hard stop for this
// operation: never retried, never clamped back inside the root.
func (r *run) securityBlock(path string, err error) {
	r.log.Error("security block: target path rejected", "path", path, "error", err)
	r.counters.blocked.Add(1)
	r.emit(sse.NewSecurityBlockedEvent(path, err.Error()))
}

// fileError records a per-file failure. It stays local to the log; the
// queue keeps draining.
func (r *run) fileError(path, msg string, err error) {
	if domainerrors.Is(err, domainerrors.ErrSecurity) {
		r.securityBlock(path, err)
		return
	}
	r.log.Error(msg, "path", path, "error", err)
	r.counters.errors.Add(1)
	r.emit(sse.NewFileErrorEvent(path, err.Error()))
}
