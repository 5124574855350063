package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pollBackend implements Backend by periodically walking the watched
// trees and diffing against the previous snapshot. Slow but dependable
// on filesystems where native notifications are unreliable.
type pollBackend struct {
	logger *slog.Logger
	opts   Options

	mu    sync.Mutex
	roots []string
	known map[string]fileMeta

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

type fileMeta struct {
	size    int64
	modTime time.Time
	inode   uint64
}

// newPollBackend creates a polling backend.
func newPollBackend(logger *slog.Logger, opts Options) (*pollBackend, error) {
	return &pollBackend{
		logger: logger,
		opts:   opts,
		known:  make(map[string]fileMeta),
		events: make(chan Event, 100),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
	}, nil
}

// Watch adds a root to the polling set.
func (b *pollBackend) Watch(path string) error {
	path = filepath.Clean(path)

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.roots = append(b.roots, path)
	return nil
}

// Start begins polling. Blocks until the context is cancelled.
func (b *pollBackend) Start(ctx context.Context) error {
	// Prime the snapshot so pre-existing files are not reported as new.
	// Like the native backends, polling only reports changes occurring
	// after subscription.
	b.mu.Lock()
	b.known = b.scan()
	b.mu.Unlock()

	b.wg.Add(1)
	go b.pollLoop(ctx)

	<-ctx.Done()
	return nil
}

// pollLoop rescans the roots at the configured interval.
func (b *pollBackend) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.diff()
		}
	}
}

// diff takes a fresh snapshot and emits events for every difference.
func (b *pollBackend) diff() {
	b.mu.Lock()
	previous := b.known
	current := b.scan()
	b.known = current
	b.mu.Unlock()

	for path, meta := range current {
		old, existed := previous[path]
		switch {
		case !existed:
			b.emitEvent(Event{
				Type:    EventAdded,
				Path:    path,
				Inode:   meta.inode,
				Size:    meta.size,
				ModTime: meta.modTime,
			})
		case old.size != meta.size || !old.modTime.Equal(meta.modTime):
			b.emitEvent(Event{
				Type:    EventModified,
				Path:    path,
				Inode:   meta.inode,
				Size:    meta.size,
				ModTime: meta.modTime,
			})
		}
	}

	for path := range previous {
		if _, exists := current[path]; !exists {
			b.emitEvent(Event{
				Type: EventRemoved,
				Path: path,
			})
		}
	}
}

// scan walks all roots and returns the current file metadata. Must be
// called with b.mu held or before the poll loop starts.
func (b *pollBackend) scan() map[string]fileMeta {
	snapshot := make(map[string]fileMeta, len(b.known))

	for _, root := range b.roots {
		err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				// The tree can change under the walk.
				return nil
			}

			if b.opts.shouldIgnore(p) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() {
				return nil
			}

			snapshot[p] = fileMeta{
				size:    info.Size(),
				modTime: info.ModTime(),
				inode:   getInode(info.Sys()),
			}
			return nil
		})
		if err != nil {
			b.logger.Warn("poll scan failed", "root", root, "error", err)
		}
	}

	return snapshot
}

// emitEvent sends an event to the events channel.
func (b *pollBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *pollBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *pollBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the poll loop.
func (b *pollBackend) Stop() error {
	close(b.done)
	b.wg.Wait()
	close(b.events)
	close(b.errors)
	return nil
}
