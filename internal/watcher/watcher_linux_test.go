//go:build linux

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinuxBackend_DetectsCloseWrite(t *testing.T) {
	root := t.TempDir()

	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})

	path := filepath.Join(root, "player.gd")
	require.NoError(t, os.WriteFile(path, []byte("extends Node\n"), 0o644))

	ev := waitForEvent(t, w.Events(), func(ev Event) bool {
		return ev.Path == path && ev.Type != EventRemoved
	})
	assert.Equal(t, EventModified, ev.Type)
}

func TestLinuxBackend_DetectsRemoval(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "player.gd")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})

	require.NoError(t, os.Remove(path))

	ev := waitForEvent(t, w.Events(), func(ev Event) bool {
		return ev.Path == path
	})
	assert.Equal(t, EventRemoved, ev.Type)
}

func TestLinuxBackend_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()

	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})

	sub := filepath.Join(root, "scenes")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give inotify a moment to register the new directory watch.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "main.tscn")
	require.NoError(t, os.WriteFile(path, []byte("[node]"), 0o644))

	ev := waitForEvent(t, w.Events(), func(ev Event) bool {
		return ev.Path == path && ev.Type != EventRemoved
	})
	assert.Equal(t, EventModified, ev.Type)
}
