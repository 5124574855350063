package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/mirrordapp/mirrord-server/internal/errors"
	"github.com/mirrordapp/mirrord-server/internal/logger"
	"github.com/mirrordapp/mirrord-server/internal/queue"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		SourceDir:  t.TempDir(),
		TargetDir:  t.TempDir(),
		Extensions: []string{".gd", ".tscn"},
	}
}

func writeSource(t *testing.T, cfg Config, rel, content string) string {
	t.Helper()
	path := filepath.Join(cfg.SourceDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestRun(t *testing.T, cfg Config) *run {
	t.Helper()
	require.NoError(t, cfg.validate())
	return newRun(logger.Discard(), nil, cfg)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, cfg.validate())
		assert.True(t, filepath.IsAbs(cfg.SourceDir))
		assert.Equal(t, []string{".gd", ".tscn"}, cfg.Extensions)
	})

	t.Run("missing source dir", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SourceDir = ""
		assert.Error(t, cfg.validate())
	})

	t.Run("nonexistent source dir", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SourceDir = filepath.Join(cfg.SourceDir, "absent")
		err := cfg.validate()
		require.Error(t, err)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
	})

	t.Run("source is a file", func(t *testing.T) {
		cfg := testConfig(t)
		file := filepath.Join(cfg.TargetDir, "f.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		cfg.SourceDir = file
		assert.Error(t, cfg.validate())
	})

	t.Run("equal roots rejected", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.TargetDir = cfg.SourceDir
		assert.Error(t, cfg.validate())
	})

	t.Run("nested roots rejected", func(t *testing.T) {
		cfg := testConfig(t)
		child := filepath.Join(cfg.SourceDir, "mirror")
		require.NoError(t, os.Mkdir(child, 0o755))
		cfg.TargetDir = child
		assert.Error(t, cfg.validate())

		cfg2 := testConfig(t)
		child2 := filepath.Join(cfg2.TargetDir, "src")
		require.NoError(t, os.Mkdir(child2, 0o755))
		cfg2.SourceDir = child2
		assert.Error(t, cfg2.validate())
	})

	t.Run("empty extensions rejected", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Extensions = nil
		assert.Error(t, cfg.validate())

		cfg.Extensions = []string{"  ", ""}
		assert.Error(t, cfg.validate())
	})

	t.Run("extensions normalized", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Extensions = []string{"GD", " .Tscn "}
		require.NoError(t, cfg.validate())
		assert.Equal(t, []string{".gd", ".tscn"}, cfg.Extensions)
	})
}

func TestApplyCopy(t *testing.T) {
	t.Run("copies eligible file", func(t *testing.T) {
		cfg := testConfig(t)
		source := writeSource(t, cfg, "player.gd", "extends Node\n")
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindCreated})

		content, err := os.ReadFile(filepath.Join(cfg.TargetDir, "player.gd"))
		require.NoError(t, err)
		assert.Equal(t, "extends Node\n", string(content))
		assert.Equal(t, int64(1), r.counters.Snapshot().Copied)
	})

	t.Run("creates parent directories", func(t *testing.T) {
		cfg := testConfig(t)
		source := writeSource(t, cfg, filepath.Join("scenes", "ui", "menu.tscn"), "[node]")
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindCreated})

		assert.FileExists(t, filepath.Join(cfg.TargetDir, "scenes", "ui", "menu.tscn"))
	})

	t.Run("ignores unlisted extension", func(t *testing.T) {
		cfg := testConfig(t)
		source := writeSource(t, cfg, "ignore.txt", "nope")
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindCreated})

		assert.NoFileExists(t, filepath.Join(cfg.TargetDir, "ignore.txt"))
		assert.Equal(t, CounterSnapshot{}, r.counters.Snapshot())
	})

	t.Run("skips newer destination", func(t *testing.T) {
		cfg := testConfig(t)
		source := writeSource(t, cfg, "player.gd", "old generation")
		past := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(source, past, past))

		target := filepath.Join(cfg.TargetDir, "player.gd")
		require.NoError(t, os.WriteFile(target, []byte("newer content"), 0o644))

		r := newTestRun(t, cfg)
		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindModified})

		content, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "newer content", string(content), "target must never regress")
		assert.Equal(t, int64(1), r.counters.Snapshot().Skipped)
	})

	t.Run("equal timestamps count as in sync", func(t *testing.T) {
		cfg := testConfig(t)
		source := writeSource(t, cfg, "player.gd", "content")
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindCreated})
		// The copy preserves the source mtime, so a second pass skips.
		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindModified})

		snapshot := r.counters.Snapshot()
		assert.Equal(t, int64(1), snapshot.Copied)
		assert.Equal(t, int64(1), snapshot.Skipped)
	})

	t.Run("tolerates vanished source", func(t *testing.T) {
		cfg := testConfig(t)
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{
			Path: filepath.Join(cfg.SourceDir, "gone.gd"),
			Kind: queue.KindCreated,
		})

		assert.Equal(t, CounterSnapshot{}, r.counters.Snapshot())
	})

	t.Run("blocks path escaping the target root", func(t *testing.T) {
		cfg := testConfig(t)
		r := newTestRun(t, cfg)

		outside := filepath.Join(cfg.SourceDir, "..", "evil.gd")
		r.apply(context.Background(), queue.Operation{Path: outside, Kind: queue.KindCreated})

		assert.Equal(t, int64(1), r.counters.Snapshot().Blocked)
		assert.NoFileExists(t, filepath.Join(filepath.Dir(cfg.TargetDir), "evil.gd"))

		entries, err := os.ReadDir(cfg.TargetDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "nothing may be written on a security block")
	})
}

func TestApplyRemove(t *testing.T) {
	t.Run("deletion disabled keeps target", func(t *testing.T) {
		cfg := testConfig(t)
		source := writeSource(t, cfg, "player.gd", "x")
		target := filepath.Join(cfg.TargetDir, "player.gd")
		require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

		r := newTestRun(t, cfg)
		require.NoError(t, os.Remove(source))
		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindRemoved})

		assert.FileExists(t, target)
		assert.Equal(t, int64(1), r.counters.Snapshot().Skipped)
	})

	t.Run("deletion enabled removes target", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.AllowDeletion = true
		source := writeSource(t, cfg, "player.gd", "x")
		target := filepath.Join(cfg.TargetDir, "player.gd")
		require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

		r := newTestRun(t, cfg)
		require.NoError(t, os.Remove(source))
		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindRemoved})

		assert.NoFileExists(t, target)
		assert.Equal(t, int64(1), r.counters.Snapshot().Deleted)
	})

	t.Run("tolerates already absent target", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.AllowDeletion = true
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{
			Path: filepath.Join(cfg.SourceDir, "never.gd"),
			Kind: queue.KindRemoved,
		})

		snapshot := r.counters.Snapshot()
		assert.Equal(t, int64(1), snapshot.Deleted)
		assert.Equal(t, int64(0), snapshot.Errors)
	})

	t.Run("ignores unlisted extension", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.AllowDeletion = true
		target := filepath.Join(cfg.TargetDir, "keep.txt")
		require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

		r := newTestRun(t, cfg)
		r.apply(context.Background(), queue.Operation{
			Path: filepath.Join(cfg.SourceDir, "keep.txt"),
			Kind: queue.KindRemoved,
		})

		assert.FileExists(t, target)
	})
}

func TestEngine_StartValidation(t *testing.T) {
	e := New(logger.Discard(), nil)

	t.Run("invalid config rejected", func(t *testing.T) {
		assert.False(t, e.Start(Config{}))
		assert.False(t, e.IsRunning())
	})

	t.Run("overlapping roots rejected", func(t *testing.T) {
		dir := t.TempDir()
		assert.False(t, e.Start(Config{
			SourceDir:  dir,
			TargetDir:  dir,
			Extensions: []string{".gd"},
		}))
		assert.False(t, e.IsRunning())
		assert.Equal(t, StateStopped, e.State())
	})
}

func TestEngine_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	preexisting := writeSource(t, cfg, "existing.gd", "seeded by scan")

	e := New(logger.Discard(), nil)
	require.True(t, e.Start(cfg))
	assert.True(t, e.IsRunning())

	// Second start while running is rejected.
	assert.False(t, e.Start(cfg))

	// The initial scan mirrors the pre-existing file.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.TargetDir, "existing.gd"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond, "initial scan did not mirror %s", preexisting)

	// A live change is mirrored too.
	writeSource(t, cfg, "live.gd", "written while running")
	require.Eventually(t, func() bool {
		content, err := os.ReadFile(filepath.Join(cfg.TargetDir, "live.gd"))
		return err == nil && string(content) == "written while running"
	}, 10*time.Second, 20*time.Millisecond)

	e.Stop()
	assert.False(t, e.IsRunning())
	assert.Equal(t, StateStopped, e.State())

	// Stop is idempotent.
	e.Stop()

	// The engine can be restarted.
	require.True(t, e.Start(cfg))
	e.Stop()
}

func TestEngine_HiddenFilePolicy(t *testing.T) {
	t.Run("hidden excluded by default", func(t *testing.T) {
		cfg := testConfig(t)
		source := writeSource(t, cfg, filepath.Join(".secret", "tool.gd"), "x")
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindCreated})
		assert.NoFileExists(t, filepath.Join(cfg.TargetDir, ".secret", "tool.gd"))
	})

	t.Run("hidden included when enabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.IncludeHidden = true
		source := writeSource(t, cfg, filepath.Join(".secret", "tool.gd"), "x")
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindCreated})
		assert.FileExists(t, filepath.Join(cfg.TargetDir, ".secret", "tool.gd"))
	})

	t.Run("reserved directories always excluded", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.IncludeHidden = true
		source := writeSource(t, cfg, filepath.Join(".godot", "gen.gd"), "x")
		r := newTestRun(t, cfg)

		r.apply(context.Background(), queue.Operation{Path: source, Kind: queue.KindCreated})
		assert.NoFileExists(t, filepath.Join(cfg.TargetDir, ".godot", "gen.gd"))
	})
}

func TestReconcileOnce(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "a.gd", "alpha")
	writeSource(t, cfg, filepath.Join("scenes", "b.tscn"), "beta")
	writeSource(t, cfg, "notes.txt", "ignored")

	snapshot, err := ReconcileOnce(context.Background(), logger.Discard(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snapshot.Copied)

	assert.FileExists(t, filepath.Join(cfg.TargetDir, "a.gd"))
	assert.FileExists(t, filepath.Join(cfg.TargetDir, "scenes", "b.tscn"))
	assert.NoFileExists(t, filepath.Join(cfg.TargetDir, "notes.txt"))

	// Second run is a no-op: everything already in sync.
	snapshot, err = ReconcileOnce(context.Background(), logger.Discard(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snapshot.Copied)
	assert.Equal(t, int64(2), snapshot.Skipped)
}

func TestReconcileOnce_InvalidConfig(t *testing.T) {
	_, err := ReconcileOnce(context.Background(), logger.Discard(), Config{})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestCountEligible(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "a.gd", "alpha")
	writeSource(t, cfg, filepath.Join("scenes", "b.tscn"), "beta")
	writeSource(t, cfg, "notes.txt", "ignored")
	writeSource(t, cfg, filepath.Join(".godot", "gen.gd"), "cache")

	eligible, err := CountEligible(context.Background(), logger.Discard(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, eligible)

	// Counting must not create anything in the target.
	entries, err := os.ReadDir(cfg.TargetDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCountEligible_InvalidConfig(t *testing.T) {
	_, err := CountEligible(context.Background(), logger.Discard(), Config{})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}
