package fsops

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mirrordapp/mirrord-server/internal/id"
	"github.com/mirrordapp/mirrord-server/internal/logger"
)

// Ops performs the engine's filesystem mutations with a shared retry
// policy and logger.
type Ops struct {
	log    *logger.Logger
	policy RetryPolicy
}

// New creates an Ops with the given logger and retry policy.
func New(log *logger.Logger, policy RetryPolicy) *Ops {
	return &Ops{log: log, policy: policy.normalized()}
}

// AtomicCopy copies source onto target so that any observer of target
// sees either the previous complete content or the new complete content,
// never a partial write. The content is first written to a uniquely
// named temporary sibling of target, then renamed into place. Rename
// within one directory is atomic on POSIX filesystems.
func (o *Ops) AtomicCopy(ctx context.Context, source, target string) error {
	temp := tempSibling(target)

	if err := WithRetry(ctx, o.policy, "copy to temp file", func() error {
		return copyFile(source, temp)
	}); err != nil {
		o.cleanupTemp(temp)
		return err
	}

	// Remove any previous generation first. Some filesystems refuse to
	// rename over a file that another process holds open.
	if err := WithRetry(ctx, o.policy, "remove existing target", func() error {
		err := os.Remove(target)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}); err != nil {
		o.cleanupTemp(temp)
		return err
	}

	if err := WithRetry(ctx, o.policy, "rename temp file", func() error {
		return os.Rename(temp, target)
	}); err != nil {
		o.cleanupTemp(temp)
		return err
	}

	return nil
}

// Remove deletes path, treating "already absent" as success.
func (o *Ops) Remove(ctx context.Context, path string) error {
	return WithRetry(ctx, o.policy, "remove file", func() error {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// EnsureDir creates dir and any missing parents.
func (o *Ops) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// cleanupTemp removes a leftover temporary file. Failure to remove it is
// logged, not propagated.
func (o *Ops) cleanupTemp(temp string) {
	if err := os.Remove(temp); err != nil && !os.IsNotExist(err) {
		o.log.Warn("failed to remove temporary file", "path", temp, "error", err)
	}
}

// tempSibling returns a collision-resistant temporary path in the same
// directory as target, so the final rename never crosses a filesystem
// boundary.
func tempSibling(target string) string {
	name := fmt.Sprintf(".%s.%d.%s.tmp", filepath.Base(target), os.Getpid(), id.Suffix())
	return filepath.Join(filepath.Dir(target), name)
}

// copyFile copies src to dst, preserving the source's mode and
// modification time. Preserving mtime keeps a freshly mirrored file from
// looking older than its source on the next comparison.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file: %w", src, fs.ErrInvalid)
	}

	in, err := os.Open(src) //#nosec G304 -- paths come from the watched tree
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) //#nosec G304
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	// Mirror the source timestamp so an unchanged file compares equal.
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return nil
}
