// Package scanner performs the initial full walk of the source tree,
// discovering every file eligible for mirroring. The watcher only
// reports changes occurring after subscription, so the scan is what
// reconciles the target with the source's state at startup.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mirrordapp/mirrord-server/internal/policy"
)

// Scanner walks a source tree and streams eligible files.
type Scanner struct {
	logger *slog.Logger
	policy *policy.Policy
}

// New creates a scanner bound to one sync run's policy.
func New(logger *slog.Logger, p *policy.Policy) *Scanner {
	return &Scanner{
		logger: logger,
		policy: p,
	}
}

// Result represents an eligible file discovered during scanning.
type Result struct {
	Path    string
	RelPath string
	Size    int64
	ModTime time.Time
}

// Scan traverses the source root and streams every eligible file.
// Returns a channel that will receive results.
// Channel closes when the walk is complete or the context is canceled.
func (s *Scanner) Scan(ctx context.Context) <-chan Result {
	results := make(chan Result, 100)
	root := s.policy.SourceRoot()

	go func() {
		defer close(results)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			// Check context cancellation.
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			// Handle walk errors.
			if err != nil {
				s.logger.Error("scan error", "path", path, "error", err)
				// Continue walking despite errors.
				return nil
			}

			// Prune ignored subtrees; skip ignored files.
			if s.policy.ShouldIgnore(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Only files are mirrored; directories appear on the
			// target as a side effect of copying their contents.
			if d.IsDir() {
				return nil
			}

			if !s.policy.ExtensionEligible(path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				s.logger.Error("failed to get file info", "path", path, "error", err)
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			relPath, err := filepath.Rel(root, path)
			if err != nil {
				s.logger.Error("failed to compute relative path", "path", path, "error", err)
				relPath = path
			}

			result := Result{
				Path:    path,
				RelPath: relPath,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			}

			select {
			case results <- result:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scan failed", "root", root, "error", err)
		}
	}()

	return results
}

// Count walks the source root and returns how many eligible files it
// holds, without streaming them. Used for reporting.
func (s *Scanner) Count(ctx context.Context) (int, error) {
	count := 0
	for range s.Scan(ctx) {
		count++
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return count, err
	}
	return count, nil
}
