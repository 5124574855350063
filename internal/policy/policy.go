// Package policy decides which source files are eligible for mirroring
// and whether a computed target path is safe to write.
package policy

import (
	"os"
	"path/filepath"
	"strings"

	domainerrors "github.com/mirrordapp/mirrord-server/internal/errors"
)

// Reserved directory names used by the Godot editor for generated cache
// and import metadata. Never mirrored, regardless of the hidden-file
// setting.
const (
	reservedCacheDir  = ".godot"
	reservedImportDir = ".import"
)

// ImportArtifactSuffix is the extension of generated import metadata
// files. Mirroring files with this suffix is opt-in.
const ImportArtifactSuffix = ".import"

const hiddenPrefix = "."

// Policy holds the ignore and containment rules for a single sync run.
// Immutable after construction.
type Policy struct {
	sourceRoot          string
	targetRoot          string
	extensions          map[string]bool
	includeHidden       bool
	syncImportArtifacts bool
}

// New builds a Policy for the given roots. Extensions are normalized to
// lowercase with a leading dot.
func New(sourceRoot, targetRoot string, extensions []string, includeHidden, syncImportArtifacts bool) *Policy {
	exts := make(map[string]bool, len(extensions))
	for _, e := range NormalizeExtensions(extensions) {
		exts[e] = true
	}
	return &Policy{
		sourceRoot:          filepath.Clean(sourceRoot),
		targetRoot:          filepath.Clean(targetRoot),
		extensions:          exts,
		includeHidden:       includeHidden,
		syncImportArtifacts: syncImportArtifacts,
	}
}

// NormalizeExtensions lowercases each suffix and ensures a leading dot.
// Empty entries are dropped.
func NormalizeExtensions(extensions []string) []string {
	out := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// SourceRoot returns the configured source root.
func (p *Policy) SourceRoot() string { return p.sourceRoot }

// TargetRoot returns the configured target root.
func (p *Policy) TargetRoot() string { return p.targetRoot }

// ShouldIgnore reports whether path sits inside a reserved directory or,
// when hidden files are excluded, inside a hidden subtree. Used both to
// prune the watch subscription and to gate the initial scan.
func (p *Policy) ShouldIgnore(path string) bool {
	rel, err := filepath.Rel(p.sourceRoot, path)
	if err != nil || rel == "." {
		return false
	}

	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if segment == "" || segment == ".." {
			continue
		}
		if segment == reservedCacheDir || segment == reservedImportDir {
			return true
		}
		if !p.includeHidden && strings.HasPrefix(segment, hiddenPrefix) {
			return true
		}
	}
	return false
}

// ExtensionEligible reports whether the file's lowercase suffix is in the
// configured extension set. Import artifacts additionally require the
// opt-in flag.
func (p *Policy) ExtensionEligible(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" || !p.extensions[ext] {
		return false
	}
	if ext == ImportArtifactSuffix && !p.syncImportArtifacts {
		return false
	}
	return true
}

// Eligible reports whether a source path passes both the ignore and
// extension checks.
func (p *Policy) Eligible(path string) bool {
	return !p.ShouldIgnore(path) && p.ExtensionEligible(path)
}

// ResolveTargetPath maps a source path onto the target tree and verifies
// the result stays inside the target root after symlink resolution. A
// path that escapes the root is rejected with a security error, never
// clamped back inside.
func (p *Policy) ResolveTargetPath(sourcePath string) (string, error) {
	rel, err := filepath.Rel(p.sourceRoot, sourcePath)
	if err != nil {
		return "", domainerrors.Securityf("cannot relativize %s against source root: %v", sourcePath, err)
	}

	candidate := filepath.Join(p.targetRoot, rel)

	root, err := resolveExisting(p.targetRoot)
	if err != nil {
		return "", domainerrors.Securityf("cannot resolve target root %s: %v", p.targetRoot, err)
	}
	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", domainerrors.Securityf("cannot resolve target path %s: %v", candidate, err)
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", domainerrors.Securityf("target path %s escapes target root %s", candidate, p.targetRoot)
	}
	return resolved, nil
}

// RootsOverlap reports whether one root equals or contains the other.
// Both paths must already be absolute and cleaned.
func RootsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}

// resolveExisting resolves symlinks along the longest existing prefix of
// path and re-joins the remaining, not-yet-created suffix. The target of
// a copy typically does not exist yet, so EvalSymlinks on the full path
// would fail.
func resolveExisting(path string) (string, error) {
	suffix := ""
	current := filepath.Clean(path)
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		current = parent
	}
}
