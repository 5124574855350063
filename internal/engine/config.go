package engine

import (
	"os"
	"path/filepath"

	domainerrors "github.com/mirrordapp/mirrord-server/internal/errors"
	"github.com/mirrordapp/mirrord-server/internal/policy"
)

// Config describes one sync run. Validated once at start and immutable
// until the run stops.
type Config struct {
	SourceDir           string
	TargetDir           string
	Extensions          []string
	AllowDeletion       bool
	IncludeHidden       bool
	UsePolling          bool
	SyncImportArtifacts bool
}

// Validate checks the configuration without starting a run. Exposed for
// the control API so it can report precise errors before calling Start.
func (c *Config) Validate() error {
	return c.validate()
}

// validate checks the configuration and normalizes it in place: roots
// are resolved to absolute symlink-free directories, extensions to
// lowercase dotted suffixes.
func (c *Config) validate() error {
	if c.SourceDir == "" {
		return domainerrors.Validation("source directory is required")
	}
	if c.TargetDir == "" {
		return domainerrors.Validation("target directory is required")
	}

	source, err := resolveDir("source", c.SourceDir)
	if err != nil {
		return err
	}
	target, err := resolveDir("target", c.TargetDir)
	if err != nil {
		return err
	}

	// Syncing a tree into itself or into one of its ancestors would
	// feed the watcher its own output.
	if policy.RootsOverlap(source, target) {
		return domainerrors.Validationf("source and target directories overlap: %s, %s", source, target)
	}

	c.Extensions = policy.NormalizeExtensions(c.Extensions)
	if len(c.Extensions) == 0 {
		return domainerrors.Validation("at least one file extension is required")
	}

	c.SourceDir = source
	c.TargetDir = target
	return nil
}

// resolveDir verifies that path is an existing directory and returns its
// absolute, symlink-resolved form.
func resolveDir(name, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", domainerrors.Validationf("invalid %s directory %s: %v", name, path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domainerrors.Validationf("%s directory does not exist: %s", name, path)
		}
		return "", domainerrors.Validationf("cannot resolve %s directory %s: %v", name, path, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", domainerrors.Validationf("cannot stat %s directory %s: %v", name, path, err)
	}
	if !info.IsDir() {
		return "", domainerrors.Validationf("%s path is not a directory: %s", name, path)
	}

	return resolved, nil
}

// newPolicy builds the path policy for a validated configuration.
func (c *Config) newPolicy() *policy.Policy {
	return policy.New(c.SourceDir, c.TargetDir, c.Extensions, c.IncludeHidden, c.SyncImportArtifacts)
}
