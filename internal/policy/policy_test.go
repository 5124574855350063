package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/mirrordapp/mirrord-server/internal/errors"
)

func newTestPolicy(t *testing.T, includeHidden, syncImportArtifacts bool) (*Policy, string, string) {
	t.Helper()
	source := t.TempDir()
	target := t.TempDir()
	p := New(source, target, []string{".gd", ".tscn", ".import"}, includeHidden, syncImportArtifacts)
	return p, source, target
}

func TestNormalizeExtensions(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"already normalized", []string{".gd", ".tscn"}, []string{".gd", ".tscn"}},
		{"missing dots", []string{"gd", "tscn"}, []string{".gd", ".tscn"}},
		{"uppercase", []string{".GD", "TSCN"}, []string{".gd", ".tscn"}},
		{"whitespace", []string{" .gd ", ""}, []string{".gd"}},
		{"lone dot dropped", []string{"."}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeExtensions(tt.input))
		})
	}
}

func TestShouldIgnore_ReservedDirectories(t *testing.T) {
	// Reserved directories are pruned even when hidden files are included.
	p, source, _ := newTestPolicy(t, true, true)

	assert.True(t, p.ShouldIgnore(filepath.Join(source, ".godot", "imported", "x.ctex")))
	assert.True(t, p.ShouldIgnore(filepath.Join(source, ".import", "x.stex")))
	assert.True(t, p.ShouldIgnore(filepath.Join(source, "sub", ".godot", "y.bin")))
	assert.False(t, p.ShouldIgnore(filepath.Join(source, "sub", "player.gd")))
}

func TestShouldIgnore_HiddenEntries(t *testing.T) {
	t.Run("excluded by default", func(t *testing.T) {
		p, source, _ := newTestPolicy(t, false, false)
		assert.True(t, p.ShouldIgnore(filepath.Join(source, ".hidden", "a.gd")))
		assert.True(t, p.ShouldIgnore(filepath.Join(source, "sub", ".env")))
	})

	t.Run("included when enabled", func(t *testing.T) {
		p, source, _ := newTestPolicy(t, true, false)
		assert.False(t, p.ShouldIgnore(filepath.Join(source, ".hidden", "a.gd")))
		// Reserved names still win.
		assert.True(t, p.ShouldIgnore(filepath.Join(source, ".godot", "a.gd")))
	})
}

func TestShouldIgnore_SourceRootItself(t *testing.T) {
	p, source, _ := newTestPolicy(t, false, false)
	assert.False(t, p.ShouldIgnore(source))
}

func TestExtensionEligible(t *testing.T) {
	p, _, _ := newTestPolicy(t, false, true)

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"listed extension", "scripts/player.gd", true},
		{"listed scene", "scenes/main.tscn", true},
		{"uppercase suffix", "scripts/PLAYER.GD", true},
		{"unlisted extension", "notes/readme.txt", false},
		{"no extension", "Makefile", false},
		{"import artifact allowed", "art/icon.png.import", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ExtensionEligible(tt.path))
		})
	}
}

func TestExtensionEligible_ImportArtifactsOptIn(t *testing.T) {
	// .import is in the extension set but the opt-in flag is off.
	p, _, _ := newTestPolicy(t, false, false)
	assert.False(t, p.ExtensionEligible("art/icon.png.import"))
	assert.True(t, p.ExtensionEligible("scripts/player.gd"))
}

func TestResolveTargetPath_Basic(t *testing.T) {
	p, source, target := newTestPolicy(t, false, false)

	got, err := p.ResolveTargetPath(filepath.Join(source, "scripts", "player.gd"))
	require.NoError(t, err)

	// t.TempDir may itself sit behind a symlink (macOS), so compare
	// against the resolved root.
	root, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "scripts", "player.gd"), got)
}

func TestResolveTargetPath_TraversalRejected(t *testing.T) {
	p, source, _ := newTestPolicy(t, false, false)

	_, err := p.ResolveTargetPath(filepath.Join(source, "..", "..", "etc", "passwd"))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrSecurity))
}

func TestResolveTargetPath_SymlinkEscapeRejected(t *testing.T) {
	p, source, target := newTestPolicy(t, false, false)

	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(target, "escape")))

	_, err := p.ResolveTargetPath(filepath.Join(source, "escape", "a.gd"))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrSecurity))
}

func TestRootsOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{"equal", "/data/project", "/data/project", true},
		{"a contains b", "/data", "/data/project", true},
		{"b contains a", "/data/project", "/data", true},
		{"siblings", "/data/src", "/data/dst", false},
		{"prefix but not ancestor", "/data/src", "/data/src-mirror", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RootsOverlap(tt.a, tt.b))
		})
	}
}
