package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	// Generate many IDs and verify they're unique
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate("test")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	id, err := Generate("op")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "op-"))
	// NanoID default length is 21.
	assert.Len(t, id, len("op-")+21)
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		id := MustGenerate("client")
		assert.True(t, strings.HasPrefix(id, "client-"))
	})
}

func TestSuffix(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := Suffix()
		assert.Len(t, s, 8)
		assert.False(t, seen[s], "suffix should be unique: %s", s)
		seen[s] = true
	}
}
