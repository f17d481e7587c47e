package rule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_AddAndLookup(t *testing.T) {
	m := NewManifest()

	require.NoError(t, m.Add(Definition{ID: "a.b", File: "spec.md", Line: 3}))
	require.NoError(t, m.Add(Definition{ID: "a.c", File: "spec.md", Line: 7}))

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Has("a.b"))
	assert.False(t, m.Has("a.z"))
	assert.Equal(t, []ID{"a.b", "a.c"}, m.IDs())

	def := m.Get("a.c")
	require.NotNil(t, def)
	assert.Equal(t, 7, def.Line)
}

func TestManifest_DuplicateSameFile(t *testing.T) {
	m := NewManifest()
	require.NoError(t, m.Add(Definition{ID: "a.b", File: "spec.md", Line: 1}))

	err := m.Add(Definition{ID: "a.b", File: "spec.md", Line: 9})
	require.Error(t, err)

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, ID("a.b"), dup.ID)
	assert.Equal(t, 9, dup.Line)
}

func TestManifest_DuplicateAcrossFiles(t *testing.T) {
	m := NewManifest()
	require.NoError(t, m.Add(Definition{ID: "a.b", File: "one.md", Line: 1}))

	err := m.Add(Definition{ID: "a.b", File: "two.md", Line: 4})
	require.Error(t, err)

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "one.md", dup.Original)
	assert.Contains(t, err.Error(), "already defined in one.md")
}
