package spec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/spectrace/rule"
)

func TestParser_BareDefinition(t *testing.T) {
	p := NewParser("")

	defs, err := p.Parse("spec.md", "Some prose.\n\nr[channel.id.parity]\n")
	require.NoError(t, err)
	require.Len(t, defs, 1)

	assert.Equal(t, rule.ID("channel.id.parity"), defs[0].ID)
	assert.Equal(t, "spec.md", defs[0].File)
	assert.Equal(t, 3, defs[0].Line)
	assert.Empty(t, defs[0].Meta.Status)
	assert.Empty(t, defs[0].Meta.Tags)
}

func TestParser_FullAttributes(t *testing.T) {
	p := NewParser("")

	text := "r[a.b] status=draft level=must since=1.2 until=2.0 tags=core,alloc\n"
	defs, err := p.Parse("spec.md", text)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	meta := defs[0].Meta
	assert.Equal(t, rule.StatusDraft, meta.Status)
	assert.Equal(t, rule.LevelMust, meta.Level)
	assert.Equal(t, "1.2", meta.Since)
	assert.Equal(t, "2.0", meta.Until)
	assert.Equal(t, []string{"core", "alloc"}, meta.Tags)
}

func TestParser_PreservesSourceOrder(t *testing.T) {
	p := NewParser("")

	text := "r[b.one]\nprose\nr[a.two]\nr[c.three]\n"
	defs, err := p.Parse("spec.md", text)
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, rule.ID("b.one"), defs[0].ID)
	assert.Equal(t, rule.ID("a.two"), defs[1].ID)
	assert.Equal(t, rule.ID("c.three"), defs[2].ID)
}

func TestParser_UnknownAttributeIsHardError(t *testing.T) {
	p := NewParser("")

	_, err := p.Parse("spec.md", "r[a.b] owner=me\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown attribute "owner"`)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Line)
}

func TestParser_InvalidStatusAndLevel(t *testing.T) {
	p := NewParser("")

	_, err := p.Parse("spec.md", "r[a.b] status=final\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")

	_, err = p.Parse("spec.md", "r[a.b] level=optional\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}

func TestParser_InvalidRuleID(t *testing.T) {
	p := NewParser("")

	_, err := p.Parse("spec.md", "r[NoDots]\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rule id")
}

func TestParser_DuplicateWithinDocument(t *testing.T) {
	p := NewParser("")

	_, err := p.Parse("spec.md", "r[a.b]\nr[a.b]\n")
	require.Error(t, err)

	var dup *rule.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, rule.ID("a.b"), dup.ID)
}

func TestParser_CustomMarker(t *testing.T) {
	p := NewParser("req")

	defs, err := p.Parse("spec.md", "req[a.b]\nr[c.d]\n")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, rule.ID("a.b"), defs[0].ID)
}

func TestParser_IgnoresNonMarkerLines(t *testing.T) {
	p := NewParser("")

	text := "array[0] = 1\ncrate[x] something\nSee [a.b] in prose\n"
	defs, err := p.Parse("spec.md", text)
	require.NoError(t, err)
	assert.Empty(t, defs)
}
