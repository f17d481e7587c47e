package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/spectrace/rule"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScan_IncludeAndExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "// [a.b]\n")
	writeFile(t, root, "sub/util.go", "// [verify a.c]\n")
	writeFile(t, root, "vendor/dep.go", "// [a.d]\n")
	writeFile(t, root, "readme.md", "// [a.e]\n")

	s := New(root, nil)
	res, err := s.Scan([]string{"**/*.go"}, []string{"vendor/**"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go", "sub/util.go"}, res.Files)
	require.Len(t, res.References, 2)

	got := map[rule.ID]rule.Verb{}
	for _, r := range res.References {
		got[r.RuleID] = r.Verb
	}
	assert.Equal(t, rule.VerbImpl, got["a.b"])
	assert.Equal(t, rule.VerbVerify, got["a.c"])
}

func TestScan_OverlayPrecedence(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "main.go", "// [disk.rule]\n")

	s := New(root, nil)
	overlay := map[string]string{path: "// [buffer.rule]\n"}
	res, err := s.Scan([]string{"**/*.go"}, nil, overlay)
	require.NoError(t, err)

	require.Len(t, res.References, 1)
	assert.Equal(t, rule.ID("buffer.rule"), res.References[0].RuleID)
}

func TestScan_OverlayOnlyFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	s := New(root, nil)
	overlay := map[string]string{
		filepath.Join(root, "new.go"): "// [fresh.rule]\n",
	}
	res, err := s.Scan([]string{"**/*.go"}, nil, overlay)
	require.NoError(t, err)

	require.Len(t, res.References, 1)
	assert.Equal(t, rule.ID("fresh.rule"), res.References[0].RuleID)
	assert.Contains(t, res.Files, "new.go")
}

func TestScan_OverlayOutsideRootIgnored(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()

	s := New(root, nil)
	overlay := map[string]string{
		filepath.Join(other, "elsewhere.go"): "// [outside.rule]\n",
	}
	res, err := s.Scan([]string{"**/*.go"}, nil, overlay)
	require.NoError(t, err)
	assert.Empty(t, res.References)
}

func TestScan_RespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "gen\n/build\n*.tmp.go\n")
	writeFile(t, root, "main.go", "// [keep.rule]\n")
	writeFile(t, root, "gen/out.go", "// [skip.one]\n")
	writeFile(t, root, "build/x.go", "// [skip.two]\n")
	writeFile(t, root, "lib/x.tmp.go", "// [skip.three]\n")

	s := New(root, nil)
	res, err := s.Scan([]string{"**/*.go"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go"}, res.Files)
}

func TestScan_CollectsWarnings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "// [badverb a.b]\n// [a.c]\n")

	s := New(root, nil)
	res, err := s.Scan([]string{"**/*.go"}, nil, nil)
	require.NoError(t, err)

	require.Len(t, res.References, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, rule.WarnUnknownVerb, res.Warnings[0].Kind)
	assert.Equal(t, "main.go", res.Warnings[0].File)
}
