package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/spectrace/rule"
)

func TestExtract_LegacyReference(t *testing.T) {
	content := "// See [channel.id.allocation] for details\nfunc allocateID() {}\n"

	res := Extract("test.go", content)
	require.Len(t, res.References, 1)
	assert.Empty(t, res.Warnings)

	ref := res.References[0]
	assert.Equal(t, rule.VerbImpl, ref.Verb)
	assert.Equal(t, rule.ID("channel.id.allocation"), ref.RuleID)
	assert.Equal(t, "test.go", ref.File)
	assert.Equal(t, 1, ref.Line)
	assert.Equal(t, "// See [channel.id.allocation] for details", ref.Context)
}

func TestExtract_VerbForms(t *testing.T) {
	for _, verb := range rule.Verbs() {
		content := fmt.Sprintf("// [%s channel.id.parity]\n", verb)
		res := Extract("test.go", content)
		require.Len(t, res.References, 1, "verb %s", verb)
		assert.Equal(t, verb, res.References[0].Verb)
		assert.Equal(t, rule.ID("channel.id.parity"), res.References[0].RuleID)
	}
}

func TestExtract_MultipleReferencesOneComment(t *testing.T) {
	content := "/// Implements [channel.id.parity] and [verify channel.id.no-reuse]\n"

	res := Extract("test.go", content)
	require.Len(t, res.References, 2)
	assert.Equal(t, rule.ID("channel.id.parity"), res.References[0].RuleID)
	assert.Equal(t, rule.VerbImpl, res.References[0].Verb)
	assert.Equal(t, rule.ID("channel.id.no-reuse"), res.References[1].RuleID)
	assert.Equal(t, rule.VerbVerify, res.References[1].Verb)
}

func TestExtract_IgnoresNonRuleBrackets(t *testing.T) {
	content := strings.Join([]string{
		"// array[0] is not a rule",
		"// [Some text] is not a rule either",
		"// [nodots] lacks a dot",
		"// [.leading] and [trailing.] are invalid",
	}, "\n")

	res := Extract("test.go", content)
	assert.Empty(t, res.References)
	assert.Empty(t, res.Warnings)
}

func TestExtract_UnknownVerbNeverFallsBackToLegacy(t *testing.T) {
	content := "// [unknownverb some.rule]\n"

	res := Extract("test.go", content)
	assert.Empty(t, res.References)
	require.Len(t, res.Warnings, 1)

	w := res.Warnings[0]
	assert.Equal(t, rule.WarnUnknownVerb, w.Kind)
	assert.Equal(t, "unknownverb", w.Verb)
	assert.Equal(t, "test.go", w.File)
	// Span points at the verb token inside the original text.
	assert.Equal(t, "unknownverb", content[w.Span.Offset:w.Span.Offset+w.Span.Length])
}

func TestExtract_MalformedVerbReference(t *testing.T) {
	content := "// [impl Not.Valid]\n"

	res := Extract("test.go", content)
	assert.Empty(t, res.References)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, rule.WarnMalformedReference, res.Warnings[0].Kind)
	assert.Equal(t, "[impl ", content[res.Warnings[0].Span.Offset:res.Warnings[0].Span.Offset+6])
}

func TestExtract_OtherTrailingCharacterAborts(t *testing.T) {
	content := "// [abc; not a reference]\n"

	res := Extract("test.go", content)
	assert.Empty(t, res.References)
	assert.Empty(t, res.Warnings)
}

func TestExtract_SingleLineBlockComment(t *testing.T) {
	content := "x := 1 /* [impl a.b] */\n"

	res := Extract("test.go", content)
	require.Len(t, res.References, 1)
	assert.Equal(t, rule.ID("a.b"), res.References[0].RuleID)
	assert.Equal(t, 1, res.References[0].Line)
	assert.Equal(t, "[impl a.b]", res.References[0].Context)
}

func TestExtract_MultiLineBlockComment(t *testing.T) {
	content := strings.Join([]string{
		"/*",
		" * Overview of the allocator.",
		" * Covers [channel.id.allocation]",
		" * and [verify channel.id.parity]",
		" */",
		"func alloc() {}",
	}, "\n")

	res := Extract("test.go", content)
	require.Len(t, res.References, 2)
	// Block content is attributed to the line where the block opened.
	assert.Equal(t, 1, res.References[0].Line)
	assert.Equal(t, 1, res.References[1].Line)
	assert.Contains(t, res.References[0].Context, "Overview of the allocator.")
}

func TestExtract_BlockCommentWarningSpan(t *testing.T) {
	content := "code()\n/*\n [badverb x.y]\n*/\n"

	res := Extract("test.go", content)
	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, "badverb", content[w.Span.Offset:w.Span.Offset+w.Span.Length])
}

func TestExtract_FirstMarkerOnLineWins(t *testing.T) {
	// A marker inside a string literal is indistinguishable from a real
	// comment; the scan takes the first occurrence on the line.
	content := `s := "https://example.com/[a.b]"` + "\n"

	res := Extract("test.go", content)
	require.Len(t, res.References, 1)
	assert.Equal(t, rule.ID("a.b"), res.References[0].RuleID)
}

func TestExtract_NeverFailsWholeFile(t *testing.T) {
	content := "// [impl \n// [\n// ]\n// [a.b] still works\n"

	res := Extract("test.go", content)
	require.Len(t, res.References, 1)
	assert.Equal(t, rule.ID("a.b"), res.References[0].RuleID)
	assert.Equal(t, 4, res.References[0].Line)
}

func TestAt_FiltersByLine(t *testing.T) {
	content := strings.Join([]string{
		"// [a.b]",
		"code()",
		"// [a.c]",
		"// [verify a.d]",
	}, "\n")

	res := Extract("test.go", content)
	require.Len(t, res.References, 3)

	at := At(res.References, 3)
	require.Len(t, at, 1)
	assert.Equal(t, rule.ID("a.c"), at[0].RuleID)

	ranged := InRange(res.References, 3, 4)
	require.Len(t, ranged, 2)
	assert.Equal(t, rule.ID("a.c"), ranged[0].RuleID)
	assert.Equal(t, rule.ID("a.d"), ranged[1].RuleID)

	assert.Empty(t, At(res.References, 2))
}
