// Package extract scans source text for rule references in comments.
//
// Source is treated as an opaque comment-bearing byte stream. Two passes run
// per file: a line-comment pass (everything from the first "//" on a line to
// end of line) and a block-comment pass ("/* ... */", fed as one unit and
// attributed to the line where the block opened). A comment marker inside a
// string literal is indistinguishable from a real comment; that is an
// accepted limitation of the scan, not something to guard against.
package extract

import (
	"strings"

	"github.com/c360studio/spectrace/rule"
)

const (
	lineMarker = "//"
	blockOpen  = "/*"
	blockClose = "*/"
)

// Result holds everything extracted from one file. Extraction never fails:
// parse difficulties degrade to a warning or a silent skip.
type Result struct {
	References []rule.Reference
	Warnings   []rule.ParseWarning
}

// chunk is a slice of comment text with its byte offset into the original
// source, so warnings can carry accurate spans even for multi-line blocks.
type chunk struct {
	text   string
	offset int
}

// Extract finds all rule references and parse warnings in content.
func Extract(file, content string) Result {
	var res Result

	// Line-comment pass.
	lineNum := 0
	for off := 0; off <= len(content); {
		lineNum++
		end := strings.IndexByte(content[off:], '\n')
		var line string
		next := len(content) + 1
		if end >= 0 {
			line = content[off : off+end]
			next = off + end + 1
		} else {
			line = content[off:]
		}
		line = strings.TrimSuffix(line, "\r")

		if idx := strings.Index(line, lineMarker); idx >= 0 {
			c := chunk{text: line[idx:], offset: off + idx}
			scanComment(file, lineNum, strings.TrimSpace(c.text), []chunk{c}, &res)
		}

		if end < 0 {
			break
		}
		off = next
	}

	// Block-comment pass.
	scanBlocks(file, content, &res)

	return res
}

// scanBlocks runs the block-comment pass over content.
func scanBlocks(file, content string, res *Result) {
	inBlock := false
	blockLine := 0
	var chunks []chunk

	lineNum := 0
	for off := 0; off <= len(content); {
		lineNum++
		end := strings.IndexByte(content[off:], '\n')
		var line string
		next := len(content) + 1
		if end >= 0 {
			line = content[off : off+end]
			next = off + end + 1
		} else {
			line = content[off:]
		}
		line = strings.TrimSuffix(line, "\r")

		if inBlock {
			if closeIdx := strings.Index(line, blockClose); closeIdx >= 0 {
				chunks = append(chunks, chunk{text: line[:closeIdx], offset: off})
				flushBlock(file, blockLine, chunks, res)
				inBlock = false
				chunks = nil
			} else {
				chunks = append(chunks, chunk{text: line, offset: off})
			}
		} else if openIdx := strings.Index(line, blockOpen); openIdx >= 0 {
			rest := line[openIdx+len(blockOpen):]
			restOff := off + openIdx + len(blockOpen)
			if closeIdx := strings.Index(rest, blockClose); closeIdx >= 0 {
				// Single-line block comment.
				flushBlock(file, lineNum, []chunk{{text: rest[:closeIdx], offset: restOff}}, res)
			} else {
				inBlock = true
				blockLine = lineNum
				chunks = append(chunks, chunk{text: rest, offset: restOff})
			}
		}

		if end < 0 {
			break
		}
		off = next
	}
}

// flushBlock feeds accumulated block content as one unit. A bracket can never
// span a line boundary (a newline is not a valid token character), so the
// chunks are scanned individually while sharing the block's context and
// opening line.
func flushBlock(file string, line int, chunks []chunk, res *Result) {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.text
	}
	context := strings.TrimSpace(strings.Join(parts, "\n"))
	scanComment(file, line, context, chunks, res)
}

// scanComment scans candidate comment text for bracketed rule references.
//
// The bracket scanner is a small state machine: await '[', read the first
// token, decide between the legacy and the explicit-verb form, then read the
// rule ID. An unrecognized verb abandons the whole bracket; it is never
// demoted to a legacy-style match.
func scanComment(file string, line int, context string, chunks []chunk, res *Result) {
	for _, c := range chunks {
		scanChunk(file, line, context, c, res)
	}
}

func scanChunk(file string, line int, context string, c chunk, res *Result) {
	text := c.text
	i := 0
	for i < len(text) {
		if text[i] != '[' {
			i++
			continue
		}
		bracketStart := i
		i++

		// First token must start with a lowercase letter, otherwise this
		// bracket is not a reference attempt at all.
		if i >= len(text) || !isLower(text[i]) {
			continue
		}
		tokStart := i
		for i < len(text) && isTokenChar(text[i]) {
			i++
		}
		tok := text[tokStart:i]
		if i >= len(text) {
			return
		}

		switch text[i] {
		case ']':
			i++
			// Legacy form: valid iff the token is a rule ID. An invalid
			// token is silently ignored; it did not look like a
			// verb-prefixed attempt either.
			if rule.ValidID(tok) {
				res.References = append(res.References, rule.Reference{
					Verb:    rule.VerbImpl,
					RuleID:  rule.ID(tok),
					File:    file,
					Line:    line,
					Context: context,
				})
			}
		case ' ':
			verb, ok := rule.ParseVerb(tok)
			if !ok {
				res.Warnings = append(res.Warnings, rule.ParseWarning{
					Kind: rule.WarnUnknownVerb,
					Verb: tok,
					File: file,
					Span: rule.Span{Offset: c.offset + tokStart, Length: len(tok)},
				})
				continue
			}
			i++
			idStart := i
			for i < len(text) && isTokenChar(text[i]) {
				i++
			}
			idTok := text[idStart:i]
			if i < len(text) && text[i] == ']' && rule.ValidID(idTok) {
				i++
				res.References = append(res.References, rule.Reference{
					Verb:    verb,
					RuleID:  rule.ID(idTok),
					File:    file,
					Line:    line,
					Context: context,
				})
			} else {
				length := i - bracketStart
				if i < len(text) && text[i] == ']' {
					i++
					length++
				}
				res.Warnings = append(res.Warnings, rule.ParseWarning{
					Kind: rule.WarnMalformedReference,
					File: file,
					Span: rule.Span{Offset: c.offset + bracketStart, Length: length},
				})
			}
		default:
			// Any other trailing character aborts the bracket.
		}
	}
}

func isLower(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func isTokenChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-', b == '.':
		return true
	}
	return false
}
