package jsonpos

import (
	"sort"
	"unicode/utf16"
)

// Position is an LSP-style 0-based (line, UTF-16 character) position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open LSP range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextIndex converts between absolute codepoint offsets (as produced by
// Parse's spans) and LSP (line, UTF-16 code unit) positions, in both
// directions. Only line boundaries are precomputed: each query binary-searches
// the line and then walks that line's runes, so it costs O(log lines + line
// length); per-line UTF-16 widths are not cached.
type TextIndex struct {
	runes  []rune
	starts []int
	ends   []int
}

// NewTextIndex precomputes line boundaries for text.
func NewTextIndex(text string) *TextIndex {
	runes := []rune(text)
	starts := []int{0}
	for i, ch := range runes {
		if ch == '\n' {
			starts = append(starts, i+1)
		}
	}
	ends := make([]int, len(starts))
	for li, s := range starts {
		nl := -1
		for j := s; j < len(runes); j++ {
			if runes[j] == '\n' {
				nl = j
				break
			}
		}
		if nl == -1 {
			ends[li] = len(runes)
		} else {
			ends[li] = nl
		}
	}
	return &TextIndex{runes: runes, starts: starts, ends: ends}
}

func (t *TextIndex) findLine(index int) int {
	lo := sort.Search(len(t.starts), func(i int) bool { return t.starts[i] > index })
	return lo - 1
}

// Position converts a codepoint offset to an LSP position, clamping to the
// document's bounds.
func (t *TextIndex) Position(index int) Position {
	if index < 0 {
		index = 0
	}
	if index > len(t.runes) {
		index = len(t.runes)
	}
	line := t.findLine(index)
	if line < 0 {
		line = 0
	}
	colCP := index - t.starts[line]
	lineRunes := t.runes[t.starts[line]:t.ends[line]]
	if colCP > len(lineRunes) {
		colCP = len(lineRunes)
	}
	prefix := lineRunes[:colCP]
	charUTF16 := 0
	for _, r := range prefix {
		charUTF16 += utf16Width(r)
	}
	return Position{Line: line, Character: charUTF16}
}

// Offset converts an LSP (line, UTF-16 character) position to a codepoint
// offset, clamping best-effort if out of bounds.
func (t *TextIndex) Offset(line, characterUTF16 int) int {
	if line < 0 {
		line = 0
	}
	if line >= len(t.starts) {
		line = len(t.starts) - 1
	}
	if characterUTF16 < 0 {
		characterUTF16 = 0
	}
	lineStart := t.starts[line]
	lineEnd := t.ends[line]
	lineRunes := t.runes[lineStart:lineEnd]

	units := 0
	cp := 0
	for _, r := range lineRunes {
		u := utf16Width(r)
		if units+u > characterUTF16 {
			break
		}
		units += u
		cp++
	}
	return lineStart + cp
}

// Range converts a Span to an LSP Range.
func (t *TextIndex) Range(span Span) Range {
	return Range{Start: t.Position(span[0]), End: t.Position(span[1])}
}

func utf16Width(r rune) int {
	return len(utf16.Encode([]rune{r}))
}

// SpanToLSPRange converts span to an LSP Range, reusing idx if non-nil or
// building a fresh TextIndex from text otherwise.
func SpanToLSPRange(text string, span Span, idx *TextIndex) Range {
	if idx == nil {
		idx = NewTextIndex(text)
	}
	return idx.Range(span)
}
