// Package editor exposes Astra's language-server request semantics
// (initialize, document sync, diagnostics, completion, formatting, code
// actions) as plain Go methods, so they can be driven directly by tests or
// by the optional HTTP gateway without a JSON-RPC/stdio transport. That
// transport loop is out of scope; everything downstream of "a request
// arrived" lives here.
package editor

import (
	"sync"

	"github.com/divyang-garg/astra-guardrails/internal/canon"
	"github.com/divyang-garg/astra-guardrails/internal/jsonpos"
)

// Document is one open text document, along with the parse artifacts needed
// to map JSON pointers back to source ranges.
type Document struct {
	URI       string
	Text      string
	Version   int
	Module    map[string]any
	Spans     jsonpos.PointerSpans
	PairSpans jsonpos.PointerSpans
	Index     *jsonpos.TextIndex
}

// Service holds the open-document store and the schema used for diagnostics
// and quick-fix pre-validation. Guarded by a mutex so the HTTP gateway can
// serve concurrent requests even though each document's own diagnostics
// computation is single-threaded.
type Service struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	schema *canon.Schema
}

// NewService constructs a Service backed by the bundled schema.
func NewService() (*Service, error) {
	schema, err := canon.LoadBundledSchema()
	if err != nil {
		return nil, err
	}
	return &Service{docs: map[string]*Document{}, schema: schema}, nil
}

func (s *Service) getDoc(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uri]
	return d, ok
}

func (s *Service) setDoc(d *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[d.URI] = d
}

// Module returns the parsed module for an open, parseable document, for
// callers (the HTTP gateway's /test and /repair handlers) that need the
// raw AST rather than LSP-shaped results.
func (s *Service) Module(uri string) (map[string]any, bool) {
	doc, ok := s.getDoc(uri)
	if !ok {
		return nil, false
	}
	res := s.parseDoc(doc)
	if res.Err != "" {
		return nil, false
	}
	return res.Module, true
}

// ParseResult is the outcome of parsing a document's text.
type ParseResult struct {
	Module map[string]any
	Err    string
	Range  jsonpos.Range
}

func fullRange(text string) jsonpos.Range {
	idx := jsonpos.NewTextIndex(text)
	lines := splitLines(text)
	endLine := len(lines) - 1
	if endLine < 0 {
		endLine = 0
	}
	endChar := idx.Position(len([]rune(text))).Character
	return jsonpos.Range{Start: jsonpos.Position{Line: 0, Character: 0}, End: jsonpos.Position{Line: endLine, Character: endChar}}
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i, r := range text {
		if r == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	lines = append(lines, text[start:])
	return lines
}

// parseDoc parses doc.Text, attaching pointer->span info when it succeeds.
func (s *Service) parseDoc(doc *Document) ParseResult {
	value, spans, pairSpans, err := jsonpos.Parse(doc.Text)
	if err == nil {
		if m, isMap := value.(map[string]any); isMap {
			doc.Module = m
			doc.Spans = spans
			doc.PairSpans = pairSpans
			doc.Index = jsonpos.NewTextIndex(doc.Text)
			return ParseResult{Module: m}
		}
		return ParseResult{Err: "Top-level JSON must be an object", Range: fullRange(doc.Text)}
	}

	idx := jsonpos.NewTextIndex(doc.Text)
	pos := -1
	if pe, ok := err.(*jsonpos.ParseError); ok {
		pos = pe.Index
	}
	if pos < 0 {
		return ParseResult{Err: err.Error(), Range: fullRange(doc.Text)}
	}
	end := pos + 1
	if end > len([]rune(doc.Text)) {
		end = len([]rune(doc.Text))
	}
	return ParseResult{
		Err:   err.Error(),
		Range: jsonpos.Range{Start: idx.Position(pos), End: idx.Position(end)},
	}
}

// rangeForPointer best-effort maps a JSON pointer to a source range by
// walking up the pointer toward the root until a recorded span is found,
// preferring the key/value pair span over the value-only span.
func (s *Service) rangeForPointer(doc *Document, ptr string) jsonpos.Range {
	if doc.Spans == nil || doc.Index == nil {
		return fullRange(doc.Text)
	}
	p := ptr
	if p == "/" {
		p = ""
	}
	cur := p
	for {
		if doc.PairSpans != nil {
			if span, ok := doc.PairSpans[cur]; ok {
				return jsonpos.SpanToLSPRange(doc.Text, span, doc.Index)
			}
		}
		if span, ok := doc.Spans[cur]; ok {
			return jsonpos.SpanToLSPRange(doc.Text, span, doc.Index)
		}
		if cur == "" {
			break
		}
		idx := lastSlash(cur)
		if idx < 0 {
			cur = ""
			continue
		}
		cur = cur[:idx]
	}
	return fullRange(doc.Text)
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
