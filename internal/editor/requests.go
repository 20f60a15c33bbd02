package editor

import (
	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
	"github.com/divyang-garg/astra-guardrails/internal/canon"
	"github.com/divyang-garg/astra-guardrails/internal/effects"
	"github.com/divyang-garg/astra-guardrails/internal/interp"
	"github.com/divyang-garg/astra-guardrails/internal/jsonpos"
	"github.com/divyang-garg/astra-guardrails/internal/pointer"
	"github.com/divyang-garg/astra-guardrails/internal/repair"
	"github.com/divyang-garg/astra-guardrails/internal/semantic"
	"github.com/divyang-garg/astra-guardrails/internal/typecheck"
)

// Capabilities is returned from Initialize, matching the supported LSP
// capability set (full-document sync, completion, formatting, code
// actions).
type Capabilities struct {
	TextDocumentSync           int  `json:"textDocumentSync"`
	CompletionProvider         bool `json:"completionProvider"`
	DocumentFormattingProvider bool `json:"documentFormattingProvider"`
	CodeActionProvider         bool `json:"codeActionProvider"`
}

// Initialize returns the fixed capability set this service advertises.
func (s *Service) Initialize() Capabilities {
	return Capabilities{
		TextDocumentSync:           1,
		CompletionProvider:         true,
		DocumentFormattingProvider: true,
		CodeActionProvider:         true,
	}
}

// DidOpen registers uri's text and returns its current diagnostics, as a
// caller driving textDocument/didOpen would publish them.
func (s *Service) DidOpen(uri, text string, version int) []Diagnostic {
	doc := &Document{URI: uri, Text: text, Version: version}
	s.setDoc(doc)
	return s.diagnosticsFor(doc)
}

// DidChange replaces uri's text (full-document sync only) and returns
// refreshed diagnostics.
func (s *Service) DidChange(uri, newText string) []Diagnostic {
	doc, ok := s.getDoc(uri)
	if !ok {
		doc = &Document{URI: uri, Text: newText}
	} else {
		doc.Text = newText
	}
	s.setDoc(doc)
	return s.diagnosticsFor(doc)
}

// CompletionItem is a minimal LSP completion item: a label and an LSP
// symbol kind (3 = Function, used for both builtins and module functions).
type CompletionItem struct {
	Label string `json:"label"`
	Kind  int    `json:"kind"`
}

// Completion lists builtin function names plus, when uri names an open and
// parseable document, that module's own function names.
func (s *Service) Completion(uri string) []CompletionItem {
	var items []CompletionItem
	for _, b := range effects.SortedBuiltinNames() {
		items = append(items, CompletionItem{Label: b, Kind: 3})
	}

	if doc, ok := s.getDoc(uri); ok {
		res := s.parseDoc(doc)
		if res.Err == "" {
			for _, f := range ast.Module(res.Module).Functions() {
				if name := f.Name(); name != "" {
					items = append(items, CompletionItem{Label: name, Kind: 3})
				}
			}
		}
	}
	return items
}

// TextEdit is a full-document replacement (this port does not synthesise
// the original's token-level minimal edits; every edit below replaces the
// whole document text, which is always correct, just coarser).
type TextEdit struct {
	Range   jsonpos.Range `json:"range"`
	NewText string        `json:"newText"`
}

// Formatting returns a single full-document edit replacing uri's text with
// its canonical form, or nil if uri is unknown or unparseable.
func (s *Service) Formatting(uri string) []TextEdit {
	doc, ok := s.getDoc(uri)
	if !ok {
		return nil
	}
	res := s.parseDoc(doc)
	if res.Err != "" {
		return nil
	}
	out, err := canon.Dumps(res.Module)
	if err != nil {
		return nil
	}
	return []TextEdit{{Range: fullRange(doc.Text), NewText: out}}
}

// CodeAction is a named fix: either a format action or a quickfix tied to a
// specific diagnostic (or a deterministic fix-all).
type CodeAction struct {
	Title       string                `json:"title"`
	Kind        string                `json:"kind"`
	IsPreferred bool                  `json:"isPreferred,omitempty"`
	Edit        map[string][]TextEdit `json:"edit"`
}

var quickFixTitles = map[string]string{
	"MissingReturn": "Astra: Add missing return",
	"NotPure":       "Astra: Adjust effects (not pure)",
	"MissingEffect": "Astra: Add missing effects",
}

var quickFixSupported = map[string]bool{
	"MissingReturn": true,
	"NotPure":       true,
	"MissingEffect": true,
}

func edit(uri string, edits []TextEdit) map[string][]TextEdit {
	return map[string][]TextEdit{uri: edits}
}

func (s *Service) prevalidate(doc *Document, candidate map[string]any, baseline issueSummary, target *issueKey) bool {
	sum := s.summarizeNonSchema(candidate)
	if target != nil {
		_, wasBad := baseline.errors[*target]
		_, wasWarn := baseline.warnings[*target]
		if wasBad || wasWarn {
			_, stillBad := sum.errors[*target]
			_, stillWarn := sum.warnings[*target]
			if stillBad || stillWarn {
				return false
			}
		}
	}
	return noRegression(baseline, sum)
}

// CodeActions computes the code actions applicable to uri, optionally
// scoped to the diagnostics passed in ctxDiags (as produced by Diagnostics).
func (s *Service) CodeActions(uri string, ctxDiags []Diagnostic) []CodeAction {
	doc, ok := s.getDoc(uri)
	if !ok {
		return nil
	}
	res := s.parseDoc(doc)
	if res.Err != "" {
		return nil
	}
	mod := res.Module
	baseline := s.summarizeNonSchema(mod)
	fullRng := fullRange(doc.Text)

	var actions []CodeAction

	canonical, err := canon.Dumps(mod)
	if err == nil {
		actions = append(actions, CodeAction{
			Title: "Astra: Format (canonical)",
			Kind:  "source.format",
			Edit:  edit(uri, []TextEdit{{Range: fullRng, NewText: canonical}}),
		})
	}

	offeredAny := false
	for _, d := range ctxDiags {
		code := d.Code
		if d.Data != nil {
			if c, ok := d.Data["code"].(string); ok {
				code = c
			}
		}
		if !quickFixSupported[code] {
			continue
		}
		ptr := ""
		if d.Data != nil {
			if p, ok := d.Data["pointer"].(string); ok {
				ptr = p
			}
		}

		issue := apperr.Issue{Code: code, Pointer: ptr, Severity: apperr.SeverityError}
		patches := repair.SuggestPatches(mod, []apperr.Issue{issue})
		if len(patches) == 0 {
			continue
		}
		fixed, err := pointer.ApplyPatch(pointer.DeepCopy(mod), patches)
		if err != nil {
			continue
		}
		fixedMod, ok := fixed.(map[string]any)
		if !ok {
			continue
		}
		expected, err := canon.Dumps(fixedMod)
		if err != nil {
			continue
		}

		target := issueKey{code: code, pointer: ptr}
		candidateEdit := []TextEdit{{Range: fullRng, NewText: expected}}
		if !s.prevalidate(doc, fixedMod, baseline, &target) {
			continue
		}

		title := quickFixTitles[code]
		if title == "" {
			title = "Astra: Quick fix"
		}
		actions = append(actions, CodeAction{
			Title:       title,
			Kind:        "quickfix",
			IsPreferred: true,
			Edit:        edit(uri, candidateEdit),
		})
		offeredAny = true
	}

	if offeredAny {
		if fixAll := s.fixAllAction(doc, mod, baseline, uri, fullRng); fixAll != nil {
			actions = append(actions, *fixAll)
		}
	}

	return actions
}

// fixAllAction iterates the deterministic suggester to a fixed point
// (bounded at 5 passes, matching the original), offering a single combined
// edit when it converges.
func (s *Service) fixAllAction(doc *Document, mod map[string]any, baseline issueSummary, uri string, fullRng jsonpos.Range) *CodeAction {
	stable := mod
	passes := 0
	for {
		var issues []apperr.Issue
		issues = append(issues, *semantic.CheckModule(stable)...)
		issues = append(issues, *typecheck.CheckModule(stable)...)
		issues = append(issues, *effects.CheckEffects(stable)...)
		patches := repair.SuggestPatches(stable, issues)
		if len(patches) == 0 {
			break
		}
		if passes == 5 {
			return nil
		}
		fixed, err := pointer.ApplyPatch(pointer.DeepCopy(stable), patches)
		if err != nil {
			return nil
		}
		fixedMod, ok := fixed.(map[string]any)
		if !ok {
			return nil
		}
		stable = fixedMod
		passes++
	}
	if passes == 0 {
		return nil
	}

	expected, err := canon.Dumps(stable)
	if err != nil {
		return nil
	}
	candidate := []TextEdit{{Range: fullRng, NewText: expected}}
	if !s.prevalidate(doc, stable, baseline, nil) {
		return nil
	}
	return &CodeAction{
		Title: "Astra: Fix all (deterministic)",
		Kind:  "source.fixAll",
		Edit:  edit(uri, candidate),
	}
}

// RunModule evaluates fn against args via the interpreter, used by the
// gateway's /run endpoint as a thin pass-through over this service's parsed
// document state.
func (s *Service) RunModule(uri, fn string, args []any, allowedEffects []string) (any, error) {
	doc, ok := s.getDoc(uri)
	if !ok {
		return nil, apperr.NewStructural("DocumentNotFound", "", "no open document: "+uri)
	}
	res := s.parseDoc(doc)
	if res.Err != "" {
		return nil, apperr.NewStructural("JSONParse", "", res.Err)
	}
	rc := interp.NewRunContext(allowedEffects)
	it := interp.NewInterpreter(res.Module, rc)
	return it.Run(fn, args)
}
