package editor

import (
	"fmt"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/effects"
	"github.com/divyang-garg/astra-guardrails/internal/jsonpos"
	"github.com/divyang-garg/astra-guardrails/internal/semantic"
	"github.com/divyang-garg/astra-guardrails/internal/typecheck"
)

// Diagnostic mirrors the LSP Diagnostic shape: a range, a severity (1=Error,
// 2=Warning, 3=Information, 4=Hint), a code, and a message. Data carries the
// pointer/code pair code actions need to target a specific issue.
type Diagnostic struct {
	Range    jsonpos.Range  `json:"range"`
	Severity int            `json:"severity"`
	Source   string         `json:"source"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

func severityToLSP(sev apperr.Severity) int {
	if sev == apperr.SeverityWarning {
		return 2
	}
	return 1
}

func nonSchemaIssues(mod map[string]any) []apperr.Issue {
	var out []apperr.Issue
	out = append(out, *semantic.CheckModule(mod)...)
	out = append(out, *typecheck.CheckModule(mod)...)
	out = append(out, *effects.CheckEffects(mod)...)
	return out
}

// Diagnostics computes the full diagnostic set for an open document:
// JSON-parse errors, then schema errors, then semantic/type/effect issues.
// A parse failure short-circuits everything after it, since no module
// exists to analyse.
func (s *Service) Diagnostics(uri string) []Diagnostic {
	doc, ok := s.getDoc(uri)
	if !ok {
		return nil
	}
	return s.diagnosticsFor(doc)
}

func (s *Service) diagnosticsFor(doc *Document) []Diagnostic {
	res := s.parseDoc(doc)
	if res.Err != "" {
		return []Diagnostic{{
			Range:    res.Range,
			Severity: 1,
			Source:   "astra",
			Code:     "JSONParse",
			Data:     map[string]any{"pointer": "", "code": "JSONParse"},
			Message:  res.Err,
		}}
	}

	var diags []Diagnostic

	if s.schema != nil {
		if verrs, err := s.schema.Validate(res.Module); err == nil {
			for _, v := range verrs {
				diags = append(diags, Diagnostic{
					Range:    s.rangeForPointer(doc, v.Pointer),
					Severity: 1,
					Source:   "astra",
					Code:     "SchemaError",
					Data:     map[string]any{"pointer": v.Pointer, "code": "SchemaError"},
					Message:  fmt.Sprintf("%s: %s", v.Pointer, v.Message),
				})
			}
		} else {
			diags = append(diags, Diagnostic{
				Range:    fullRange(doc.Text),
				Severity: 1,
				Source:   "astra",
				Code:     "SchemaInternal",
				Message:  "Internal schema validation error",
			})
		}
	}

	for _, it := range nonSchemaIssues(res.Module) {
		diags = append(diags, Diagnostic{
			Range:    s.rangeForPointer(doc, it.Pointer),
			Severity: severityToLSP(it.Severity),
			Source:   "astra",
			Code:     it.Code,
			Data:     map[string]any{"pointer": it.Pointer, "code": it.Code},
			Message:  fmt.Sprintf("%s: %s", it.Pointer, it.Message),
		})
	}

	return diags
}

// issueKey is (code, pointer), used to compare issue sets before/after a
// prospective edit without caring about message text.
type issueKey struct {
	code, pointer string
}

type issueSummary struct {
	errors   map[issueKey]bool
	warnings map[issueKey]bool
}

func (s *Service) summarizeNonSchema(mod map[string]any) issueSummary {
	sum := issueSummary{errors: map[issueKey]bool{}, warnings: map[issueKey]bool{}}
	for _, it := range nonSchemaIssues(mod) {
		key := issueKey{code: it.Code, pointer: it.Pointer}
		if it.Severity == apperr.SeverityWarning {
			sum.warnings[key] = true
		} else {
			sum.errors[key] = true
		}
	}
	return sum
}

func subsetOf(a, b map[issueKey]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func setsEqual(a, b map[issueKey]bool) bool {
	return len(a) == len(b) && subsetOf(a, b)
}

// noRegression reports whether new introduces no new errors relative to
// base (and no new warnings when the error set is unchanged), and is not a
// no-op relative to base.
func noRegression(base, next issueSummary) bool {
	if !subsetOf(next.errors, base.errors) {
		return false
	}
	if len(next.errors) == len(base.errors) && !subsetOf(next.warnings, base.warnings) {
		return false
	}
	if setsEqual(next.errors, base.errors) && setsEqual(next.warnings, base.warnings) {
		return false
	}
	return true
}
