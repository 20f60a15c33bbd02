// Package repairdriver implements the closed-loop repair pipeline: collect
// issues across schema, semantic, type, effect, and test checks; apply the
// deterministic suggester; fall back to a pluggable patch provider; repeat
// up to a bound number of iterations. Each run is tagged with a UUID so its
// history entries can be correlated in logs.
package repairdriver

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/canon"
	"github.com/divyang-garg/astra-guardrails/internal/effects"
	"github.com/divyang-garg/astra-guardrails/internal/pointer"
	"github.com/divyang-garg/astra-guardrails/internal/repair"
	"github.com/divyang-garg/astra-guardrails/internal/semantic"
	"github.com/divyang-garg/astra-guardrails/internal/testrunner"
	"github.com/divyang-garg/astra-guardrails/internal/typecheck"
)

// HistoryEntry records one repair-loop iteration.
type HistoryEntry struct {
	Iter       int            `json:"iter"`
	IssueCount int            `json:"issue_count"`
	Issues     []apperr.Issue `json:"issues"`
}

// Driver runs the closed-loop repair pipeline.
type Driver struct {
	Provider       PatchProvider
	MaxIters       int
	AllowedEffects []string
	Schema         *canon.Schema
	Logger         zerolog.Logger
}

// NewDriver constructs a Driver with the bundled schema and a MockProvider,
// matching the original's defaults (provider "mock", max-iters 5, allowed
// ["pure"]).
func NewDriver(logger zerolog.Logger) (*Driver, error) {
	schema, err := canon.LoadBundledSchema()
	if err != nil {
		return nil, err
	}
	return &Driver{
		Provider:       MockProvider{},
		MaxIters:       5,
		AllowedEffects: []string{"pure"},
		Schema:         schema,
		Logger:         logger,
	}, nil
}

// CollectIssues runs schema validation (when validateSchema), semantic,
// type, and effect checks, and the unit test runner, merging everything
// into one sorted (severity, code, pointer) issue list.
func (d *Driver) CollectIssues(module map[string]any, validateSchema bool) []apperr.Issue {
	var issues []apperr.Issue

	if validateSchema && d.Schema != nil {
		if verrs, err := d.Schema.Validate(module); err == nil {
			for _, v := range verrs {
				issues = append(issues, apperr.Issue{
					Pointer:  v.Pointer,
					Code:     "SchemaError",
					Severity: apperr.SeverityError,
					Message:  v.Message,
					Detail: map[string]any{
						"validator": v.Validator,
						"expected":  v.Expected,
					},
				})
			}
		}
	}

	issues = append(issues, *semantic.CheckModule(module)...)
	issues = append(issues, *typecheck.CheckModule(module)...)
	issues = append(issues, *effects.CheckEffects(module)...)

	allowed := d.AllowedEffects
	if len(allowed) == 0 {
		allowed = []string{"pure"}
	}
	for _, f := range testrunner.RunTests(module, allowed) {
		issues = append(issues, apperr.Issue{
			Pointer:  f.Pointer,
			Code:     f.Code,
			Severity: apperr.SeverityError,
			Message:  f.Message,
			Detail:   f.Detail,
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Pointer < b.Pointer
	})

	return issues
}

// BuildPrompt renders the module and its issues into the repair-loop
// prompt handed to a PatchProvider.
func BuildPrompt(module map[string]any, issues []apperr.Issue) string {
	modJSON, _ := json.MarshalIndent(module, "", "  ")
	issJSON, _ := json.MarshalIndent(issues, "", "  ")
	return "You are repairing an Astra JSON-AST module.\n" +
		"Return ONLY a JSON array of JSON Patch operations (RFC6902 subset: add/replace/remove).\n" +
		"No prose, no markdown.\n\n" +
		"Astra module JSON:\n" + string(modJSON) +
		"\n\nIssues (JSON):\n" + string(issJSON) +
		"\n\nConstraints:\n" +
		"- Preserve module semantics unless needed to fix errors\n" +
		"- Prefer minimal changes\n" +
		"- Keep formatting valid JSON\n"
}

// Result is the outcome of a full repair run.
type Result struct {
	RunID   string
	Module  map[string]any
	History []HistoryEntry
}

// Run executes the closed-loop pipeline against module, returning the final
// module state and the per-iteration history. It never panics: a patch
// application failure stops the loop and returns the last good module
// alongside the history collected so far.
func (d *Driver) Run(ctx context.Context, module map[string]any) Result {
	runID := uuid.NewString()
	log := d.Logger.With().Str("run_id", runID).Logger()

	provider := d.Provider
	if provider == nil {
		provider = MockProvider{}
	}
	maxIters := d.MaxIters
	if maxIters <= 0 {
		maxIters = 5
	}

	cur := pointer.DeepCopy(module).(map[string]any)
	var history []HistoryEntry

	for it := 0; it < maxIters; it++ {
		issues := d.CollectIssues(cur, true)
		history = append(history, HistoryEntry{Iter: it, IssueCount: len(issues), Issues: issues})

		var errs []apperr.Issue
		for _, i := range issues {
			if i.Severity == apperr.SeverityError {
				errs = append(errs, i)
			}
		}
		if len(errs) == 0 {
			log.Info().Int("iter", it).Msg("no remaining errors")
			break
		}

		patches := repair.SuggestPatches(cur, issues)
		if len(patches) > 0 {
			patched, err := pointer.ApplyPatch(pointer.DeepCopy(cur), patches)
			if err != nil {
				log.Error().Err(err).Int("iter", it).Msg("deterministic patch application failed")
				break
			}
			m, ok := patched.(map[string]any)
			if !ok {
				log.Error().Int("iter", it).Msg("deterministic patch produced a non-object module")
				break
			}
			cur = m
			continue
		}

		prompt := BuildPrompt(cur, issues)
		llmPatches, err := provider.ProposePatches(ctx, prompt)
		if err != nil {
			log.Error().Err(err).Int("iter", it).Msg("patch provider failed")
			break
		}
		if len(llmPatches) == 0 {
			log.Info().Int("iter", it).Msg("patch provider proposed nothing; stopping")
			break
		}
		patched, err := pointer.ApplyPatch(pointer.DeepCopy(cur), llmPatches)
		if err != nil {
			log.Error().Err(err).Int("iter", it).Msg("provider patch application failed")
			break
		}
		m, ok := patched.(map[string]any)
		if !ok {
			log.Error().Int("iter", it).Msg("provider patch produced a non-object module")
			break
		}
		cur = m
	}

	return Result{RunID: runID, Module: cur, History: history}
}

// FinalHasErrors reports whether the driver's last recorded issue batch
// still contains any error-severity entries, matching the original's
// exit-code 2/0 decision for an eventual CLI wrapper.
func (r Result) FinalHasErrors() bool {
	if len(r.History) == 0 {
		return false
	}
	last := r.History[len(r.History)-1]
	for _, i := range last.Issues {
		if i.Severity == apperr.SeverityError {
			return true
		}
	}
	return false
}
