// Package repair implements deterministic, mechanical repair suggestions.
// No LLM is involved: each rule inspects a single issue code and proposes a
// small JSON Patch that addresses it. Intended both as LSP quick-fixes and
// as a fallback inside the closed-loop repair driver before escalating to
// a model-backed patch provider.
package repair

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
	"github.com/divyang-garg/astra-guardrails/internal/effects"
	"github.com/divyang-garg/astra-guardrails/internal/pointer"
)

// SuggestPatches proposes a deduplicated list of safe patches addressing the
// given issues. Only MissingReturn, NotPure, and MissingEffect are handled;
// everything else is left for the LLM-backed path.
func SuggestPatches(module map[string]any, issues []apperr.Issue) []pointer.Op {
	var patches []pointer.Op

	needEffectsMap := false
	for _, it := range issues {
		if it.Code == "MissingEffect" {
			needEffectsMap = true
			break
		}
	}
	effectsMap := map[string]map[string]bool{}
	if needEffectsMap {
		if m, _ := effects.ComputeTransitiveEffects(module); m != nil {
			effectsMap = m
		}
	}

	patches = append(patches, missingReturnPatches(issues)...)
	patches = append(patches, notPurePatches(module, issues)...)
	patches = append(patches, missingEffectPatches(module, issues, effectsMap)...)

	return dedupe(patches)
}

func ptrParts(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(trimmed, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func missingReturnPatches(issues []apperr.Issue) []pointer.Op {
	var out []pointer.Op
	for _, it := range issues {
		if it.Code != "MissingReturn" {
			continue
		}
		parts := ptrParts(it.Pointer)
		if len(parts) >= 2 && parts[0] == "functions" && isDigits(parts[1]) {
			out = append(out, pointer.Op{
				Op:    "add",
				Path:  "/functions/" + parts[1] + "/body/-",
				Value: map[string]any{"return": nil},
				HasV:  true,
			})
		}
	}
	return out
}

func notPurePatches(module map[string]any, issues []apperr.Issue) []pointer.Op {
	var out []pointer.Op
	fns := ast.Module(module).Functions()
	for _, it := range issues {
		if it.Code != "NotPure" {
			continue
		}
		parts := ptrParts(it.Pointer)
		if len(parts) < 3 || parts[0] != "functions" || !isDigits(parts[1]) || parts[2] != "effects" {
			continue
		}
		fi, _ := strconv.Atoi(parts[1])
		if fi < 0 || fi >= len(fns) {
			continue
		}
		eff := fns[fi].Effects()
		idx := indexOf(eff, "pure")
		if idx >= 0 && len(eff) > 1 {
			out = append(out, pointer.Op{
				Op:   "remove",
				Path: "/functions/" + parts[1] + "/effects/" + strconv.Itoa(idx),
			})
		}
	}
	return out
}

func missingEffectPatches(module map[string]any, issues []apperr.Issue, effectsMap map[string]map[string]bool) []pointer.Op {
	var out []pointer.Op
	fns := ast.Module(module).Functions()
	for _, it := range issues {
		if it.Code != "MissingEffect" {
			continue
		}
		parts := ptrParts(it.Pointer)
		if len(parts) < 3 || parts[0] != "functions" || !isDigits(parts[1]) || parts[2] != "effects" {
			continue
		}
		fi, _ := strconv.Atoi(parts[1])
		if fi < 0 || fi >= len(fns) {
			continue
		}
		fn := fns[fi]
		name := fn.Name()
		if name == "" {
			continue
		}

		declared := fn.Effects()
		if len(declared) == 0 {
			declared = []string{"pure"}
		}

		required := effectsMap[name]
		declaredSet := map[string]bool{}
		for _, e := range declared {
			declaredSet[e] = true
		}

		var missing []string
		for r := range required {
			if !declaredSet[r] {
				missing = append(missing, r)
			}
		}
		if len(missing) == 0 {
			continue
		}
		sort.Strings(missing)

		newEff := append([]string{}, declared...)
		present := map[string]bool{}
		for _, e := range newEff {
			present[e] = true
		}
		for _, m := range missing {
			if !present[m] {
				newEff = append(newEff, m)
				present[m] = true
			}
		}

		if present["pure"] && len(newEff) > 1 {
			filtered := make([]string, 0, len(newEff))
			for _, e := range newEff {
				if e != "pure" {
					filtered = append(filtered, e)
				}
			}
			newEff = filtered
		}

		valueList := make([]any, len(newEff))
		for i, e := range newEff {
			valueList[i] = e
		}
		out = append(out, pointer.Op{
			Op:    "replace",
			Path:  "/functions/" + parts[1] + "/effects",
			Value: valueList,
			HasV:  true,
		})
	}
	return out
}

func indexOf(xs []string, target string) int {
	for i, x := range xs {
		if x == target {
			return i
		}
	}
	return -1
}

func dedupe(patches []pointer.Op) []pointer.Op {
	seen := map[string]bool{}
	var out []pointer.Op
	for _, p := range patches {
		b, err := json.Marshal(p)
		key := string(b)
		if err != nil {
			key = p.Op + p.Path
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

// ApplySuggestions computes and applies SuggestPatches to module, returning
// the patched document. module is left untouched; the result is a fresh
// deep copy when any patch was applied.
func ApplySuggestions(module map[string]any, issues []apperr.Issue) (map[string]any, error) {
	patches := SuggestPatches(module, issues)
	if len(patches) == 0 {
		return module, nil
	}
	doc := pointer.DeepCopy(module)
	patched, err := pointer.ApplyPatch(doc, patches)
	if err != nil {
		return nil, err
	}
	out, _ := patched.(map[string]any)
	return out, nil
}
