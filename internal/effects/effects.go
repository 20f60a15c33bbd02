// Package effects implements Astra's static effect (capability) checker: a
// function's declared effects must be a superset of everything it calls,
// transitively, through user functions and builtins alike.
package effects

import (
	"fmt"
	"sort"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
)

type builtinEffect struct {
	arity   int
	effects map[string]bool
}

func effSet(effs ...string) map[string]bool {
	out := make(map[string]bool, len(effs))
	for _, e := range effs {
		out[e] = true
	}
	return out
}

// BuiltinEffects mirrors the runtime and semantic checker's builtin
// signatures: name -> (arity, required effects). "pure" means no side effects.
var BuiltinEffects = map[string]builtinEffect{
	"add": {2, effSet("pure")}, "sub": {2, effSet("pure")}, "mul": {2, effSet("pure")}, "div": {2, effSet("pure")},
	"eq": {2, effSet("pure")}, "neq": {2, effSet("pure")}, "lt": {2, effSet("pure")}, "lte": {2, effSet("pure")},
	"gt": {2, effSet("pure")}, "gte": {2, effSet("pure")},
	"and": {2, effSet("pure")}, "or": {2, effSet("pure")}, "not": {1, effSet("pure")},
	"str_len": {1, effSet("pure")}, "str_concat": {2, effSet("pure")}, "str_contains": {2, effSet("pure")},
	"len": {1, effSet("pure")}, "list_get": {2, effSet("pure")}, "list_set": {3, effSet("pure")},
	"list_append": {2, effSet("pure")}, "list_concat": {2, effSet("pure")}, "list_slice": {3, effSet("pure")},
	"list_range": {1, effSet("pure")}, "list_sum": {1, effSet("pure")}, "list_mean": {1, effSet("pure")},
	"list_map": {2, effSet("pure")}, "list_filter": {2, effSet("pure")}, "list_reduce": {3, effSet("pure")},
	"obj_get": {2, effSet("pure")}, "obj_get_or": {3, effSet("pure")}, "obj_has": {2, effSet("pure")},
	"obj_set": {3, effSet("pure")}, "obj_del": {2, effSet("pure")}, "obj_keys": {1, effSet("pure")},
	"obj_merge": {2, effSet("pure")},
	"print":     {1, effSet("io.print")}, "http_get": {1, effSet("net.http")},
}

type callRef struct {
	fn  string
	ptr string
}

// iterCalls walks node, yielding every call-like reference: ordinary calls
// by callee name, and for higher-order builtins (list_map/list_filter/
// list_reduce) the referenced function name when its first arg is a string
// literal.
func iterCalls(node any, ptr string) []callRef {
	var out []callRef
	switch v := node.(type) {
	case map[string]any:
		if call, ok := v["call"].(map[string]any); ok {
			if fn, ok := call["fn"].(string); ok {
				fnLast := ast.QualLast(fn)
				callPtr := ptr + "/call/fn"
				out = append(out, callRef{fn: fnLast, ptr: callPtr})

				if fnLast == "list_map" || fnLast == "list_filter" || fnLast == "list_reduce" {
					if args, ok := call["args"].([]any); ok && len(args) > 0 {
						if callee, ok := args[0].(string); ok {
							out = append(out, callRef{fn: ast.QualLast(callee), ptr: ptr + "/call/args/0"})
						}
					}
				}
			}
		}
		for k, child := range v {
			out = append(out, iterCalls(child, ptr+"/"+k)...)
		}
	case []any:
		for i, child := range v {
			out = append(out, iterCalls(child, fmt.Sprintf("%s/%d", ptr, i))...)
		}
	}
	return out
}

func userFunctionIndex(mod ast.Module) (map[string]ast.Function, map[string]int) {
	funcs := map[string]ast.Function{}
	idx := map[string]int{}
	for i, f := range mod.Functions() {
		if f.Name() != "" {
			funcs[f.Name()] = f
			idx[f.Name()] = i
		}
	}
	return funcs, idx
}

// ComputeTransitiveEffects returns, for every user function, the set of
// effects required transitively by its body (builtins and user calls
// alike), plus any UnknownFunctionCall issues encountered along the way.
// Mutual recursion is handled by trusting a function's own declaration (or
// {"pure"} if undeclared) when a cycle is detected, to avoid infinite
// recursion.
func ComputeTransitiveEffects(mod map[string]any) (map[string]map[string]bool, *apperr.StaticIssues) {
	m := ast.Module(mod)
	userFuncs, funcIndex := userFunctionIndex(m)
	issues := apperr.NewStaticIssues()

	memo := map[string]map[string]bool{}
	visiting := map[string]bool{}

	var visit func(name string) map[string]bool
	visit = func(name string) map[string]bool {
		if r, done := memo[name]; done {
			return r
		}
		if visiting[name] {
			declared := declaredEffects(userFuncs, name)
			memo[name] = declared
			return declared
		}

		if be, isBuiltin := BuiltinEffects[name]; isBuiltin {
			memo[name] = be.effects
			return be.effects
		}

		fn, known := userFuncs[name]
		if !known {
			memo[name] = map[string]bool{}
			return memo[name]
		}

		visiting[name] = true
		required := declaredEffects(userFuncs, name)

		fnPtr := fmt.Sprintf("/functions/%d/body", funcIndex[name])
		for si, stmt := range fn.Body() {
			stmtPtr := fmt.Sprintf("%s/%d", fnPtr, si)
			for _, ref := range iterCalls(stmt, stmtPtr) {
				_, isBuiltin := BuiltinEffects[ref.fn]
				_, isUser := userFuncs[ref.fn]
				if isBuiltin || isUser {
					for e := range visit(ref.fn) {
						required[e] = true
					}
				} else {
					issues.Add(apperr.Issue{
						Pointer:  ref.ptr,
						Code:     "UnknownFunctionCall",
						Message:  fmt.Sprintf("Call to unknown function: %s", ref.fn),
						Severity: apperr.SeverityError,
					})
				}
			}
		}

		delete(visiting, name)
		memo[name] = required
		return required
	}

	for name := range userFuncs {
		visit(name)
	}

	return memo, issues
}

func declaredEffects(userFuncs map[string]ast.Function, name string) map[string]bool {
	fn, ok := userFuncs[name]
	if !ok {
		return effSet("pure")
	}
	eff := fn.Effects()
	if len(eff) == 0 {
		return effSet("pure")
	}
	return effSet(eff...)
}

// CheckEffects runs ComputeTransitiveEffects and additionally flags
// functions whose declared effects don't cover what they transitively
// require (MissingEffect), and functions that declare "pure" alongside
// other effects (NotPure, a warning).
func CheckEffects(mod map[string]any) *apperr.StaticIssues {
	m := ast.Module(mod)
	userFuncs, funcIndex := userFunctionIndex(m)
	effectsMap, issues := ComputeTransitiveEffects(mod)

	names := make([]string, 0, len(effectsMap))
	for name := range effectsMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		required := effectsMap[name]
		if _, isBuiltin := BuiltinEffects[name]; isBuiltin {
			continue
		}
		fn, known := userFuncs[name]
		if !known {
			continue
		}
		idx := funcIndex[name]
		declared := declaredEffects(userFuncs, name)

		var missing []string
		for e := range required {
			if !declared[e] {
				missing = append(missing, e)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			declaredList := sortedKeys(declared)
			issues.Add(apperr.Issue{
				Pointer:  fmt.Sprintf("/functions/%d/effects", idx),
				Code:     "MissingEffect",
				Message:  fmt.Sprintf("Function '%s' requires effects %v but declares %v.", name, missing, declaredList),
				Severity: apperr.SeverityError,
			})
		}

		if declared["pure"] && len(declared) > 1 {
			extra := sortedKeys(declared)
			var without []string
			for _, e := range extra {
				if e != "pure" {
					without = append(without, e)
				}
			}
			issues.Add(apperr.Issue{
				Pointer:  fmt.Sprintf("/functions/%d/effects", idx),
				Code:     "NotPure",
				Message:  fmt.Sprintf("Function '%s' declares 'pure' but also %v. Consider removing 'pure'.", name, without),
				Severity: apperr.SeverityWarning,
			})
		}

		_ = fn
	}

	return issues
}

// SortedBuiltinNames returns every builtin function name in sorted order,
// used by the editor service's completion list.
func SortedBuiltinNames() []string {
	out := make([]string, 0, len(BuiltinEffects))
	for name := range BuiltinEffects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
