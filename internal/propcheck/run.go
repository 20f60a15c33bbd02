package propcheck

import (
	"github.com/divyang-garg/astra-guardrails/internal/ast"
	"github.com/divyang-garg/astra-guardrails/internal/interp"
	"github.com/divyang-garg/astra-guardrails/internal/typecheck"
)

// Result is the outcome of one property's execution.
type Result struct {
	Name          string `json:"name,omitempty"`
	Fn            string `json:"fn"`
	OK            bool   `json:"ok"`
	Cases         int    `json:"cases"`
	FailingArgs   []any  `json:"failing_args,omitempty"`
	MinimizedArgs []any  `json:"minimized_args,omitempty"`
	Error         string `json:"error,omitempty"`
}

func truthyAny(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) != 0
	case map[string]any:
		return len(x) != 0
	default:
		return true
	}
}

// RunFunction executes cases trials of fn against a generated argument list,
// checking post after each call. On the first failure (postcondition false
// or a runtime error), it greedily shrinks the failing arguments before
// returning.
func RunFunction(mod map[string]any, fn ast.Function, post any, cases int, seed int64, maxSize int, allowedEffects []string) Result {
	name := fn.Name()
	if name == "" {
		return Result{OK: false, Error: "invalid function"}
	}

	params := fn.Params()
	ptRaw := fn.ParamTypes()
	paramTypes := make([]typecheck.Type, len(params))
	if len(ptRaw) == len(params) && ptRaw != nil {
		for i, t := range ptRaw {
			ty, err := typecheck.ParseTypeExpr(t)
			if err != nil {
				ty = typecheck.AnyType{}
			}
			paramTypes[i] = ty
		}
	} else {
		for i := range paramTypes {
			paramTypes[i] = typecheck.AnyType{}
		}
	}

	defaults := map[string]typecheck.Type{}
	for _, tp := range fn.TypeParams() {
		defaults[tp] = typecheck.Prim{Name: "Int"}
	}

	r := NewRand(seed)

	for i := 0; i < cases; i++ {
		args := make([]any, len(paramTypes))
		for j, t := range paramTypes {
			args[j] = GenValue(t, r, maxSize, defaults)
		}

		ok, callErr := tryTrial(mod, name, params, args, post, allowedEffects)
		if callErr == nil && ok {
			continue
		}

		errMsg := "postcondition failed"
		if callErr != nil {
			errMsg = callErr.Error()
		}
		minimized := minimizeFailure(mod, name, params, paramTypes, args, post, allowedEffects, defaults)
		return Result{Fn: name, OK: false, Cases: i + 1, FailingArgs: args, MinimizedArgs: minimized, Error: errMsg}
	}

	return Result{Fn: name, OK: true, Cases: cases}
}

func tryTrial(mod map[string]any, fnName string, params []string, args []any, post any, allowedEffects []string) (bool, error) {
	rc := interp.NewRunContext(allowedEffects)
	it := interp.NewInterpreter(mod, rc)
	result, err := it.Run(fnName, args)
	if err != nil {
		return false, err
	}
	env := make(map[string]any, len(params)+1)
	for i, p := range params {
		env[p] = args[i]
	}
	env["result"] = result
	ok, err := evalPostExprDirect(it, post, env)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func minimizeFailure(mod map[string]any, fnName string, params []string, paramTypes []typecheck.Type, args []any, post any, allowedEffects []string, defaults map[string]typecheck.Type) []any {
	fails := func(candidate []any) bool {
		ok, err := tryTrial(mod, fnName, params, candidate, post, allowedEffects)
		if err != nil {
			return true
		}
		return !ok
	}

	cur := append([]any{}, args...)
	changed := true
	for changed {
		changed = false
		for i := range cur {
			t := typecheck.Type(typecheck.AnyType{})
			if i < len(paramTypes) {
				t = paramTypes[i]
			}
			for _, cand := range ShrinkValue(t, cur[i], defaults) {
				trial := append([]any{}, cur...)
				trial[i] = cand
				if fails(trial) {
					cur = trial
					changed = true
					break
				}
			}
		}
	}
	return cur
}

// RunModuleProperties runs every entry under a module's `properties` array.
func RunModuleProperties(mod map[string]any, allowedEffects []string) []Result {
	m := ast.Module(mod)
	byName := m.FunctionByName()

	var out []Result
	for _, raw := range m.Properties() {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := ast.AsString(p["name"])
		fnName := ast.AsString(p["fn"])
		strat := ast.AsMap(p["strategy"])
		expect := ast.AsMap(p["expect"])
		post, hasPost := expect["post"]
		if fnName == "" || !hasPost {
			continue
		}
		fn, known := byName[fnName]
		if !known {
			out = append(out, Result{Name: name, Fn: fnName, OK: false, Error: "unknown function"})
			continue
		}

		cases := 100
		if c, ok := strat["cases"]; ok {
			cases = intFromAny(c, 100)
		}
		maxSize := 20
		if ms, ok := strat["max_size"]; ok {
			maxSize = intFromAny(ms, 20)
		}
		var seed int64
		if s, ok := strat["seed"]; ok {
			seed = int64(intFromAny(s, 0))
		}

		res := RunFunction(mod, fn, post, cases, seed, maxSize, allowedEffects)
		res.Name = name
		res.Fn = fnName
		out = append(out, res)
	}
	return out
}

func intFromAny(v any, fallback int) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func evalPostExprDirect(it *interp.Interpreter, post any, env map[string]any) (bool, error) {
	v, err := it.EvalTopLevel(post, env)
	if err != nil {
		return false, err
	}
	return truthyAny(v), nil
}
