// Package testrunner executes a module's AST-level unit tests: test cases
// declared at module root (`tests: [...]`) and inside individual functions
// (`functions[i].tests: [...]`). Each case evaluates its `args` and `expect`
// expressions, runs the function, and compares results structurally.
package testrunner

import (
	"fmt"

	"github.com/divyang-garg/astra-guardrails/internal/ast"
	"github.com/divyang-garg/astra-guardrails/internal/interp"
)

// Failure describes one failing test case, mirroring the issue shape
// surfaced elsewhere in the toolchain.
type Failure struct {
	Pointer  string         `json:"pointer"`
	Code     string         `json:"code"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Detail   map[string]any `json:"detail"`
}

func newInterp(mod map[string]any, allowedEffects []string) *interp.Interpreter {
	rc := interp.NewRunContext(allowedEffects)
	return interp.NewInterpreter(mod, rc)
}

func evalInEmptyEnv(it *interp.Interpreter, expr any) (any, error) {
	return it.EvalTopLevel(expr, map[string]any{})
}

func runTestcase(mod map[string]any, fnName string, argsExprs []any, expectExpr any, allowedEffects []string) (ok bool, actual, expected any, errStr string) {
	evalIt := newInterp(mod, allowedEffects)

	args := make([]any, len(argsExprs))
	for i, a := range argsExprs {
		v, err := evalInEmptyEnv(evalIt, a)
		if err != nil {
			return false, nil, nil, err.Error()
		}
		args[i] = v
	}

	exp, err := evalInEmptyEnv(evalIt, expectExpr)
	if err != nil {
		return false, nil, nil, err.Error()
	}

	runIt := newInterp(mod, allowedEffects)
	act, err := runIt.Run(fnName, args)
	if err != nil {
		return false, nil, nil, err.Error()
	}

	return ast.DeepEqual(act, exp), act, exp, ""
}

// RunTests executes every module-level and function-level test case and
// returns the failing ones.
func RunTests(mod map[string]any, allowedEffects []string) []Failure {
	var failures []Failure
	m := ast.Module(mod)

	for ti, raw := range m.Tests() {
		tc, isMap := raw.(map[string]any)
		if !isMap {
			continue
		}
		fn, isStr := tc["fn"].(string)
		args, isList := tc["args"].([]any)
		if !isStr {
			continue
		}
		if !isList {
			args = nil
		}
		exp := tc["expect"]

		ok, actual, expected, errStr := runTestcase(mod, fn, args, exp, allowedEffects)
		if ok {
			continue
		}
		code := "TestFailed"
		if errStr != "" {
			code = "TestError"
		}
		label := tc["name"]
		if label == nil {
			label = ti
		}
		failures = append(failures, Failure{
			Pointer:  fmt.Sprintf("/tests/%d", ti),
			Code:     code,
			Severity: "error",
			Message:  fmt.Sprintf("Test %v failed for %s", label, fn),
			Detail: map[string]any{
				"expected": expected,
				"actual":   actual,
				"error":    errStrOrNil(errStr),
			},
		})
	}

	for fi, fn := range m.Functions() {
		name := fn.Name()
		if name == "" {
			continue
		}
		for ti, raw := range fn.Tests() {
			tc, isMap := raw.(map[string]any)
			if !isMap {
				continue
			}
			args, isList := tc["args"].([]any)
			if !isList {
				continue
			}
			exp := tc["expect"]

			ok, actual, expected, errStr := runTestcase(mod, name, args, exp, allowedEffects)
			if ok {
				continue
			}
			code := "TestFailed"
			if errStr != "" {
				code = "TestError"
			}
			label := tc["name"]
			if label == nil {
				label = ti
			}
			failures = append(failures, Failure{
				Pointer:  fmt.Sprintf("/functions/%d/tests/%d", fi, ti),
				Code:     code,
				Severity: "error",
				Message:  fmt.Sprintf("Function test %v failed for %s", label, name),
				Detail: map[string]any{
					"expected": expected,
					"actual":   actual,
					"error":    errStrOrNil(errStr),
				},
			})
		}
	}

	return failures
}

func errStrOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
