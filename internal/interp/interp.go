package interp

import (
	"fmt"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
)

// returnSignal unwinds exec of a function body once a `return` statement
// has been reached, carrying its value up to call_user.
type returnSignal struct{ value any }

func (returnSignal) Error() string { return "return" }

// Interpreter evaluates an Astra module's JSON-AST directly against a
// RunContext. No loops exist in the language by design; recursion is
// supported but unbounded (a sufficiently pathological module can exhaust
// the Go call stack, exactly as the host it was ported from).
type Interpreter struct {
	rc  *RunContext
	fns map[string]ast.Function
}

// NewInterpreter indexes mod's functions by unqualified name and wires rc as
// both the effect source and (once Dispatch is installed) the higher-order
// builtin dispatcher.
func NewInterpreter(mod map[string]any, rc *RunContext) *Interpreter {
	m := ast.Module(mod)
	fns := map[string]ast.Function{}
	for _, f := range m.Functions() {
		if f.Name() != "" {
			fns[f.Name()] = f
		}
	}
	it := &Interpreter{rc: rc, fns: fns}
	rc.Dispatch = it.dispatch
	return it
}

func (it *Interpreter) dispatch(fnName string, args []any) (any, error) {
	name := ast.QualLast(fnName)
	if IsBuiltin(name) {
		return it.rc.CallBuiltin(name, args)
	}
	if _, known := it.fns[name]; !known {
		return nil, apperr.NewRuntimeFault("UnknownFunction", fmt.Sprintf("Unknown function: %s", fnName))
	}
	return it.callUser(name, args)
}

// Run evaluates fn (builtin or user) against args under the interpreter's
// run context, matching the upstream run_module entrypoint.
func (it *Interpreter) Run(fn string, args []any) (any, error) {
	fnLast := ast.QualLast(fn)
	if IsBuiltin(fnLast) {
		return it.rc.CallBuiltin(fnLast, args)
	}
	if _, known := it.fns[fnLast]; !known {
		return nil, apperr.NewRuntimeFault("UnknownFunction", fmt.Sprintf("Unknown function: %s", fn))
	}
	return it.callUser(fnLast, args)
}

func (it *Interpreter) callUser(fnName string, args []any) (any, error) {
	fn := it.fns[fnName]
	params := fn.Params()
	if len(params) != len(args) {
		return nil, apperr.NewRuntimeFault("ArityMismatch", fmt.Sprintf("Arity mismatch calling %s: expected %d got %d", fnName, len(params), len(args)))
	}

	env := make(map[string]any, len(params))
	for i, p := range params {
		env[p] = args[i]
	}

	if err := it.execBlock(fn.Body(), env); err != nil {
		if ret, isReturn := err.(returnSignal); isReturn {
			return ret.value, nil
		}
		return nil, err
	}
	return nil, nil
}

// EvalTopLevel evaluates a single expression node against env, used by the
// property-checker to evaluate postcondition expressions outside of a
// function body.
func (it *Interpreter) EvalTopLevel(expr any, env map[string]any) (any, error) {
	return it.evalExpr(expr, env)
}

func (it *Interpreter) execBlock(stmts []any, env map[string]any) error {
	for _, s := range stmts {
		if err := it.execStmt(s, env); err != nil {
			return err
		}
	}
	return nil
}

func (it *Interpreter) execStmt(stmt any, env map[string]any) error {
	tag, value, ok := ast.StmtTag(stmt)
	if !ok {
		return apperr.NewRuntimeFault("SandboxError", fmt.Sprintf("Invalid stmt shape: %v", stmt))
	}

	switch tag {
	case "let":
		spec, isMap := value.(map[string]any)
		if !isMap {
			return apperr.NewRuntimeFault("SandboxError", "let must be an object")
		}
		name, _ := spec["name"].(string)
		v, err := it.evalExpr(spec["expr"], env)
		if err != nil {
			return err
		}
		env[name] = v
		return nil

	case "expr":
		_, err := it.evalExpr(value, env)
		return err

	case "assert":
		spec, isMap := value.(map[string]any)
		if !isMap {
			return apperr.NewRuntimeFault("SandboxError", "assert must be an object")
		}
		ok, err := it.evalExpr(spec["expr"], env)
		if err != nil {
			return err
		}
		if !truthy(ok) {
			msg, _ := spec["message"].(string)
			if msg == "" {
				msg = "assert failed"
			}
			return apperr.NewRuntimeFault("AssertionFailed", msg)
		}
		return nil

	case "return":
		v, err := it.evalExpr(value, env)
		if err != nil {
			return err
		}
		return returnSignal{value: v}

	case "if":
		spec, isMap := value.(map[string]any)
		if !isMap {
			return apperr.NewRuntimeFault("SandboxError", "if must be an object")
		}
		cond, err := it.evalExpr(spec["cond"], env)
		if err != nil {
			return err
		}
		var block []any
		if truthy(cond) {
			block = ast.AsList(spec["then"])
		} else {
			block = ast.AsList(spec["else"])
		}
		return it.execBlock(block, env)
	}

	return apperr.NewRuntimeFault("SandboxError", fmt.Sprintf("Unknown stmt: %s", tag))
}

func (it *Interpreter) evalExpr(expr any, env map[string]any) (any, error) {
	if ast.IsLiteral(expr) {
		return expr, nil
	}
	m, isMap := expr.(map[string]any)
	if !isMap {
		return nil, apperr.NewRuntimeFault("SandboxError", fmt.Sprintf("Invalid expr node: %v", expr))
	}

	if v, has := m["var"]; has {
		name, _ := v.(string)
		val, known := env[name]
		if !known {
			return nil, apperr.NewRuntimeFault("UndefinedVariable", fmt.Sprintf("Undefined variable: %s", name))
		}
		return val, nil
	}

	if v, has := m["list"]; has {
		arr := ast.AsList(v)
		out := make([]any, len(arr))
		for i, e := range arr {
			val, err := it.evalExpr(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	}

	if v, has := m["obj"]; has {
		obj := ast.AsMap(v)
		out := make(map[string]any, len(obj))
		for k, e := range obj {
			val, err := it.evalExpr(e, env)
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	}

	if v, has := m["call"]; has {
		call := ast.AsMap(v)
		fn := ast.QualLast(ast.AsString(call["fn"]))
		argExprs := ast.AsList(call["args"])
		args := make([]any, len(argExprs))
		for i, a := range argExprs {
			val, err := it.evalExpr(a, env)
			if err != nil {
				return nil, err
			}
			args[i] = val
		}
		if IsBuiltin(fn) {
			return it.rc.CallBuiltin(fn, args)
		}
		if _, known := it.fns[fn]; !known {
			return nil, apperr.NewRuntimeFault("UnknownFunction", fmt.Sprintf("Unknown function: %s", fn))
		}
		return it.callUser(fn, args)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return nil, apperr.NewRuntimeFault("SandboxError", fmt.Sprintf("Unknown expr form: %v", keys))
}
