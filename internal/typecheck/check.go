package typecheck

import (
	"fmt"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
)

type env map[string]Type

func (e env) clone() env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

type checker struct {
	issues  *apperr.StaticIssues
	sigs    map[string]Sig
	counter int
}

// CheckModule typechecks mod end to end: builtin and user signatures,
// per-function body inference, requires/ensures, and function- and
// module-level test argument/expectation checking.
func CheckModule(mod map[string]any) *apperr.StaticIssues {
	c := &checker{issues: apperr.NewStaticIssues(), sigs: builtinSigs()}

	m := ast.Module(mod)
	for _, fn := range m.Functions() {
		if fn.Name() != "" {
			c.sigs[fn.Name()] = sigFromFunction(fn)
		}
	}

	for fi, fn := range m.Functions() {
		sig := c.sigs[fn.Name()]
		e := env{}
		for i, p := range sig.ParamNames {
			e[p] = sig.ParamTypes[i]
		}

		retSeen := false

		for ri, req := range fn.Requires() {
			t := c.inferExpr(req, e, ptrStrs("functions", itoa(fi), "requires", itoa(ri)))
			subs := Subst{}
			if !Unify(Prim{"Bool"}, t, subs) {
				c.issue(ptrStrs("functions", itoa(fi), "requires", itoa(ri)), "TypeMismatch", fmt.Sprintf("requires must be Bool, got %s", t.Render()))
			}
		}

		body := fn.Body()
		if body != nil {
			_, alwaysReturns := c.checkBlock(body, e, ptrStrs("functions", itoa(fi), "body"), sig.Ret, &retSeen)
			_ = alwaysReturns
		}

		if !retSeen {
			isAny := false
			if _, ok := sig.Ret.(AnyType); ok {
				isAny = true
			}
			isNull := false
			if p, ok := sig.Ret.(Prim); ok && p.Name == "Null" {
				isNull = true
			}
			if !isAny && !isNull {
				c.issue(ptrStrs("functions", itoa(fi)), "MissingReturn", fmt.Sprintf("Function '%s' may fall through without returning", fn.Name()))
			}
		}

		envPost := e.clone()
		envPost["result"] = sig.Ret
		for ei, ens := range fn.Ensures() {
			t := c.inferExpr(ens, envPost, ptrStrs("functions", itoa(fi), "ensures", itoa(ei)))
			subs := Subst{}
			if !Unify(Prim{"Bool"}, t, subs) {
				c.issue(ptrStrs("functions", itoa(fi), "ensures", itoa(ei)), "TypeMismatch", fmt.Sprintf("ensures must be Bool, got %s", t.Render()))
			}
		}

		for ti, tcRaw := range fn.Tests() {
			tc, ok := tcRaw.(map[string]any)
			if !ok {
				continue
			}
			c.checkTestCase(tc, e, sig, ptrStrs("functions", itoa(fi), "tests", itoa(ti)))
		}
	}

	for ti, tcRaw := range m.Tests() {
		tc, ok := tcRaw.(map[string]any)
		if !ok {
			continue
		}
		fnName := ast.AsString(tc["fn"])
		if fnName == "" {
			continue
		}
		sig, known := c.sigs[fnName]
		if !known {
			c.issue(ptrStrs("tests", itoa(ti), "fn"), "UnknownFunctionCall", fmt.Sprintf("Unknown function: %s", fnName))
			continue
		}
		c.checkTestCase(tc, env{}, sig, ptrStrs("tests", itoa(ti)))
	}

	return c.issues
}

func (c *checker) checkTestCase(tc map[string]any, e env, sig Sig, ptr []string) {
	argsRaw, argsOK := tc["args"].([]any)
	if !argsOK {
		return
	}
	argTypes := make([]Type, len(argsRaw))
	for ai, a := range argsRaw {
		argTypes[ai] = c.inferExpr(a, e, ptrAppend(ptr, "args", itoa(ai)))
	}
	inst, _ := freshen(sig, &c.counter)
	if len(argTypes) != len(inst.ParamTypes) {
		c.issue(ptr, "TestArityMismatch", fmt.Sprintf("Test for %s has wrong arity", sig.Name))
		return
	}
	subs := Subst{}
	for ai := range inst.ParamTypes {
		if !Unify(inst.ParamTypes[ai], argTypes[ai], subs) {
			c.issue(ptrAppend(ptr, "args", itoa(ai)), "TypeMismatch", fmt.Sprintf("Test arg expected %s got %s", inst.ParamTypes[ai].Render(), argTypes[ai].Render()))
		}
	}
	expT := c.inferExpr(tc["expect"], e, ptrAppend(ptr, "expect"))
	if !Unify(applySubst(inst.Ret, subs), expT, subs) {
		c.issue(ptrAppend(ptr, "expect"), "TypeMismatch", fmt.Sprintf("Expected %s got %s", inst.Ret.Render(), expT.Render()))
	}
}

func (c *checker) inferExpr(expr any, e env, ptr []string) Type {
	if ast.IsLiteral(expr) {
		return typeOfLiteral(expr)
	}
	m, isMap := expr.(map[string]any)
	if !isMap {
		c.issue(ptr, "TypeError", "Expression must be literal or object")
		return AnyType{}
	}

	if v, has := m["var"]; has {
		name, ok := v.(string)
		if !ok {
			c.issue(ptrAppend(ptr, "var"), "TypeError", "var must be a string")
			return AnyType{}
		}
		t, known := e[name]
		if !known {
			c.issue(ptrAppend(ptr, "var"), "UndefinedVariable", fmt.Sprintf("Undefined variable: %s", name))
			return AnyType{}
		}
		return t
	}

	if v, has := m["list"]; has {
		arr, ok := v.([]any)
		if !ok {
			c.issue(ptrAppend(ptr, "list"), "TypeError", "list must be an array")
			return AnyType{}
		}
		if len(arr) == 0 {
			return ListT{AnyType{}}
		}
		t := c.inferExpr(arr[0], e, ptrAppend(ptr, "list", "0"))
		for i := 1; i < len(arr); i++ {
			ti := c.inferExpr(arr[i], e, ptrAppend(ptr, "list", itoa(i)))
			t = Join(t, ti)
		}
		return ListT{Elem: t}
	}

	if v, has := m["obj"]; has {
		obj, ok := v.(map[string]any)
		if !ok {
			c.issue(ptrAppend(ptr, "obj"), "TypeError", "obj must be an object")
			return AnyType{}
		}
		fields := map[string]Type{}
		for k, val := range obj {
			fields[k] = c.inferExpr(val, e, ptrAppend(ptr, "obj", k))
		}
		return RecordT{Fields: fields}
	}

	if v, has := m["call"]; has {
		call, ok := v.(map[string]any)
		if !ok {
			c.issue(ptrAppend(ptr, "call"), "TypeError", "call must be an object")
			return AnyType{}
		}
		fn, fnOK := call["fn"].(string)
		argsRaw, argsOK := call["args"].([]any)
		if !fnOK {
			c.issue(ptrAppend(ptr, "call", "fn"), "TypeError", "call.fn must be a string")
			return AnyType{}
		}
		if !argsOK {
			c.issue(ptrAppend(ptr, "call", "args"), "TypeError", "call.args must be an array")
			return AnyType{}
		}

		argTypes := make([]Type, len(argsRaw))
		for i, a := range argsRaw {
			argTypes[i] = c.inferExpr(a, e, ptrAppend(ptr, "call", "args", itoa(i)))
		}
		fnLast := ast.QualLast(fn)

		if special, handled := c.inferSpecialCall(fnLast, fn, argsRaw, argTypes, ptr); handled {
			return special
		}

		sig, found := c.sigs[fnLast]
		if !found {
			sig, found = c.sigs[fn]
		}
		if !found {
			c.issue(ptrAppend(ptr, "call", "fn"), "UnknownFunctionCall", fmt.Sprintf("Unknown function: %s", fn))
			return AnyType{}
		}

		inst, _ := freshen(sig, &c.counter)
		if len(argTypes) != len(inst.ParamTypes) {
			c.issue(ptrAppend(ptr, "call"), "ArityMismatch", fmt.Sprintf("%s expects %d args but got %d", fn, len(inst.ParamTypes), len(argTypes)))
			return AnyType{}
		}

		subs := Subst{}
		for i := range inst.ParamTypes {
			if !Unify(inst.ParamTypes[i], argTypes[i], subs) {
				c.issue(ptrAppend(ptr, "call", "args", itoa(i)), "TypeMismatch", fmt.Sprintf("Arg %d to %s expected %s but got %s", i, fn, inst.ParamTypes[i].Render(), argTypes[i].Render()))
			}
		}
		return applySubst(inst.Ret, subs)
	}

	keys := mapKeys(m)
	c.issue(ptr, "TypeError", fmt.Sprintf("Unknown expr form: %v", keys))
	return AnyType{}
}

// checkStmt returns (newEnv, alwaysReturns).
func (c *checker) checkStmt(stmt any, e env, ptr []string, retAnn Type, retSeen *bool) (env, bool) {
	tag, value, ok := ast.StmtTag(stmt)
	if !ok {
		c.issue(ptr, "TypeError", "Statement must be an object with exactly one key")
		return e, false
	}

	switch tag {
	case "let":
		val, isMap := value.(map[string]any)
		if !isMap {
			c.issue(ptrAppend(ptr, "let"), "TypeError", "let must be an object")
			return e, false
		}
		name, nameOK := val["name"].(string)
		if !nameOK {
			c.issue(ptrAppend(ptr, "let", "name"), "TypeError", "let.name must be a string")
			return e, false
		}
		t := c.inferExpr(val["expr"], e, ptrAppend(ptr, "let", "expr"))
		if _, exists := e[name]; exists {
			c.issue(ptrAppend(ptr, "let", "name"), "Rebind", fmt.Sprintf("Variable '%s' is already defined", name))
		}
		next := e.clone()
		next[name] = t
		return next, false

	case "assert":
		val, isMap := value.(map[string]any)
		if !isMap {
			c.issue(ptrAppend(ptr, "assert"), "TypeError", "assert must be an object")
			return e, false
		}
		t := c.inferExpr(val["expr"], e, ptrAppend(ptr, "assert", "expr"))
		subs := Subst{}
		if !Unify(Prim{"Bool"}, t, subs) {
			c.issue(ptrAppend(ptr, "assert", "expr"), "TypeMismatch", fmt.Sprintf("assert expr must be Bool, got %s", t.Render()))
		}
		return e, false

	case "expr":
		c.inferExpr(value, e, ptrAppend(ptr, "expr"))
		return e, false

	case "return":
		t := c.inferExpr(value, e, ptrAppend(ptr, "return"))
		subs := Subst{}
		if !Unify(retAnn, t, subs) {
			c.issue(ptrAppend(ptr, "return"), "ReturnTypeMismatch", fmt.Sprintf("Return expected %s but got %s", retAnn.Render(), t.Render()))
		}
		*retSeen = true
		return e, true

	case "if":
		val, isMap := value.(map[string]any)
		if !isMap {
			c.issue(ptrAppend(ptr, "if"), "TypeError", "if must be an object")
			return e, false
		}
		tcond := c.inferExpr(val["cond"], e, ptrAppend(ptr, "if", "cond"))
		subs := Subst{}
		if !Unify(Prim{"Bool"}, tcond, subs) {
			c.issue(ptrAppend(ptr, "if", "cond"), "TypeMismatch", fmt.Sprintf("if.cond must be Bool, got %s", tcond.Render()))
		}

		then, thenOK := optionalExprList(val, "then")
		els, elsOK := optionalExprList(val, "else")
		if !thenOK || !elsOK {
			c.issue(ptrAppend(ptr, "if"), "TypeError", "if.then and if.else must be arrays")
			return e, false
		}

		envThen, retThen := c.checkBlock(then, e.clone(), ptrAppend(ptr, "if", "then"), retAnn, retSeen)
		envElse, retElse := c.checkBlock(els, e.clone(), ptrAppend(ptr, "if", "else"), retAnn, retSeen)

		merged := env{}
		for k := range envThen {
			if _, has := envElse[k]; has {
				merged[k] = Join(envThen[k], envElse[k])
			}
		}
		for k, t := range e {
			if _, has := merged[k]; !has {
				merged[k] = t
			}
		}
		return merged, retThen && retElse
	}

	c.issue(ptr, "TypeError", fmt.Sprintf("Unknown stmt: %s", tag))
	return e, false
}

func (c *checker) checkBlock(stmts []any, e env, ptr []string, retAnn Type, retSeen *bool) (env, bool) {
	alwaysReturns := false
	cur := e
	for i, s := range stmts {
		if alwaysReturns {
			continue
		}
		var ar bool
		cur, ar = c.checkStmt(s, cur, ptrAppend(ptr, itoa(i)), retAnn, retSeen)
		if ar {
			alwaysReturns = true
		}
	}
	return cur, alwaysReturns
}

func optionalExprList(m map[string]any, key string) ([]any, bool) {
	v, has := m[key]
	if !has {
		return []any{}, true
	}
	l, ok := v.([]any)
	return l, ok
}

func mapKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func ptrStrs(segs ...string) []string { return segs }
