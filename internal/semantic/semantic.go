// Package semantic implements the Astra semantic analyser: undefined
// variable flow analysis, missing-return / unreachable-statement detection,
// immutable-let rebind checks, reserved-name checks, and lightweight
// name+arity call validation. It deliberately stops short of type
// inference; see internal/typecheck for that.
package semantic

import (
	"fmt"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
	"github.com/divyang-garg/astra-guardrails/internal/pointer"
)

// BuiltinArity mirrors the runtime and type checker's builtin signatures;
// all three must stay in lockstep.
var BuiltinArity = map[string]int{
	"add": 2, "sub": 2, "mul": 2, "div": 2,
	"eq": 2, "neq": 2, "lt": 2, "lte": 2, "gt": 2, "gte": 2,
	"and": 2, "or": 2, "not": 1,
	"str_len": 1, "str_concat": 2, "str_contains": 2,
	"len": 1, "list_get": 2, "list_set": 3, "list_append": 2,
	"list_concat": 2, "list_slice": 3, "list_range": 1,
	"list_sum": 1, "list_mean": 1,
	"list_map": 2, "list_filter": 2, "list_reduce": 3,
	"obj_get": 2, "obj_get_or": 3, "obj_has": 2, "obj_set": 3,
	"obj_del": 2, "obj_keys": 1, "obj_merge": 2,
	"print": 1, "http_get": 1,
}

var reservedNames = map[string]bool{"result": true}

var higherOrderArity = map[string]int{"list_map": 1, "list_filter": 1, "list_reduce": 2}

// flow tracks definitely- and maybe-defined variable names along one path.
type flow struct {
	definite map[string]bool
	maybe    map[string]bool
}

func (f flow) clone() flow {
	def := make(map[string]bool, len(f.definite))
	for k := range f.definite {
		def[k] = true
	}
	may := make(map[string]bool, len(f.maybe))
	for k := range f.maybe {
		may[k] = true
	}
	return flow{definite: def, maybe: may}
}

func intersectDefinite(a, b flow) map[string]bool {
	out := map[string]bool{}
	for k := range a.definite {
		if b.definite[k] {
			out[k] = true
		}
	}
	return out
}

func unionMaybe(a, b flow) map[string]bool {
	out := map[string]bool{}
	for k := range a.maybe {
		out[k] = true
	}
	for k := range b.maybe {
		out[k] = true
	}
	return out
}

type checker struct {
	issues        *apperr.StaticIssues
	knownArities  map[string]int
}

// CheckModule runs the semantic analyser over mod, returning all issues
// (errors and warnings) found, in the order the original walk produces them.
func CheckModule(mod map[string]any) *apperr.StaticIssues {
	c := &checker{
		issues:       apperr.NewStaticIssues(),
		knownArities: collectKnownArities(mod),
	}

	fns := ast.AsList(mod["functions"])
	for fi, raw := range fns {
		fn, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := ast.AsString(fn["name"])
		paramsRaw, paramsOK := fn["params"].([]any)
		if name == "" || !paramsOK {
			continue
		}
		params := ast.StringList(fn["params"])

		for pi, p := range paramsRaw {
			ps, _ := p.(string)
			if reservedNames[ps] {
				c.issues.Add(apperr.Issue{
					Pointer:  pointer.JoinStrings(ptrStrs("functions", itoa(fi), "params", itoa(pi))),
					Code:     "ReservedName",
					Message:  fmt.Sprintf("'%s' is reserved", ps),
					Severity: apperr.SeverityError,
				})
			}
		}

		def := map[string]bool{}
		for _, p := range params {
			def[p] = true
		}
		flow0 := flow{definite: def, maybe: cloneSet(def)}

		bodyRaw, bodyIsList := fn["body"].([]any)
		if !bodyIsList {
			c.issues.Add(apperr.Issue{
				Pointer:  pointer.JoinStrings(ptrStrs("functions", itoa(fi), "body")),
				Code:     "InvalidBody",
				Message:  "body must be an array",
				Severity: apperr.SeverityError,
			})
			continue
		}

		_, alwaysReturns := c.analyzeBlock(bodyRaw, ptrStrs("functions", itoa(fi), "body"), flow0)
		if !alwaysReturns {
			c.issues.Add(apperr.Issue{
				Pointer:  pointer.JoinStrings(ptrStrs("functions", itoa(fi))),
				Code:     "MissingReturn",
				Message:  fmt.Sprintf("Function '%s' may fall through without returning", name),
				Severity: apperr.SeverityError,
			})
		}
	}

	return c.issues
}

func collectKnownArities(mod map[string]any) map[string]int {
	out := make(map[string]int, len(BuiltinArity))
	for k, v := range BuiltinArity {
		out[k] = v
	}
	for _, raw := range ast.AsList(mod["functions"]) {
		fn, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, nameOK := fn["name"].(string)
		params, paramsOK := fn["params"].([]any)
		if !nameOK || !paramsOK {
			continue
		}
		count := 0
		for _, p := range params {
			if _, isStr := p.(string); isStr {
				count++
			}
		}
		out[name] = count
	}
	return out
}

func (c *checker) analyzeBlock(stmts []any, ptr []string, flowIn flow) (flow, bool) {
	f := flowIn.clone()
	terminated := false

	for i, stmt := range stmts {
		stmtPtr := append(append([]string{}, ptr...), itoa(i))
		if terminated {
			c.issues.Add(apperr.Issue{
				Pointer:  pointer.JoinStrings(stmtPtr),
				Code:     "UnreachableStatement",
				Message:  "Statement is unreachable (previous statement always returns).",
				Severity: apperr.SeverityWarning,
			})
			continue
		}
		var alwaysReturns bool
		f, alwaysReturns = c.analyzeStmt(stmt, stmtPtr, f)
		if alwaysReturns {
			terminated = true
		}
	}
	return f, terminated
}

func (c *checker) analyzeStmt(stmt any, ptr []string, flowIn flow) (flow, bool) {
	tag, value, ok := ast.StmtTag(stmt)
	if !ok {
		c.issues.Add(apperr.Issue{
			Pointer:  pointer.JoinStrings(ptr),
			Code:     "InvalidStmt",
			Message:  "Statement must be an object with exactly one key",
			Severity: apperr.SeverityError,
		})
		return flowIn, false
	}

	switch tag {
	case "let":
		spec, isMap := value.(map[string]any)
		if !isMap {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "let")), Code: "InvalidLet", Message: "let must be an object", Severity: apperr.SeverityError})
			return flowIn, false
		}
		name, nameOK := spec["name"].(string)
		if !nameOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "let", "name")), Code: "InvalidLetName", Message: "let.name must be a string", Severity: apperr.SeverityError})
			return flowIn, false
		}
		if reservedNames[name] {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "let", "name")), Code: "ReservedName", Message: fmt.Sprintf("'%s' is reserved", name), Severity: apperr.SeverityError})
		}
		if flowIn.maybe[name] {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "let", "name")), Code: "Rebind", Message: fmt.Sprintf("'%s' is already defined on some path", name), Severity: apperr.SeverityError})
		}
		c.analyzeExpr(spec["expr"], append(ptr, "let", "expr"), flowIn)

		next := flowIn.clone()
		next.definite[name] = true
		next.maybe[name] = true
		return next, false

	case "expr":
		c.analyzeExpr(value, append(ptr, "expr"), flowIn)
		return flowIn, false

	case "assert":
		spec, isMap := value.(map[string]any)
		if !isMap {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "assert")), Code: "InvalidAssert", Message: "assert must be an object", Severity: apperr.SeverityError})
			return flowIn, false
		}
		c.analyzeExpr(spec["expr"], append(ptr, "assert", "expr"), flowIn)
		return flowIn, false

	case "return":
		c.analyzeExpr(value, append(ptr, "return"), flowIn)
		return flowIn, true

	case "if":
		spec, isMap := value.(map[string]any)
		if !isMap {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "if")), Code: "InvalidIf", Message: "if must be an object", Severity: apperr.SeverityError})
			return flowIn, false
		}
		c.analyzeExpr(spec["cond"], append(ptr, "if", "cond"), flowIn)

		then, thenOK := optionalList(spec, "then")
		els, elsOK := optionalList(spec, "else")
		if !thenOK || !elsOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "if")), Code: "InvalidIf", Message: "if.then and if.else must be arrays", Severity: apperr.SeverityError})
			return flowIn, false
		}

		flowThen, retThen := c.analyzeBlock(then, append(ptr, "if", "then"), flowIn)
		flowElse, retElse := c.analyzeBlock(els, append(ptr, "if", "else"), flowIn)

		return flow{
			definite: intersectDefinite(flowThen, flowElse),
			maybe:    unionMaybe(flowThen, flowElse),
		}, retThen && retElse
	}

	c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(ptr), Code: "UnknownStmt", Message: fmt.Sprintf("Unknown statement form: %s", tag), Severity: apperr.SeverityError})
	return flowIn, false
}

func (c *checker) analyzeExpr(expr any, ptr []string, f flow) {
	if ast.IsLiteral(expr) {
		return
	}
	m, isMap := expr.(map[string]any)
	if !isMap {
		c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(ptr), Code: "InvalidExpr", Message: fmt.Sprintf("Expression must be literal or object, got %T", expr), Severity: apperr.SeverityError})
		return
	}

	if v, has := m["var"]; has {
		name, nameOK := v.(string)
		if !nameOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "var")), Code: "InvalidVarRef", Message: "var must be a string", Severity: apperr.SeverityError})
			return
		}
		if !f.definite[name] {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "var")), Code: "UndefinedVariable", Message: fmt.Sprintf("Undefined variable: %s", name), Severity: apperr.SeverityError})
		}
		return
	}

	if v, has := m["call"]; has {
		call, callOK := v.(map[string]any)
		if !callOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call")), Code: "InvalidCall", Message: "call must be an object", Severity: apperr.SeverityError})
			return
		}
		fn, fnOK := call["fn"].(string)
		args, argsOK := call["args"].([]any)
		if !fnOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call", "fn")), Code: "InvalidCall", Message: "call.fn must be a string", Severity: apperr.SeverityError})
			return
		}
		if !argsOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call", "args")), Code: "InvalidCall", Message: "call.args must be an array", Severity: apperr.SeverityError})
			return
		}

		fnLast := ast.QualLast(fn)
		if expected, known := c.knownArities[fnLast]; !known {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call", "fn")), Code: "UnknownFunctionCall", Message: fmt.Sprintf("Unknown function: %s", fn), Severity: apperr.SeverityError})
		} else if expected != len(args) {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call")), Code: "ArityMismatch", Message: fmt.Sprintf("%s expects %d args but got %d", fn, expected, len(args)), Severity: apperr.SeverityError})
		}

		if want, isHigherOrder := higherOrderArity[fnLast]; isHigherOrder && len(args) > 0 {
			if ref, refIsStr := args[0].(string); refIsStr {
				refLast := ast.QualLast(ref)
				if got, known := c.knownArities[refLast]; !known {
					c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call", "args", "0")), Code: "UnknownFunctionRef", Message: fmt.Sprintf("Unknown function reference: %s", ref), Severity: apperr.SeverityError})
				} else if got != want {
					c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call", "args", "0")), Code: "ArityMismatch", Message: fmt.Sprintf("%s expects '%s' to have arity %d but it has %d", fnLast, ref, want, got), Severity: apperr.SeverityError})
				}
			} else {
				c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "call", "args", "0")), Code: "InvalidFunctionRef", Message: fmt.Sprintf("%s expects first arg to be a string function name", fnLast), Severity: apperr.SeverityError})
			}
		}

		for i, a := range args {
			c.analyzeExpr(a, append(append([]string{}, ptr...), "call", "args", itoa(i)), f)
		}
		return
	}

	if v, has := m["list"]; has {
		arr, arrOK := v.([]any)
		if !arrOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "list")), Code: "InvalidList", Message: "list must be an array", Severity: apperr.SeverityError})
			return
		}
		for i, a := range arr {
			c.analyzeExpr(a, append(append([]string{}, ptr...), "list", itoa(i)), f)
		}
		return
	}

	if v, has := m["obj"]; has {
		obj, objOK := v.(map[string]any)
		if !objOK {
			c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(append(ptr, "obj")), Code: "InvalidObj", Message: "obj must be an object", Severity: apperr.SeverityError})
			return
		}
		for k, val := range obj {
			c.analyzeExpr(val, append(append([]string{}, ptr...), "obj", k), f)
		}
		return
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	c.issues.Add(apperr.Issue{Pointer: pointer.JoinStrings(ptr), Code: "UnknownExpr", Message: fmt.Sprintf("Unknown expr form: %v", keys), Severity: apperr.SeverityError})
}

func optionalList(m map[string]any, key string) ([]any, bool) {
	v, has := m[key]
	if !has {
		return []any{}, true
	}
	l, ok := v.([]any)
	return l, ok
}

func cloneSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func ptrStrs(segs ...string) []string { return segs }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
