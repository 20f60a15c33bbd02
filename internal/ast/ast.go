// Package ast provides shared accessors over the generic JSON value tree
// used to represent an Astra module (map[string]any / []any), so the
// semantic analyser, type checker, effect checker, and interpreter do not
// each re-implement the same defensive type assertions.
package ast

// Module is a thin view over a parsed module document.
type Module map[string]any

// Function is a thin view over a single function node.
type Function map[string]any

// AsString returns v as a string, or "" if it is not one.
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// AsList returns v as []any, or nil if it is not one.
func AsList(v any) []any {
	l, _ := v.([]any)
	return l
}

// AsMap returns v as map[string]any, or nil if it is not one.
func AsMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// StringList converts a []any of strings into a []string, skipping any
// non-string elements (callers validate shape separately via schema).
func StringList(v any) []string {
	l := AsList(v)
	out := make([]string, 0, len(l))
	for _, e := range l {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// DeepEqual compares two generic JSON values structurally, treating Int/Float
// numeric mismatches as unequal (1 and 1.0 differ). This is stricter than the
// interpreter's eq builtin, which compares numbers by value.
func DeepEqual(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, present := bv[k]
			if !present || !DeepEqual(v, bval) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Functions returns the module's function list.
func (m Module) Functions() []Function {
	fns := AsList(m["functions"])
	out := make([]Function, 0, len(fns))
	for _, f := range fns {
		if fm, ok := f.(map[string]any); ok {
			out = append(out, Function(fm))
		}
	}
	return out
}

// FunctionByName indexes the module's functions (and, once merged, any
// externs) by name.
func (m Module) FunctionByName() map[string]Function {
	out := map[string]Function{}
	for _, f := range m.Functions() {
		out[f.Name()] = f
	}
	return out
}

// Tests returns module-level test cases.
func (m Module) Tests() []any { return AsList(m["tests"]) }

// Properties returns module-level property tests.
func (m Module) Properties() []any { return AsList(m["properties"]) }

func (f Function) Name() string    { return AsString(f["name"]) }
func (f Function) Params() []string {
	return StringList(f["params"])
}
func (f Function) ParamTypes() []string {
	v, ok := f["param_types"]
	if !ok {
		return nil
	}
	return StringList(v)
}
func (f Function) Returns() string { return AsString(f["returns"]) }
func (f Function) TypeParams() []string {
	return StringList(f["type_params"])
}

// Effects returns the function's declared effects, defaulting to {"pure"}
// when absent, per the data model's default.
func (f Function) Effects() []string {
	v, ok := f["effects"]
	if !ok {
		return []string{"pure"}
	}
	eff := StringList(v)
	if len(eff) == 0 {
		return []string{"pure"}
	}
	return eff
}

func (f Function) Body() []any     { return AsList(f["body"]) }
func (f Function) Requires() []any { return AsList(f["requires"]) }
func (f Function) Ensures() []any  { return AsList(f["ensures"]) }
func (f Function) Tests() []any    { return AsList(f["tests"]) }

// QualLast returns the last dot-qualified segment of a callee name, matching
// the original interpreter's `name.split(".")[-1]` resolution rule.
func QualLast(name string) string {
	last := name
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			start = i + 1
		}
	}
	last = name[start:]
	return last
}

// StmtTag returns a statement node's single tag key ("let", "if", "return",
// "assert", "expr") and its value, or ok=false if the node is not a
// well-formed single-key statement wrapper.
func StmtTag(stmt any) (tag string, value any, ok bool) {
	m, isMap := stmt.(map[string]any)
	if !isMap || len(m) != 1 {
		return "", nil, false
	}
	for k, v := range m {
		return k, v, true
	}
	return "", nil, false
}

// ExprTag returns an expression node's tag ("var", "list", "obj", "call") and
// value for non-literal expressions, or ok=false for literals/invalid nodes.
func ExprTag(expr any) (tag string, value any, ok bool) {
	m, isMap := expr.(map[string]any)
	if !isMap {
		return "", nil, false
	}
	for _, k := range []string{"var", "list", "obj", "call"} {
		if v, present := m[k]; present {
			return k, v, true
		}
	}
	return "", nil, false
}

// IsLiteral reports whether expr is a JSON scalar literal (including null).
func IsLiteral(expr any) bool {
	switch expr.(type) {
	case nil, bool, int64, float64, string:
		return true
	default:
		return false
	}
}
