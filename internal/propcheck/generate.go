// Package propcheck implements property-based testing over Astra modules:
// value generation per declared parameter type, greedy shrinking on
// failure, and a runner that executes each trial through the AST
// interpreter and checks a postcondition expression.
package propcheck

import (
	"strings"

	"github.com/divyang-garg/astra-guardrails/internal/typecheck"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

func genInt(r *Rand, maxSize int) int64 {
	bound := maxSize*50 + 50
	if bound > 10000 {
		bound = 10000
	}
	if bound < 1 {
		bound = 1
	}
	return int64(r.IntRange(-bound, bound))
}

func genBool(r *Rand) bool { return r.Bool() }

func genString(r *Rand, maxSize int) string {
	limit := maxSize
	if limit > 30 {
		limit = 30
	}
	n := r.IntRange(0, limit)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[r.Intn(len(alphabet))])
	}
	return b.String()
}

func substTypevars(t typecheck.Type, mapping map[string]typecheck.Type) typecheck.Type {
	switch v := t.(type) {
	case typecheck.VarType:
		base := v.Name
		if idx := strings.IndexByte(base, '#'); idx >= 0 {
			base = base[:idx]
		}
		if repl, ok := mapping[base]; ok {
			return repl
		}
		return typecheck.Prim{Name: "Int"}
	case typecheck.ListT:
		return typecheck.ListT{Elem: substTypevars(v.Elem, mapping)}
	case typecheck.RecordT:
		out := make(map[string]typecheck.Type, len(v.Fields))
		for k, f := range v.Fields {
			out[k] = substTypevars(f, mapping)
		}
		return typecheck.RecordT{Fields: out}
	default:
		return t
	}
}

// GenValue generates a random value matching t, substituting typevarDefaults
// for any unresolved type variables (generic function parameters default to
// Int per the embedded-property runner's convention).
func GenValue(t typecheck.Type, r *Rand, maxSize int, typevarDefaults map[string]typecheck.Type) any {
	t = substTypevars(t, typevarDefaults)

	switch v := t.(type) {
	case typecheck.AnyType:
		return genInt(r, maxSize)
	case typecheck.Prim:
		switch v.Name {
		case "Int":
			return genInt(r, maxSize)
		case "Bool":
			return genBool(r)
		case "String":
			return genString(r, maxSize)
		case "Float":
			return float64(genInt(r, maxSize)) / 10.0
		case "Null":
			return nil
		default:
			return genInt(r, maxSize)
		}
	case typecheck.ListT:
		limit := maxSize
		if limit > 50 {
			limit = 50
		}
		n := r.IntRange(0, limit)
		out := make([]any, n)
		for i := range out {
			out[i] = GenValue(v.Elem, r, maxSize, typevarDefaults)
		}
		return out
	case typecheck.RecordT:
		out := make(map[string]any, len(v.Fields))
		for k, ft := range v.Fields {
			out[k] = GenValue(ft, r, maxSize, typevarDefaults)
		}
		return out
	case typecheck.VarType:
		def, ok := typevarDefaults[v.Name]
		if !ok {
			def = typecheck.Prim{Name: "Int"}
		}
		return GenValue(def, r, maxSize, typevarDefaults)
	default:
		return genInt(r, maxSize)
	}
}
