package propcheck

import "github.com/divyang-garg/astra-guardrails/internal/typecheck"

// ShrinkInt yields candidates that move n toward zero: 0, 1, -1, then
// successive halvings, matching the original's bias toward small
// counterexamples.
func ShrinkInt(n int64) []int64 {
	if n == 0 {
		return nil
	}
	out := []int64{0, 1, -1}
	cur := n
	for cur != 0 {
		cur = cur / 2
		if cur != 0 {
			out = append(out, cur)
		}
	}
	return out
}

// ShrinkList yields structural candidates: empty, each half, and each
// single-element removal.
func ShrinkList(xs []any) [][]any {
	var out [][]any
	if len(xs) > 0 {
		out = append(out, []any{})
	}
	n := len(xs)
	if n >= 2 {
		out = append(out, append([]any{}, xs[:n/2]...))
		out = append(out, append([]any{}, xs[n/2:]...))
	}
	for i := range xs {
		without := make([]any, 0, n-1)
		without = append(without, xs[:i]...)
		without = append(without, xs[i+1:]...)
		out = append(out, without)
	}
	return out
}

// ShrinkValue yields smaller candidates for v under type t, recursing into
// list elements and record fields.
func ShrinkValue(t typecheck.Type, v any, typevarDefaults map[string]typecheck.Type) []any {
	t = substTypevars(t, typevarDefaults)

	switch ty := t.(type) {
	case typecheck.AnyType:
		if n, ok := v.(int64); ok {
			return int64SliceToAny(ShrinkInt(n))
		}
		return nil

	case typecheck.Prim:
		switch ty.Name {
		case "Int":
			if n, ok := v.(int64); ok {
				return int64SliceToAny(ShrinkInt(n))
			}
		case "Bool":
			if b, ok := v.(bool); ok && b {
				return []any{false}
			}
		case "String":
			if s, ok := v.(string); ok && s != "" {
				return []any{"", s[:len(s)/2]}
			}
		}
		return nil

	case typecheck.ListT:
		xs, ok := v.([]any)
		if !ok {
			return nil
		}
		var out []any
		for _, cand := range ShrinkList(xs) {
			out = append(out, cand)
		}
		for i, elem := range xs {
			for _, cand := range ShrinkValue(ty.Elem, elem, typevarDefaults) {
				vv := append([]any{}, xs...)
				vv[i] = cand
				out = append(out, vv)
			}
		}
		return out

	case typecheck.RecordT:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		var out []any
		for k, ft := range ty.Fields {
			fv, has := obj[k]
			if !has {
				continue
			}
			for _, cand := range ShrinkValue(ft, fv, typevarDefaults) {
				vv := make(map[string]any, len(obj))
				for kk, vvv := range obj {
					vv[kk] = vvv
				}
				vv[k] = cand
				out = append(out, vv)
			}
		}
		return out

	case typecheck.VarType:
		def, has := typevarDefaults[ty.Name]
		if !has {
			def = typecheck.Prim{Name: "Int"}
		}
		return ShrinkValue(def, v, typevarDefaults)
	}
	return nil
}

func int64SliceToAny(xs []int64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
