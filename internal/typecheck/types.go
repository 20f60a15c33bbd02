// Package typecheck implements Astra's pragmatic polymorphic type checker:
// primitive and composite types, per-call-site generic instantiation, local
// let-binding inference, and a handful of special-cased stdlib signatures
// (higher-order list ops, record field access via obj_*). It is not full
// Hindley-Milner; it is designed to be deterministic and to emit JSON
// pointer diagnostics suitable for an automated repair loop.
package typecheck

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the type-checker's internal type representation.
type Type interface {
	Render() string
}

type AnyType struct{}

func (AnyType) Render() string { return "Any" }

type Prim struct{ Name string }

func (p Prim) Render() string { return p.Name }

type VarType struct{ Name string }

func (v VarType) Render() string { return v.Name }

type ListT struct{ Elem Type }

func (l ListT) Render() string { return fmt.Sprintf("List[%s]", l.Elem.Render()) }

type RecordT struct{ Fields map[string]Type }

func (r RecordT) Render() string {
	if len(r.Fields) == 0 {
		return "Record{}"
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%s", k, r.Fields[k].Render())
	}
	return fmt.Sprintf("Record{%s}", strings.Join(parts, ","))
}

var prims = map[string]bool{"Int": true, "Float": true, "Bool": true, "String": true, "Null": true, "Any": true}

// Subst maps type-variable names to their bound types.
type Subst map[string]Type

func applySubst(t Type, s Subst) Type {
	switch v := t.(type) {
	case VarType:
		if bound, ok := s[v.Name]; ok {
			return applySubst(bound, s)
		}
		return t
	case ListT:
		return ListT{Elem: applySubst(v.Elem, s)}
	case RecordT:
		out := make(map[string]Type, len(v.Fields))
		for k, f := range v.Fields {
			out[k] = applySubst(f, s)
		}
		return RecordT{Fields: out}
	default:
		return t
	}
}

func occurs(name string, t Type, s Subst) bool {
	t = applySubst(t, s)
	switch v := t.(type) {
	case VarType:
		return v.Name == name
	case ListT:
		return occurs(name, v.Elem, s)
	case RecordT:
		for _, f := range v.Fields {
			if occurs(name, f, s) {
				return true
			}
		}
	}
	return false
}

func numJoinName(a, b string) (string, bool) {
	if a == b {
		return a, true
	}
	if (a == "Int" && b == "Float") || (a == "Float" && b == "Int") {
		return "Float", true
	}
	return "", false
}

// Unify checks that actual is assignable to expected, possibly binding type
// variables appearing in either side via subst.
func Unify(expected, actual Type, subst Subst) bool {
	expected = applySubst(expected, subst)
	actual = applySubst(actual, subst)

	if _, ok := expected.(AnyType); ok {
		return true
	}
	if _, ok := actual.(AnyType); ok {
		return true
	}

	if ev, ok := expected.(VarType); ok {
		if bound, has := subst[ev.Name]; has {
			return Unify(bound, actual, subst)
		}
		if occurs(ev.Name, actual, subst) {
			return true
		}
		subst[ev.Name] = actual
		return true
	}

	if av, ok := actual.(VarType); ok {
		if bound, has := subst[av.Name]; has {
			return Unify(expected, bound, subst)
		}
		if occurs(av.Name, expected, subst) {
			return true
		}
		subst[av.Name] = expected
		return true
	}

	if ep, ok1 := expected.(Prim); ok1 {
		if ap, ok2 := actual.(Prim); ok2 {
			if ep.Name == ap.Name {
				return true
			}
			j, ok := numJoinName(ep.Name, ap.Name)
			return ok && j == ep.Name
		}
		return false
	}

	if el, ok1 := expected.(ListT); ok1 {
		if al, ok2 := actual.(ListT); ok2 {
			return Unify(el.Elem, al.Elem, subst)
		}
		return false
	}

	if er, ok1 := expected.(RecordT); ok1 {
		if ar, ok2 := actual.(RecordT); ok2 {
			for k, texp := range er.Fields {
				tact, has := ar.Fields[k]
				if !has || !Unify(texp, tact, subst) {
					return false
				}
			}
			return true
		}
		return false
	}

	return false
}

// Join computes the least-upper-bound type used when merging branch results.
func Join(a, b Type) Type {
	if _, ok := a.(AnyType); ok {
		return AnyType{}
	}
	if _, ok := b.(AnyType); ok {
		return AnyType{}
	}
	if ap, ok1 := a.(Prim); ok1 {
		if bp, ok2 := b.(Prim); ok2 {
			if j, ok := numJoinName(ap.Name, bp.Name); ok {
				return Prim{Name: j}
			}
			return AnyType{}
		}
	}
	if al, ok1 := a.(ListT); ok1 {
		if bl, ok2 := b.(ListT); ok2 {
			return ListT{Elem: Join(al.Elem, bl.Elem)}
		}
	}
	if ar, ok1 := a.(RecordT); ok1 {
		if br, ok2 := b.(RecordT); ok2 {
			out := map[string]Type{}
			keys := make([]string, 0)
			for k := range ar.Fields {
				if _, has := br.Fields[k]; has {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				out[k] = Join(ar.Fields[k], br.Fields[k])
			}
			return RecordT{Fields: out}
		}
	}
	if _, ok := a.(VarType); ok {
		return b
	}
	if _, ok := b.(VarType); ok {
		return a
	}
	return AnyType{}
}

func typeOfLiteral(v any) Type {
	switch v.(type) {
	case nil:
		return Prim{Name: "Null"}
	case bool:
		return Prim{Name: "Bool"}
	case int64:
		return Prim{Name: "Int"}
	case float64:
		return Prim{Name: "Float"}
	case string:
		return Prim{Name: "String"}
	default:
		return AnyType{}
	}
}
