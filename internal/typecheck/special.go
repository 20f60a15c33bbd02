package typecheck

import (
	"fmt"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
	"github.com/divyang-garg/astra-guardrails/internal/pointer"
)

// inferSpecialCall handles the handful of stdlib calls whose result type
// depends on their argument *values*, not just their declared types:
// higher-order list ops dispatched by string function name, record field
// access via obj_* when the key is a string literal, and numeric list
// aggregation. Returns (type, true) when it recognised and handled fn_last,
// or (nil, false) to fall through to ordinary signature-based checking.
func (c *checker) inferSpecialCall(fnLast, fnFull string, argsExpr []any, argTypes []Type, ptr []string) (Type, bool) {
	switch {
	case fnLast == "list_sum" && len(argTypes) == 1:
		xsT, isList := argTypes[0].(ListT)
		if !isList {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeMismatch", fmt.Sprintf("list_sum expects a list, got %s", argTypes[0].Render()))
			return AnyType{}, true
		}
		elem := applySubst(xsT.Elem, Subst{})
		if p, ok := elem.(Prim); ok && (p.Name == "Int" || p.Name == "Float") {
			return elem, true
		}
		switch elem.(type) {
		case AnyType, VarType:
			return AnyType{}, true
		}
		c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeMismatch", fmt.Sprintf("list_sum expects List[Int] or List[Float], got %s", argTypes[0].Render()))
		return AnyType{}, true

	case fnLast == "list_mean" && len(argTypes) == 1:
		xsT, isList := argTypes[0].(ListT)
		if !isList {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeMismatch", fmt.Sprintf("list_mean expects a list, got %s", argTypes[0].Render()))
			return Prim{"Float"}, true
		}
		elem := applySubst(xsT.Elem, Subst{})
		switch e := elem.(type) {
		case Prim:
			if e.Name == "Int" || e.Name == "Float" {
				return Prim{"Float"}, true
			}
		case AnyType, VarType:
			return Prim{"Float"}, true
		}
		c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeMismatch", fmt.Sprintf("list_mean expects List[Int] or List[Float], got %s", argTypes[0].Render()))
		return Prim{"Float"}, true

	case (fnLast == "list_map" || fnLast == "list_filter") && len(argTypes) == 2:
		fnRef, refIsStr := argsExpr[0].(string)
		xsT, xsIsList := argTypes[1].(ListT)
		if !refIsStr {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeError", fmt.Sprintf("%s expects first arg to be a string function name", fnLast))
			return ListT{AnyType{}}, true
		}
		if !xsIsList {
			c.issue(ptrAppend(ptr, "call", "args", "1"), "TypeMismatch", fmt.Sprintf("%s expects a list as second arg, got %s", fnLast, argTypes[1].Render()))
			return ListT{AnyType{}}, true
		}
		calleeLast := ast.QualLast(fnRef)
		calleeSig, found := c.sigs[calleeLast]
		if !found {
			calleeSig, found = c.sigs[fnRef]
		}
		if !found {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "UnknownFunctionCall", fmt.Sprintf("Unknown function: %s", fnRef))
			return ListT{AnyType{}}, true
		}
		calleeInst, _ := freshen(calleeSig, &c.counter)
		if len(calleeInst.ParamTypes) != 1 {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "ArityMismatch", fmt.Sprintf("%s expects '%s' to take 1 arg, but it takes %d", fnLast, fnRef, len(calleeInst.ParamTypes)))
			return ListT{AnyType{}}, true
		}
		subs := Subst{}
		if !Unify(calleeInst.ParamTypes[0], xsT.Elem, subs) {
			c.issue(ptrAppend(ptr, "call", "args", "1"), "TypeMismatch", fmt.Sprintf("%s expects %s but list has %s", fnRef, calleeInst.ParamTypes[0].Render(), xsT.Elem.Render()))
		}
		retT := applySubst(calleeInst.Ret, subs)
		if fnLast == "list_filter" {
			subs2 := Subst{}
			if !Unify(Prim{"Bool"}, retT, subs2) {
				c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeMismatch", fmt.Sprintf("%s used in list_filter must return Bool, got %s", fnRef, retT.Render()))
			}
			return xsT, true
		}
		return ListT{Elem: retT}, true

	case fnLast == "list_reduce" && len(argTypes) == 3:
		fnRef, refIsStr := argsExpr[0].(string)
		initT := argTypes[1]
		xsT, xsIsList := argTypes[2].(ListT)
		if !refIsStr {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeError", "list_reduce expects first arg to be a string function name")
			return initT, true
		}
		if !xsIsList {
			c.issue(ptrAppend(ptr, "call", "args", "2"), "TypeMismatch", fmt.Sprintf("list_reduce expects a list as third arg, got %s", argTypes[2].Render()))
			return initT, true
		}
		calleeLast := ast.QualLast(fnRef)
		calleeSig, found := c.sigs[calleeLast]
		if !found {
			calleeSig, found = c.sigs[fnRef]
		}
		if !found {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "UnknownFunctionCall", fmt.Sprintf("Unknown function: %s", fnRef))
			return initT, true
		}
		calleeInst, _ := freshen(calleeSig, &c.counter)
		if len(calleeInst.ParamTypes) != 2 {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "ArityMismatch", fmt.Sprintf("list_reduce expects '%s' to take 2 args, but it takes %d", fnRef, len(calleeInst.ParamTypes)))
			return initT, true
		}
		subs := Subst{}
		if !Unify(calleeInst.ParamTypes[0], initT, subs) {
			c.issue(ptrAppend(ptr, "call", "args", "1"), "TypeMismatch", fmt.Sprintf("%s first param expects %s but init is %s", fnRef, calleeInst.ParamTypes[0].Render(), initT.Render()))
		}
		if !Unify(calleeInst.ParamTypes[1], xsT.Elem, subs) {
			c.issue(ptrAppend(ptr, "call", "args", "2"), "TypeMismatch", fmt.Sprintf("%s second param expects %s but list has %s", fnRef, calleeInst.ParamTypes[1].Render(), xsT.Elem.Render()))
		}
		retT := applySubst(calleeInst.Ret, subs)
		subs2 := Subst{}
		if !Unify(initT, retT, subs2) {
			c.issue(ptrAppend(ptr, "call", "args", "0"), "TypeMismatch", fmt.Sprintf("%s used in list_reduce must return a type compatible with init (%s), got %s", fnRef, initT.Render(), retT.Render()))
		}
		return initT, true

	case (fnLast == "obj_get" || fnLast == "obj_del") && len(argTypes) == 2:
		objT, isRecord := argTypes[0].(RecordT)
		key, keyIsStr := argsExpr[1].(string)
		if !isRecord || !keyIsStr {
			return nil, false
		}
		if fnLast == "obj_get" {
			if ft, has := objT.Fields[key]; has {
				return ft, true
			}
			c.issue(ptrAppend(ptr, "call", "args", "1"), "UnknownField", fmt.Sprintf("Record has no field '%s'", key))
			return AnyType{}, true
		}
		newFields := copyFields(objT.Fields)
		delete(newFields, key)
		return RecordT{Fields: newFields}, true

	case fnLast == "obj_get_or" && len(argTypes) == 3:
		objT, isRecord := argTypes[0].(RecordT)
		key, keyIsStr := argsExpr[1].(string)
		defaultT := argTypes[2]
		if !isRecord || !keyIsStr {
			return nil, false
		}
		if ft, has := objT.Fields[key]; has {
			return Join(ft, defaultT), true
		}
		c.issue(ptrAppend(ptr, "call", "args", "1"), "UnknownField", fmt.Sprintf("Record has no field '%s'", key))
		return Join(AnyType{}, defaultT), true

	case fnLast == "obj_set" && len(argTypes) == 3:
		objT, isRecord := argTypes[0].(RecordT)
		key, keyIsStr := argsExpr[1].(string)
		valT := argTypes[2]
		if !isRecord || !keyIsStr {
			return nil, false
		}
		newFields := copyFields(objT.Fields)
		if existing, has := newFields[key]; has {
			newFields[key] = Join(existing, valT)
		} else {
			newFields[key] = valT
		}
		return RecordT{Fields: newFields}, true

	case fnLast == "obj_merge" && len(argTypes) == 2:
		aT, aIsRecord := argTypes[0].(RecordT)
		bT, bIsRecord := argTypes[1].(RecordT)
		if !aIsRecord || !bIsRecord {
			return nil, false
		}
		merged := copyFields(aT.Fields)
		for k, v := range bT.Fields {
			if existing, has := merged[k]; has {
				merged[k] = Join(existing, v)
			} else {
				merged[k] = v
			}
		}
		return RecordT{Fields: merged}, true
	}

	return nil, false
}

func copyFields(m map[string]Type) map[string]Type {
	out := make(map[string]Type, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func ptrAppend(base []string, segs ...string) []string {
	out := make([]string, 0, len(base)+len(segs))
	out = append(out, base...)
	out = append(out, segs...)
	return out
}

func (c *checker) issue(ptr []string, code, message string) {
	c.issues.Add(apperr.Issue{
		Pointer:  pointer.JoinStrings(ptr),
		Code:     code,
		Message:  message,
		Severity: apperr.SeverityError,
	})
}
