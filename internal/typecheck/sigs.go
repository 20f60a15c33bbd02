package typecheck

import "github.com/divyang-garg/astra-guardrails/internal/ast"

// Sig is a (possibly generic) builtin or user function signature.
type Sig struct {
	Name        string
	TypeParams  []string
	ParamNames  []string
	ParamTypes  []Type
	Ret         Type
}

func builtinSigs() map[string]Sig {
	s := func(name string, tps, pnames []string, ptypes []Type, ret Type) Sig {
		return Sig{Name: name, TypeParams: tps, ParamNames: pnames, ParamTypes: ptypes, Ret: ret}
	}
	none := []string{}
	return map[string]Sig{
		"add": s("add", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Int"}),
		"sub": s("sub", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Int"}),
		"mul": s("mul", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Int"}),
		"div": s("div", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Float"}),

		"eq":  s("eq", none, []string{"a", "b"}, []Type{AnyType{}, AnyType{}}, Prim{"Bool"}),
		"neq": s("neq", none, []string{"a", "b"}, []Type{AnyType{}, AnyType{}}, Prim{"Bool"}),
		"lt":  s("lt", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Bool"}),
		"lte": s("lte", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Bool"}),
		"gt":  s("gt", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Bool"}),
		"gte": s("gte", none, []string{"a", "b"}, []Type{Prim{"Int"}, Prim{"Int"}}, Prim{"Bool"}),

		"and": s("and", none, []string{"a", "b"}, []Type{Prim{"Bool"}, Prim{"Bool"}}, Prim{"Bool"}),
		"or":  s("or", none, []string{"a", "b"}, []Type{Prim{"Bool"}, Prim{"Bool"}}, Prim{"Bool"}),
		"not": s("not", none, []string{"a"}, []Type{Prim{"Bool"}}, Prim{"Bool"}),

		"str_len":      s("str_len", none, []string{"s"}, []Type{Prim{"String"}}, Prim{"Int"}),
		"str_concat":   s("str_concat", none, []string{"a", "b"}, []Type{Prim{"String"}, Prim{"String"}}, Prim{"String"}),
		"str_contains": s("str_contains", none, []string{"s", "sub"}, []Type{Prim{"String"}, Prim{"String"}}, Prim{"Bool"}),

		"len":         s("len", []string{"T"}, []string{"xs"}, []Type{ListT{VarType{"T"}}}, Prim{"Int"}),
		"list_get":    s("list_get", []string{"T"}, []string{"xs", "i"}, []Type{ListT{VarType{"T"}}, Prim{"Int"}}, VarType{"T"}),
		"list_set":    s("list_set", []string{"T"}, []string{"xs", "i", "v"}, []Type{ListT{VarType{"T"}}, Prim{"Int"}, VarType{"T"}}, ListT{VarType{"T"}}),
		"list_append": s("list_append", []string{"T"}, []string{"xs", "v"}, []Type{ListT{VarType{"T"}}, VarType{"T"}}, ListT{VarType{"T"}}),
		"list_concat": s("list_concat", []string{"T"}, []string{"a", "b"}, []Type{ListT{VarType{"T"}}, ListT{VarType{"T"}}}, ListT{VarType{"T"}}),
		"list_slice":  s("list_slice", []string{"T"}, []string{"xs", "start", "end"}, []Type{ListT{VarType{"T"}}, AnyType{}, AnyType{}}, ListT{VarType{"T"}}),
		"list_range":  s("list_range", none, []string{"n"}, []Type{Prim{"Int"}}, ListT{Prim{"Int"}}),

		"list_map":    s("list_map", []string{"T"}, []string{"fn", "xs"}, []Type{Prim{"String"}, ListT{VarType{"T"}}}, ListT{AnyType{}}),
		"list_filter": s("list_filter", []string{"T"}, []string{"fn", "xs"}, []Type{Prim{"String"}, ListT{VarType{"T"}}}, ListT{VarType{"T"}}),
		"list_reduce": s("list_reduce", none, []string{"fn", "init", "xs"}, []Type{Prim{"String"}, AnyType{}, ListT{AnyType{}}}, AnyType{}),
		"list_sum":    s("list_sum", none, []string{"xs"}, []Type{ListT{AnyType{}}}, AnyType{}),
		"list_mean":   s("list_mean", none, []string{"xs"}, []Type{ListT{AnyType{}}}, Prim{"Float"}),

		"obj_get":    s("obj_get", none, []string{"obj", "key"}, []Type{AnyType{}, Prim{"String"}}, AnyType{}),
		"obj_get_or": s("obj_get_or", none, []string{"obj", "key", "default"}, []Type{AnyType{}, Prim{"String"}, AnyType{}}, AnyType{}),
		"obj_has":    s("obj_has", none, []string{"obj", "key"}, []Type{AnyType{}, Prim{"String"}}, Prim{"Bool"}),
		"obj_set":    s("obj_set", none, []string{"obj", "key", "value"}, []Type{AnyType{}, Prim{"String"}, AnyType{}}, AnyType{}),
		"obj_del":    s("obj_del", none, []string{"obj", "key"}, []Type{AnyType{}, Prim{"String"}}, AnyType{}),
		"obj_keys":   s("obj_keys", none, []string{"obj"}, []Type{AnyType{}}, ListT{Prim{"String"}}),
		"obj_merge":  s("obj_merge", none, []string{"a", "b"}, []Type{AnyType{}, AnyType{}}, AnyType{}),

		"print":    s("print", none, []string{"x"}, []Type{AnyType{}}, Prim{"Null"}),
		"http_get": s("http_get", none, []string{"url"}, []Type{Prim{"String"}}, Prim{"String"}),
	}
}

// freshen instantiates a generic signature's type params with fresh,
// globally-unique variables, so each call site gets independent unification.
func freshen(sig Sig, counter *int) (Sig, Subst) {
	subst := Subst{}
	for _, tp := range sig.TypeParams {
		*counter++
		subst[tp] = VarType{Name: tp + "#" + itoa(*counter)}
	}
	params := make([]Type, len(sig.ParamTypes))
	for i, t := range sig.ParamTypes {
		params[i] = applySubst(t, subst)
	}
	return Sig{
		Name:       sig.Name,
		ParamNames: sig.ParamNames,
		ParamTypes: params,
		Ret:        applySubst(sig.Ret, subst),
	}, subst
}

func sigFromFunction(fn ast.Function) Sig {
	name := fn.Name()
	if name == "" {
		name = "<anon>"
	}
	paramNames := fn.Params()
	typeParams := fn.TypeParams()

	ptRaw := fn.ParamTypes()
	var paramTypes []Type
	if len(ptRaw) == len(paramNames) && ptRaw != nil {
		paramTypes = make([]Type, len(ptRaw))
		for i, t := range ptRaw {
			ty, err := ParseTypeExpr(t)
			if err != nil {
				ty = AnyType{}
			}
			paramTypes[i] = ty
		}
	} else {
		paramTypes = make([]Type, len(paramNames))
		for i := range paramTypes {
			paramTypes[i] = AnyType{}
		}
	}

	ret := Type(AnyType{})
	if retRaw := fn.Returns(); retRaw != "" {
		if ty, err := ParseTypeExpr(retRaw); err == nil {
			ret = ty
		}
	}

	return Sig{Name: name, TypeParams: typeParams, ParamNames: paramNames, ParamTypes: paramTypes, Ret: ret}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	neg := i < 0
	if neg {
		i = -i
	}
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
