package interp

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
)

type InterpTestSuite struct {
	suite.Suite
}

func TestInterpTestSuite(t *testing.T) {
	suite.Run(t, new(InterpTestSuite))
}

func addFn(name string, params []string, body []any, effects []string) map[string]any {
	fn := map[string]any{
		"name":   name,
		"params": toAny(params),
		"body":   body,
	}
	if effects != nil {
		fn["effects"] = toAny(effects)
	}
	return fn
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func moduleWith(fns ...map[string]any) map[string]any {
	list := make([]any, len(fns))
	for i, f := range fns {
		list[i] = f
	}
	return map[string]any{"functions": list}
}

func (s *InterpTestSuite) TestCallUser_AddTwoParams() {
	fn := addFn("add_two", []string{"a", "b"}, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn":   "add",
			"args": []any{map[string]any{"var": "a"}, map[string]any{"var": "b"}},
		}}},
	}, nil)
	mod := moduleWith(fn)
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	result, err := it.Run("add_two", []any{int64(2), int64(3)})
	s.NoError(err)
	s.Equal(int64(5), result)
}

func (s *InterpTestSuite) TestRun_ArityMismatch() {
	fn := addFn("one_arg", []string{"a"}, nil, nil)
	mod := moduleWith(fn)
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	_, err := it.Run("one_arg", []any{int64(1), int64(2)})
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("ArityMismatch", fault.Code)
}

func (s *InterpTestSuite) TestRun_UnknownFunction() {
	mod := moduleWith()
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	_, err := it.Run("nope", nil)
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("UnknownFunction", fault.Code)
}

func (s *InterpTestSuite) TestIfBranching() {
	fn := addFn("choose", []string{"flag"}, []any{
		map[string]any{"if": map[string]any{
			"cond": map[string]any{"var": "flag"},
			"then": []any{map[string]any{"return": int64(1)}},
			"else": []any{map[string]any{"return": int64(0)}},
		}},
	}, nil)
	mod := moduleWith(fn)
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	result, err := it.Run("choose", []any{true})
	s.NoError(err)
	s.Equal(int64(1), result)

	result, err = it.Run("choose", []any{false})
	s.NoError(err)
	s.Equal(int64(0), result)
}

func (s *InterpTestSuite) TestAssertFailure() {
	fn := addFn("must_be_positive", []string{"n"}, []any{
		map[string]any{"assert": map[string]any{
			"expr":    map[string]any{"call": map[string]any{"fn": "gt", "args": []any{map[string]any{"var": "n"}, int64(0)}}},
			"message": "n must be positive",
		}},
		map[string]any{"return": map[string]any{"var": "n"}},
	}, nil)
	mod := moduleWith(fn)
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	_, err := it.Run("must_be_positive", []any{int64(-1)})
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("AssertionFailed", fault.Code)
	s.Equal("n must be positive", fault.Message)

	result, err := it.Run("must_be_positive", []any{int64(5)})
	s.NoError(err)
	s.Equal(int64(5), result)
}

func (s *InterpTestSuite) TestUndefinedVariable() {
	fn := addFn("bad", nil, []any{
		map[string]any{"return": map[string]any{"var": "missing"}},
	}, nil)
	mod := moduleWith(fn)
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	_, err := it.Run("bad", nil)
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("UndefinedVariable", fault.Code)
}

func (s *InterpTestSuite) TestEffectNotAllowed() {
	fn := addFn("prints", nil, []any{
		map[string]any{"expr": map[string]any{"call": map[string]any{"fn": "print", "args": []any{"hi"}}}},
		map[string]any{"return": true},
	}, []string{"io.print"})
	mod := moduleWith(fn)
	rc := NewRunContext(nil) // default: only "pure" allowed
	it := NewInterpreter(mod, rc)

	_, err := it.Run("prints", nil)
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("EffectNotAllowed", fault.Code)
}

func (s *InterpTestSuite) TestEffectAllowed() {
	fn := addFn("prints", nil, []any{
		map[string]any{"expr": map[string]any{"call": map[string]any{"fn": "print", "args": []any{"hi"}}}},
		map[string]any{"return": true},
	}, []string{"io.print"})
	mod := moduleWith(fn)
	rc := NewRunContext([]string{"io.print"})
	it := NewInterpreter(mod, rc)

	result, err := it.Run("prints", nil)
	s.NoError(err)
	s.Equal(true, result)
}

func (s *InterpTestSuite) TestListMapDispatchesUserFunction() {
	double := addFn("double", []string{"x"}, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "mul", "args": []any{map[string]any{"var": "x"}, int64(2)},
		}}},
	}, nil)
	caller := addFn("doubled_all", []string{"xs"}, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn":   "list_map",
			"args": []any{"double", map[string]any{"var": "xs"}},
		}}},
	}, nil)
	mod := moduleWith(double, caller)
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	result, err := it.Run("doubled_all", []any{[]any{int64(1), int64(2), int64(3)}})
	s.NoError(err)
	s.Equal([]any{int64(2), int64(4), int64(6)}, result)
}

func (s *InterpTestSuite) TestEvalTopLevel() {
	mod := moduleWith()
	rc := NewRunContext(nil)
	it := NewInterpreter(mod, rc)

	expr := map[string]any{"call": map[string]any{"fn": "add", "args": []any{int64(1), int64(2)}}}
	result, err := it.EvalTopLevel(expr, map[string]any{})
	s.NoError(err)
	s.Equal(int64(3), result)
}

func (s *InterpTestSuite) TestDivisionByZero() {
	rc := NewRunContext(nil)
	_, err := rc.CallBuiltin("div", []any{int64(1), int64(0)})
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("DivisionByZero", fault.Code)
}

func (s *InterpTestSuite) TestListMeanEmptyList() {
	rc := NewRunContext(nil)
	_, err := rc.CallBuiltin("list_mean", []any{[]any{}})
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("EmptyList", fault.Code)
}

func (s *InterpTestSuite) TestListSumIntStaysInt() {
	rc := NewRunContext(nil)
	result, err := rc.CallBuiltin("list_sum", []any{[]any{int64(1), int64(2), int64(3)}})
	s.NoError(err)
	s.Equal(int64(6), result)
}

func (s *InterpTestSuite) TestObjGetMissingKey() {
	rc := NewRunContext(nil)
	_, err := rc.CallBuiltin("obj_get", []any{map[string]any{"a": int64(1)}, "missing"})
	s.Error(err)
	fault, ok := err.(*apperr.RuntimeFault)
	s.True(ok)
	s.Equal("KeyError", fault.Code)
}

func (s *InterpTestSuite) TestObjSetDoesNotMutateOriginal() {
	rc := NewRunContext(nil)
	orig := map[string]any{"a": int64(1)}
	result, err := rc.CallBuiltin("obj_set", []any{orig, "b", int64(2)})
	s.NoError(err)
	out := result.(map[string]any)
	s.Equal(int64(2), out["b"])
	_, hasB := orig["b"]
	s.False(hasB)
}
